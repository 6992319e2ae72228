package convert

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
)

func (c *Converter) load(opts Options) (*manifest.GameConfiguration, error) {
	gc, err := manifest.Read(filepath.Join(opts.Source, manifest.FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, err
	}
	for _, d := range manifest.DuplicateAssetPaths(gc) {
		opts.Logger.Warn("assets %s share the path %s", strings.Join(d.IDs, ", "), d.Path)
	}
	return gc, nil
}

func (c *Converter) validate(gc *manifest.GameConfiguration, opts Options) error {
	var violations []FileViolation
	for _, p := range manifest.ExtractScriptAssetFilePaths(gc) {
		src, err := os.ReadFile(filepath.Join(opts.Source, filepath.FromSlash(p))) // #nosec G304
		if err != nil {
			return err
		}
		for _, v := range c.validator.Validate(p, src) {
			violations = append(violations, FileViolation{Path: p, Violation: v})
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// selectFiles lists the slash paths, relative to Source, that get copied.
func selectFiles(gc *manifest.GameConfiguration, opts Options) ([]string, error) {
	if opts.Strip {
		seen := map[string]bool{}
		var files []string
		for _, p := range manifest.ExtractFilePaths(gc, opts.Source) {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
		return files, nil
	}

	skip := map[string]bool{opts.Dest: true}
	for _, p := range opts.SkipPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		skip[abs] = true
	}
	var files []string
	err := filepath.WalkDir(opts.Source, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if skip[p] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(opts.Source, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", opts.Source, err)
	}
	return files, nil
}

func copyFiles(source, dest string, files []string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU() * 2)
	for _, f := range files {
		f := f
		g.Go(func() error {
			return copyFile(
				filepath.Join(source, filepath.FromSlash(f)),
				filepath.Join(dest, filepath.FromSlash(f)),
			)
		})
	}
	return g.Wait()
}

func copyFile(from, to string) error {
	in, err := os.Open(from) // #nosec G304
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	out, err := os.Create(to) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", from, err)
	}
	return out.Close()
}

// omitEmptyScripts drops script assets whose copied file does nothing.
func omitEmptyScripts(gc *manifest.GameConfiguration, opts Options) error {
	var empty []string
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		if _, ok := a.(*manifest.ScriptAsset); !ok {
			continue
		}
		p := filepath.Join(opts.Dest, filepath.FromSlash(a.Path()))
		content, err := os.ReadFile(p) // #nosec G304
		if err != nil {
			return err
		}
		if manifest.IsEmptyScriptJs(content) {
			empty = append(empty, a.Path())
		}
	}
	if len(empty) == 0 {
		return nil
	}
	opts.Logger.Info("Omitting %d empty scripts", len(empty))
	manifest.RemoveScriptEntries(gc, empty)
	return removeUnreferenced(gc, opts.Dest, empty)
}

// removeUnreferenced deletes the given files from dir unless an asset still
// points at them.
func removeUnreferenced(gc *manifest.GameConfiguration, dir string, paths []string) error {
	referenced := map[string]bool{}
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		referenced[a.Path()] = true
	}
	for _, p := range paths {
		if referenced[p] {
			continue
		}
		err := os.Remove(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (c *Converter) minify(gc *manifest.GameConfiguration, opts Options) error {
	scripts := manifest.ExtractScriptAssetFilePaths(gc)
	opts.Logger.Info("Minifying %d scripts", len(scripts))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, s := range scripts {
		s := s
		p := filepath.Join(opts.Dest, filepath.FromSlash(s))
		g.Go(func() error {
			code, err := c.minifier.Minify(p)
			if err != nil {
				return fmt.Errorf("minify %s: %w", s, err)
			}
			return os.WriteFile(p, code, 0644) // #nosec G306
		})
	}
	return g.Wait()
}
