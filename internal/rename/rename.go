package rename

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
)

var ErrFilenameConflict = errors.New("hashed filename conflict")

type move struct {
	from, to string
}

type target struct {
	path   string
	digest string
	moves  []move
}

// AssetFilenames renames every asset file under baseDir to a name derived
// from the SHA-256 of its content, starting with hashLength hex characters.
// Asset paths are rewritten and the original path is kept as virtualPath.
// Files with the same content in one directory share a single hashed file.
// globalScripts are left alone.
func AssetFilenames(gc *manifest.GameConfiguration, baseDir string, hashLength int) error {
	p := &planner{
		baseDir:  baseDir,
		length:   hashLength,
		claimed:  map[string]*target{},
		bySource: map[string]*target{},
	}
	plans := map[string]*target{}
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		t, err := p.plan(a)
		if err != nil {
			return fmt.Errorf("asset %q: %w", id, err)
		}
		if t != nil {
			plans[id] = t
		}
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, t := range p.targets {
		for _, m := range t.moves {
			from := filepath.Join(baseDir, filepath.FromSlash(m.from))
			to := filepath.Join(baseDir, filepath.FromSlash(m.to))
			if from == to {
				continue
			}
			g.Go(func() error {
				return os.Rename(from, to)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, f := range p.duplicates {
		if err := os.Remove(filepath.Join(baseDir, filepath.FromSlash(f))); err != nil {
			return err
		}
	}

	for id, t := range plans {
		a, _ := gc.Assets.Get(id)
		if a.VirtualPath() == "" {
			a.SetVirtualPath(a.Path())
		}
		a.SetPath(t.path)
	}
	return nil
}

type planner struct {
	baseDir string
	length  int
	claimed map[string]*target
	// source asset path -> planned target
	bySource map[string]*target
	targets  []*target
	// copies left behind when content is already hashed under another name
	duplicates []string
}

func (p *planner) plan(a manifest.Asset) (*target, error) {
	if t, ok := p.bySource[a.Path()]; ok {
		return t, nil
	}

	var files []string
	ext := ""
	switch a := a.(type) {
	case *manifest.AudioAsset:
		files = manifest.AudioFilePaths(p.baseDir, a.Path())
		if len(files) == 0 {
			return nil, nil
		}
	case *manifest.ScriptAsset, *manifest.ImageAsset, *manifest.TextAsset, *manifest.OtherAsset:
		files = []string{a.Path()}
		ext = path.Ext(a.Path())
	}

	digest, err := p.digest(files)
	if err != nil {
		return nil, err
	}
	dir := path.Dir(a.Path())
	for n := p.length; ; n++ {
		if n > len(digest) {
			return nil, fmt.Errorf("%w: %s", ErrFilenameConflict, a.Path())
		}
		candidate := path.Join(dir, digest[:n]) + ext
		if owner, ok := p.claimed[candidate]; ok {
			if owner.digest == digest {
				p.bySource[a.Path()] = owner
				p.duplicates = append(p.duplicates, files...)
				return owner, nil
			}
			continue
		}
		if p.occupied(a.Path(), candidate, files) {
			continue
		}

		t := &target{path: candidate, digest: digest}
		for _, f := range files {
			// audio files keep their own extension after the hash
			t.moves = append(t.moves, move{from: f, to: candidate + f[len(a.Path()):]})
		}
		p.claimed[candidate] = t
		p.bySource[a.Path()] = t
		p.targets = append(p.targets, t)
		return t, nil
	}
}

func (p *planner) digest(files []string) (string, error) {
	h := sha256.New()
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(p.baseDir, filepath.FromSlash(f))) // #nosec G304
		if err != nil {
			return "", err
		}
		h.Write([]byte(path.Ext(f)))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// occupied reports whether a file other than the asset's own already sits
// at the candidate name.
func (p *planner) occupied(source, candidate string, files []string) bool {
	if candidate == source {
		return false
	}
	for _, f := range files {
		name := candidate + f[len(source):]
		if manifest.Stat(filepath.Join(p.baseDir, filepath.FromSlash(name))) != manifest.Absent {
			return true
		}
	}
	return false
}
