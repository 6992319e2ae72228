package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zip"
	"golang.org/x/mod/module"
)

var ErrNoFiles = errors.New("no file to archive")

// modTime is stamped on every entry so identical inputs give identical archives.
var modTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Entry maps a file on disk to its name inside the archive.
type Entry struct {
	SourcePath string
	Name       string
}

// Collect lists the regular files under dir as entries named prefix/<path>,
// skipping paths that match one of the exclude globs. Globs are matched
// against the slash path relative to dir.
func Collect(dir, prefix string, exclude []string) ([]Entry, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	excluded := func(rel string) bool {
		for _, pattern := range exclude {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
		}
		return false
	}

	var entries []Entry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		entries = append(entries, Entry{SourcePath: p, Name: path.Join(prefix, rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Write creates a deflated zip at target holding entries in the given order.
func Write(target string, entries []Entry) (err error) {
	if len(entries) == 0 {
		return ErrNoFiles
	}
	f, err := os.Create(target) // #nosec G304
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(target)
		}
	}()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := addFile(zw, e); err != nil {
			return err
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, e Entry) error {
	in, err := os.Open(e.SourcePath) // #nosec G304
	if err != nil {
		return err
	}
	defer in.Close()

	header := &zip.FileHeader{
		Name:     e.Name,
		Method:   zip.Deflate,
		Modified: modTime,
	}
	header.SetMode(0644)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write header for %s: %w", e.Name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write content for %s: %w", e.Name, err)
	}
	return nil
}

// NonPortable lists entry names that would not survive extraction on every
// platform.
func NonPortable(entries []Entry) []string {
	var names []string
	for _, e := range entries {
		if err := module.CheckFilePath(e.Name); err != nil {
			names = append(names, e.Name)
		}
	}
	return names
}
