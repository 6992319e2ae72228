package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akashic-games/akashic-cli-export-zip/internal/archive"
	"github.com/akashic-games/akashic-cli-export-zip/internal/console"
	"github.com/akashic-games/akashic-cli-export-zip/internal/convert"
	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
)

const (
	DefaultOutput = "./game.zip"
	// ArchiveRoot is the directory every zip entry lives under.
	ArchiveRoot = "game"
	// MinHashLength is the shortest hashed filename an export produces.
	MinHashLength = 4
)

var ErrCanceled = errors.New("export canceled")

type Params struct {
	Source       string
	Output       string
	Strip        bool
	Minify       bool
	Bundle       bool
	OmitEmptyJs  bool
	VerifyBundle bool
	// 0 disables hashing; other values are raised to MinHashLength
	HashFilename int
	Exclude      []string
	Force        bool
	// Confirm is asked before an existing archive is replaced. Without it
	// an existing archive is an error unless Force is set.
	Confirm func(path string) (bool, error)
	Logger  console.Logger
}

func (p *Params) complete() error {
	if p.Source == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		p.Source = wd
	}
	if p.Output == "" {
		p.Output = DefaultOutput
	}
	output, err := filepath.Abs(p.Output)
	if err != nil {
		return err
	}
	p.Output = output
	if p.HashFilename < 0 {
		p.HashFilename = 0
	}
	if p.HashFilename > 0 {
		p.HashFilename = max(p.HashFilename, MinHashLength)
	}
	if p.Logger == nil {
		p.Logger = console.New(false)
	}
	return nil
}

// IsArchive reports whether output names a zip file rather than a directory.
func IsArchive(output string) bool {
	return strings.HasSuffix(strings.ToLower(output), ".zip")
}

// Export converts the game at p.Source and writes it to p.Output, either as
// a zip archive or as a directory.
func Export(c *convert.Converter, p Params) error {
	if err := p.complete(); err != nil {
		return err
	}
	if manifest.Stat(filepath.Join(p.Source, manifest.FileName)) != manifest.RegularFile {
		return convert.ErrManifestNotFound
	}

	outZip := IsArchive(p.Output)
	destDir := p.Output
	if outZip {
		if err := confirmOverwrite(p); err != nil {
			return err
		}
		tmp, err := os.MkdirTemp("", "akashic-export-zip-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		destDir = filepath.Join(tmp, ArchiveRoot)
	}

	err := c.Convert(convert.Options{
		Source:       p.Source,
		Dest:         destDir,
		Strip:        p.Strip,
		Bundle:       p.Bundle,
		Minify:       p.Minify,
		OmitEmptyJs:  p.OmitEmptyJs,
		VerifyBundle: p.VerifyBundle,
		HashLength:   p.HashFilename,
		SkipPaths:    []string{p.Output},
		Logger:       p.Logger,
	})
	if err != nil {
		return err
	}

	if outZip {
		entries, err := archive.Collect(destDir, ArchiveRoot, p.Exclude)
		if err != nil {
			return err
		}
		for _, name := range archive.NonPortable(entries) {
			p.Logger.Warn("%s may not extract on every platform", name)
		}
		p.Logger.Info("Writing %d files to %s", len(entries), p.Output)
		if err := archive.Write(p.Output, entries); err != nil {
			return fmt.Errorf("write %s: %w", p.Output, err)
		}
	}
	p.Logger.Info("Done!")
	return nil
}

func confirmOverwrite(p Params) error {
	if p.Force || manifest.Stat(p.Output) == manifest.Absent {
		return nil
	}
	if p.Confirm == nil {
		return fmt.Errorf("%s already exists", p.Output)
	}
	ok, err := p.Confirm(p.Output)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCanceled
	}
	return nil
}
