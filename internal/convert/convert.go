package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akashic-games/akashic-cli-export-zip/internal/bundler"
	"github.com/akashic-games/akashic-cli-export-zip/internal/console"
	"github.com/akashic-games/akashic-cli-export-zip/internal/lint"
	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
	"github.com/akashic-games/akashic-cli-export-zip/internal/minify"
	"github.com/akashic-games/akashic-cli-export-zip/internal/rename"
)

var (
	ErrManifestNotFound = errors.New("game.json is not found")
	// shown verbatim by the CLI
	ErrHashConflict = errors.New("Hashed filename conflict. Use larger hash-filename param on command line.")
)

// BundleMainPrefix names the script asset that receives the bundle when the
// game declares main.
const BundleMainPrefix = "aez_bundle_main"

const bundledMainScenePath = "script/mainScene.js"

type Validator interface {
	Validate(filename string, src []byte) []lint.Violation
}

type Minifier interface {
	Minify(filePath string) ([]byte, error)
}

// Options describes one conversion.
type Options struct {
	Source       string
	Dest         string
	Strip        bool
	Bundle       bool
	Minify       bool
	OmitEmptyJs  bool
	VerifyBundle bool
	// 0 disables filename hashing
	HashLength int
	// files under Source never copied, in addition to Dest itself
	SkipPaths []string
	Logger    console.Logger
}

func (o *Options) complete() error {
	if o.Source == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		o.Source = wd
	}
	if o.Dest == "" {
		return errors.New("no destination given")
	}
	if o.HashLength < 0 {
		o.HashLength = 0
	}
	if o.Logger == nil {
		o.Logger = console.New(false)
	}

	src, err := filepath.Abs(o.Source)
	if err != nil {
		return err
	}
	dest, err := filepath.Abs(o.Dest)
	if err != nil {
		return err
	}
	if err := CheckDest(src, dest); err != nil {
		return err
	}
	o.Source, o.Dest = src, dest
	return nil
}

// CheckDest rejects a destination that is the source directory or one of
// its ancestors, since a failed conversion removes the destination.
func CheckDest(source, dest string) error {
	rel, err := filepath.Rel(dest, source)
	if err != nil {
		return err
	}
	if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("destination %s contains the source directory %s", dest, source)
	}
	return nil
}

// ValidationError lists every ES5 syntax violation found in the game's
// scripts, in file order.
type ValidationError struct {
	Violations []FileViolation
}

type FileViolation struct {
	Path string
	lint.Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("The following ES5 syntax errors exist.")
	for _, v := range e.Violations {
		b.WriteString("\n")
		b.WriteString(v.Path)
		b.WriteString(v.Violation.String())
	}
	return b.String()
}

type Converter struct {
	validator     Validator
	engine        bundler.Engine
	minifier      Minifier
	verifyTimeout time.Duration
}

type Option func(*Converter)

func WithValidator(v Validator) Option {
	return func(c *Converter) {
		c.validator = v
	}
}

func WithBundler(e bundler.Engine) Option {
	return func(c *Converter) {
		c.engine = e
	}
}

func WithMinifier(m Minifier) Option {
	return func(c *Converter) {
		c.minifier = m
	}
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(c *Converter) {
		c.verifyTimeout = d
	}
}

// NewConverter builds a converter backed by otto and esbuild unless options
// replace them.
func NewConverter(opts ...Option) (*Converter, error) {
	c := &Converter{
		engine:        bundler.ESBuild{},
		minifier:      minify.ESBuild{},
		verifyTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.validator == nil {
		v, err := lint.NewValidator()
		if err != nil {
			return nil, err
		}
		c.validator = v
	}
	return c, nil
}

// Convert reads the game at opts.Source and writes the converted game to
// opts.Dest.
func (c *Converter) Convert(opts Options) error {
	if err := opts.complete(); err != nil {
		return err
	}
	log := opts.Logger
	startTime := time.Now()

	gc, err := c.load(opts)
	if err != nil {
		return err
	}
	if err := c.validate(gc, opts); err != nil {
		return err
	}

	files, err := selectFiles(gc, opts)
	if err != nil {
		return err
	}
	log.Info("Copying %d files to %s", len(files), opts.Dest)
	if err := copyFiles(opts.Source, opts.Dest, files); err != nil {
		return err
	}

	if opts.OmitEmptyJs {
		if err := omitEmptyScripts(gc, opts); err != nil {
			return err
		}
	}

	if opts.Bundle {
		if err := c.bundle(gc, opts); err != nil {
			return err
		}
	}

	if opts.HashLength > 0 {
		log.Info("Hashing asset filenames (length %d)", opts.HashLength)
		if err := rename.AssetFilenames(gc, opts.Dest, opts.HashLength); err != nil {
			if rmErr := os.RemoveAll(opts.Dest); rmErr != nil {
				log.Warn("remove %s: %s", opts.Dest, rmErr)
			}
			if errors.Is(err, rename.ErrFilenameConflict) {
				log.Debug("%s", err)
				return ErrHashConflict
			}
			return err
		}
	}

	if err := manifest.Write(gc, filepath.Join(opts.Dest, manifest.FileName)); err != nil {
		return err
	}

	if opts.Minify {
		if err := c.minify(gc, opts); err != nil {
			return err
		}
	}

	log.Info("Converted %s in %s", opts.Source, time.Since(startTime))
	return nil
}
