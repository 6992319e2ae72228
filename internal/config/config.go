package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/stoewer/go-strcase"
	"gopkg.in/yaml.v2"
)

const (
	// EnvPrefix starts the environment variable of every option, e.g.
	// AKASHIC_EXPORT_ZIP_HASH_FILENAME for -hash-filename.
	EnvPrefix = "AKASHIC_EXPORT_ZIP_"
	// DefaultFile is read from the working directory when -config is not given.
	DefaultFile = ".akashic-export-zip.yml"
	// DefaultHashLength is used when -hash-filename is given without a length.
	DefaultHashLength = 30
	DefaultPort       = 8080
)

// Export holds the options of the export command.
type Export struct {
	Cwd          string
	Output       string
	Quiet        bool
	Verbose      bool
	Strip        bool
	Minify       bool
	Bundle       bool
	OmitEmptyJs  bool
	VerifyBundle bool
	HashFilename int
	Exclude      []string
	Force        bool
	Watch        bool
	ConfigFile   string
}

// Serve holds the options of the serve command.
type Serve struct {
	Export
	Port int
}

// ExitError carries the exit code for a command line the tool refuses.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// LookupEnv has the signature of os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// ParseExport reads export options from args, then the environment, then
// the config file. The boolean result is true when the caller should exit
// without running anything (help was requested).
func ParseExport(args []string, output io.Writer, lookupEnv LookupEnv) (*Export, bool, error) {
	cfg := &Export{}
	fs, aliases := exportFlagSet("export", cfg, output)
	fs.Usage = func() {
		fmt.Fprint(output, `
Export an Akashic game to a zip file or a directory.

Usage:
  akashic-export-zip [export] [options]

Options:
`)
		fs.PrintDefaults()
	}
	exit, err := parse(fs, aliases, args, lookupEnv, &cfg.ConfigFile)
	if err != nil || exit {
		return nil, exit, err
	}
	return cfg, false, nil
}

// ParseServe is ParseExport plus the preview server options.
func ParseServe(args []string, output io.Writer, lookupEnv LookupEnv) (*Serve, bool, error) {
	cfg := &Serve{Port: DefaultPort}
	fs, aliases := exportFlagSet("serve", &cfg.Export, output)
	fs.IntVar(&cfg.Port, "port", DefaultPort, "Port of the preview server")
	fs.Usage = func() {
		fmt.Fprint(output, `
Export an Akashic game into a directory, serve it and re-export on change.

Usage:
  akashic-export-zip serve [options]

Options:
`)
		fs.PrintDefaults()
	}
	exit, err := parse(fs, aliases, args, lookupEnv, &cfg.ConfigFile)
	if err != nil || exit {
		return nil, exit, err
	}
	return cfg, false, nil
}

// exportFlagSet binds the export options. The returned map resolves short
// names to their long form.
func exportFlagSet(name string, cfg *Export, output io.Writer) (*flag.FlagSet, map[string]string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	aliases := map[string]string{}
	alias := func(short, long string) {
		fs.Var(fs.Lookup(long).Value, short, fs.Lookup(long).Usage+" (shorthand)")
		aliases[short] = long
	}

	fs.StringVar(&cfg.Cwd, "cwd", "", "A directory containing a game.json (default: .)")
	alias("C", "cwd")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress output")
	alias("q", "quiet")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Print debug output")
	alias("v", "verbose")
	fs.StringVar(&cfg.Output, "output", "", "Name of output file or directory (default: game.zip)")
	alias("o", "output")
	fs.BoolVar(&cfg.Strip, "strip", false, "Contain only files referred by game.json")
	alias("s", "strip")
	fs.BoolVar(&cfg.Minify, "minify", false, "Minify JavaScript files")
	alias("M", "minify")
	fs.Var(&hashFlag{length: &cfg.HashFilename}, "hash-filename", "Rename asset files with their hash values; -hash-filename=<length> sets the length")
	alias("H", "hash-filename")
	fs.BoolVar(&cfg.Bundle, "bundle", false, "Bundle script assets into a single file")
	alias("b", "bundle")
	fs.BoolVar(&cfg.OmitEmptyJs, "omit-empty-js", false, "Drop script assets that compile to nothing")
	fs.BoolVar(&cfg.VerifyBundle, "verify-bundle", false, "Load the bundle in V8 before writing it")
	fs.Var((*stringsFlag)(&cfg.Exclude), "exclude", "Glob of archive entries to leave out (repeatable)")
	fs.BoolVar(&cfg.Force, "force", false, "Overwrite an existing archive without asking")
	alias("f", "force")
	fs.BoolVar(&cfg.Watch, "watch", false, "Export again whenever the game changes")
	alias("w", "watch")
	fs.StringVar(&cfg.ConfigFile, "config", "", "YAML file with default options (default: "+DefaultFile+")")
	return fs, aliases
}

func parse(fs *flag.FlagSet, aliases map[string]string, args []string, lookupEnv LookupEnv, configFile *string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", fs.Arg(0))}
	}

	fromFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		fromFlags[canonical(aliases, f.Name)] = true
	})

	if !fromFlags["config"] {
		if v, ok := lookupEnv(EnvName("config")); ok {
			*configFile = v
		}
	}
	file, err := readFile(*configFile)
	if err != nil {
		return false, &ExitError{Code: 2, Message: err.Error()}
	}

	var applyErr error
	fs.VisitAll(func(f *flag.Flag) {
		if applyErr != nil {
			return
		}
		if _, isAlias := aliases[f.Name]; isAlias || fromFlags[f.Name] || f.Name == "config" {
			return
		}
		if v, ok := lookupEnv(EnvName(f.Name)); ok {
			applyErr = setAll(f, splitList(f, v))
			if applyErr != nil {
				applyErr = fmt.Errorf("%s: %w", EnvName(f.Name), applyErr)
			}
			return
		}
		if values, ok := file[f.Name]; ok {
			applyErr = setAll(f, values)
			if applyErr != nil {
				applyErr = fmt.Errorf("%s: %s: %w", *configFile, f.Name, applyErr)
			}
		}
	})
	if applyErr != nil {
		return false, &ExitError{Code: 2, Message: applyErr.Error()}
	}
	return false, nil
}

// EnvName is the environment variable for the long flag name.
func EnvName(flagName string) string {
	return EnvPrefix + strcase.UpperSnakeCase(flagName)
}

func canonical(aliases map[string]string, name string) string {
	if long, ok := aliases[name]; ok {
		return long
	}
	return name
}

func setAll(f *flag.Flag, values []string) error {
	for _, v := range values {
		if err := f.Value.Set(v); err != nil {
			return err
		}
	}
	return nil
}

// splitList splits comma separated environment values of repeatable flags.
func splitList(f *flag.Flag, v string) []string {
	if _, ok := f.Value.(*stringsFlag); !ok {
		return []string{v}
	}
	var values []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			values = append(values, s)
		}
	}
	return values
}

// readFile loads the YAML config into flag name -> values. An explicit file
// must exist; the default one is optional.
func readFile(path string) (map[string][]string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	values := make(map[string][]string, len(raw))
	for key, v := range raw {
		switch v := v.(type) {
		case []interface{}:
			for _, item := range v {
				values[key] = append(values[key], fmt.Sprint(item))
			}
		case nil:
		default:
			values[key] = []string{fmt.Sprint(v)}
		}
	}
	return values, nil
}

// hashFlag is a boolean flag that also takes a length: -H, -H=8, -H=false.
type hashFlag struct {
	length *int
}

func (h *hashFlag) IsBoolFlag() bool { return true }

func (h *hashFlag) String() string {
	if h.length == nil {
		return "0"
	}
	return strconv.Itoa(*h.length)
}

func (h *hashFlag) Set(v string) error {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return fmt.Errorf("invalid hash length %q", v)
		}
		*h.length = n
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid hash length %q", v)
	}
	*h.length = 0
	if b {
		*h.length = DefaultHashLength
	}
	return nil
}

type stringsFlag []string

func (s *stringsFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
