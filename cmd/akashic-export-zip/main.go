package main

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erikgeiser/promptkit/confirmation"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/akashic-games/akashic-cli-export-zip/internal/config"
	"github.com/akashic-games/akashic-cli-export-zip/internal/console"
	"github.com/akashic-games/akashic-cli-export-zip/internal/convert"
	"github.com/akashic-games/akashic-cli-export-zip/internal/export"
	"github.com/akashic-games/akashic-cli-export-zip/internal/server"
	"github.com/akashic-games/akashic-cli-export-zip/internal/watch"
)

//go:embed package.json
var packageFS embed.FS

const debounceDurationMS = 500

func printHelp() {
	fmt.Println("usage: akashic-export-zip [command] [options]")
	fmt.Println("")
	fmt.Println("export [options]            Export the game to a zip file or a directory (default)")
	fmt.Println("serve [options] -port <n>   Export into a directory, serve it and reload on change")
	fmt.Println("version                     Shows version installed")
	fmt.Println("")
	fmt.Println("Run a command with -help to list its options.")
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	err := exec(args)
	if err == nil {
		return 0
	}
	var exitErr *config.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintln(os.Stderr, exitErr.Message)
		}
		return exitErr.Code
	}
	console.New(false).Error("%s", err)
	return 1
}

func exec(args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return exportCmd(args)
	}

	command := args[0]
	switch command {
	case "export":
		return exportCmd(args[1:])
	case "serve":
		return serveCmd(args[1:])
	case "version":
		return version()
	case "help":
		printHelp()
		return nil
	default:
		fmt.Printf("Unrecognized command: %s\n\n", command)
		printHelp()
		return &config.ExitError{Code: 1}
	}
}

func version() error {
	f, err := packageFS.ReadFile("package.json")
	if err != nil {
		return err
	}
	data := make(map[string]any)
	if err := json.Unmarshal(f, &data); err != nil {
		return err
	}
	fmt.Printf("Version is %s\n", data["version"].(string))
	return nil
}

func exportCmd(args []string) error {
	cfg, exit, err := config.ParseExport(args, os.Stderr, os.LookupEnv)
	if err != nil || exit {
		return err
	}
	log := newLogger(cfg)
	params, err := exportParams(cfg, log)
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		params.Confirm = confirmOverwrite
	}
	c, err := convert.NewConverter()
	if err != nil {
		return err
	}

	if err := export.Export(c, params); err != nil {
		return err
	}
	if !cfg.Watch {
		return nil
	}
	// the first run settled any overwrite question
	params.Force = true
	return watchAndExport(c, params, log, nil)
}

func serveCmd(args []string) error {
	cfg, exit, err := config.ParseServe(args, os.Stderr, os.LookupEnv)
	if err != nil || exit {
		return err
	}
	log := newLogger(&cfg.Export)
	if cfg.Output == "" {
		tmp, err := os.MkdirTemp("", "akashic-export-zip-serve-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		cfg.Output = filepath.Join(tmp, export.ArchiveRoot)
	}
	if export.IsArchive(cfg.Output) {
		return fmt.Errorf("serve needs a directory output, got %s", cfg.Output)
	}
	params, err := exportParams(&cfg.Export, log)
	if err != nil {
		return err
	}
	c, err := convert.NewConverter()
	if err != nil {
		return err
	}

	srv := server.NewServer(params.Output, cfg.Port, log)
	if err := export.Export(c, params); err != nil {
		log.Error("%s", err)
		srv.BuildError(err)
	}
	go func() {
		err := watchAndExport(c, params, log, func(err error) {
			if err != nil {
				srv.BuildError(err)
				return
			}
			srv.Reload()
		})
		if err != nil {
			log.Error("watch: %s", err)
		}
	}()

	return srv.Serve()
}

func newLogger(cfg *config.Export) *console.ConsoleLogger {
	log := console.New(cfg.Quiet)
	log.SetVerbose(cfg.Verbose)
	return log
}

func exportParams(cfg *config.Export, log console.Logger) (export.Params, error) {
	source := cfg.Cwd
	if source == "" {
		source = "."
	}
	source, err := filepath.Abs(source)
	if err != nil {
		return export.Params{}, err
	}
	output := cfg.Output
	if output == "" {
		output = export.DefaultOutput
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return export.Params{}, err
	}
	return export.Params{
		Source:       source,
		Output:       output,
		Strip:        cfg.Strip,
		Minify:       cfg.Minify,
		Bundle:       cfg.Bundle,
		OmitEmptyJs:  cfg.OmitEmptyJs,
		VerifyBundle: cfg.VerifyBundle,
		HashFilename: cfg.HashFilename,
		Exclude:      cfg.Exclude,
		Force:        cfg.Force,
		Logger:       log,
	}, nil
}

func confirmOverwrite(path string) (bool, error) {
	prompt := confirmation.New(fmt.Sprintf("%s already exists. Overwrite it?", path), confirmation.No)
	return prompt.RunPrompt()
}

// watchAndExport exports again after every burst of changes under the
// source directory. onBuild, if set, is told how each run went.
func watchAndExport(c *convert.Converter, params export.Params, log console.Logger, onBuild func(error)) error {
	outDir := !export.IsArchive(params.Output)
	if outDir {
		if err := convert.CheckDest(params.Source, params.Output); err != nil {
			return err
		}
	}
	w, err := watch.New(params.Source, []string{params.Output}, watch.DefaultInterval, log)
	if err != nil {
		return err
	}
	defer w.Close()

	rebuild := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)
	n := watch.NewNotifier(debounceDurationMS*time.Millisecond, func() {
		select {
		case rebuild <- struct{}{}:
		default:
		}
	})

	go runRebuilds(rebuild, done, func() {
		start := time.Now()
		if outDir {
			// hashed names from the previous run are still on disk
			if err := os.RemoveAll(params.Output); err != nil {
				log.Error("%s", err)
			}
		}
		err := export.Export(c, params)
		if err != nil {
			log.Error("%s", err)
		} else {
			log.Info("Exported again in %s", time.Since(start).Round(time.Millisecond))
		}
		if onBuild != nil {
			onBuild(err)
		}
	})

	log.Info("Watching %s for changes", params.Source)
	return w.Run(func(path string) {
		log.Debug("changed %s", path)
		n.Notify()
	})
}

// runRebuilds calls build for every signal on rebuild until done is closed.
func runRebuilds(rebuild, done <-chan struct{}, build func()) {
	for {
		select {
		case <-done:
			return
		case <-rebuild:
			build()
		}
	}
}
