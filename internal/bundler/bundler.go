package bundler

import (
	"errors"
	"strings"

	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
)

// MainSceneID is the asset that serves as entry point for games without main.
const MainSceneID = "mainScene"

var ErrNoEntryPoint = errors.New("game.json has neither main nor a mainScene asset")

// Result is one bundled program. ConsumedFiles are sorted slash paths
// relative to the bundled root, the entry point included.
type Result struct {
	Source          string
	ConsumedFiles   []string
	HasExplicitMain bool
}

// Engine resolves and concatenates the module graph starting at entryPoint.
type Engine interface {
	Bundle(entryPoint, rootDir string) (source string, consumed []string, err error)
}

// EntryPoint returns main when declared, else the mainScene asset path.
func EntryPoint(gc *manifest.GameConfiguration) (string, bool, error) {
	if gc.Main != "" {
		return gc.Main, true, nil
	}
	if a, ok := gc.Assets.Get(MainSceneID); ok {
		return "./" + strings.TrimPrefix(a.Path(), "./"), false, nil
	}
	return "", false, ErrNoEntryPoint
}

// Bundle runs engine over the game rooted at rootDir.
func Bundle(engine Engine, gc *manifest.GameConfiguration, rootDir string) (*Result, error) {
	entry, explicit, err := EntryPoint(gc)
	if err != nil {
		return nil, err
	}
	source, consumed, err := engine.Bundle(entry, rootDir)
	if err != nil {
		return nil, err
	}
	return &Result{
		Source:          source,
		ConsumedFiles:   consumed,
		HasExplicitMain: explicit,
	}, nil
}
