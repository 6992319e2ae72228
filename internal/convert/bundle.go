package convert

import (
	"os"
	"path/filepath"
	"time"

	"github.com/akashic-games/akashic-cli-export-zip/internal/bundler"
	"github.com/akashic-games/akashic-cli-export-zip/internal/manifest"
)

// bundle replaces the scripts reachable from the entry point with a single
// bundled script and persists the updated manifest.
func (c *Converter) bundle(gc *manifest.GameConfiguration, opts Options) error {
	startTime := time.Now()
	result, err := bundler.Bundle(c.engine, gc, opts.Dest)
	if err != nil {
		return err
	}
	opts.Logger.Info("Bundled %d files in %s", len(result.ConsumedFiles), time.Since(startTime))

	if opts.VerifyBundle {
		if err := bundler.Verify(result.Source, c.verifyTimeout); err != nil {
			return err
		}
	}

	manifest.RemoveScriptEntries(gc, result.ConsumedFiles)
	if err := removeUnreferenced(gc, opts.Dest, result.ConsumedFiles); err != nil {
		return err
	}

	var entryPath string
	if result.HasExplicitMain {
		entryPath = manifest.AddScriptAsset(gc, BundleMainPrefix)
		gc.Main = "./" + entryPath
	} else {
		entryPath = bundledMainScenePath
		gc.Assets.Set(bundler.MainSceneID, manifest.NewScriptAsset(entryPath, true))
	}
	opts.Logger.Debug("Writing bundle to %s", entryPath)

	p := filepath.Join(opts.Dest, filepath.FromSlash(entryPath))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(p, []byte(result.Source), 0644); err != nil { // #nosec G306
		return err
	}
	return manifest.Write(gc, filepath.Join(opts.Dest, manifest.FileName))
}
