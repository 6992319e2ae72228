package bundler

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tidwall/gjson"
)

// GlobalModule is provided by the game runtime and never bundled.
const GlobalModule = "g"

// ESBuild bundles with esbuild into a CommonJS program whose module.exports
// is the entry module's exports.
type ESBuild struct{}

func (ESBuild) Bundle(entryPoint, rootDir string) (string, []string, error) {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return "", nil, err
	}
	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{filepath.Join(root, filepath.FromSlash(entryPoint))},
		AbsWorkingDir: root,
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Format:        api.FormatCommonJS,
		Platform:      api.PlatformNeutral,
		MainFields:    []string{"main", "module"},
		External:      []string{GlobalModule},
		Target:        api.ES5,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", nil, &BuildError{Messages: api.FormatMessages(result.Errors, api.FormatMessagesOptions{
			Kind: api.ErrorMessage,
		})}
	}
	if len(result.OutputFiles) == 0 {
		return "", nil, fmt.Errorf("esbuild produced no output for %s", entryPoint)
	}
	return string(result.OutputFiles[0].Contents), consumedFiles(result.Metafile), nil
}

// consumedFiles lists the metafile inputs. esbuild keys them by path
// relative to the working directory; virtual inputs carry a namespace prefix.
func consumedFiles(metafile string) []string {
	var files []string
	gjson.Get(metafile, "inputs").ForEach(func(key, _ gjson.Result) bool {
		p := key.String()
		if strings.Contains(p, ":") {
			return true
		}
		files = append(files, filepath.ToSlash(p))
		return true
	})
	sort.Strings(files)
	return files
}

// BuildError carries esbuild's formatted diagnostics.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return strings.TrimSpace(strings.Join(e.Messages, "\n"))
}
