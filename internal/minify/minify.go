package minify

import (
	"errors"
	"os"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ESBuild minifies ES5 scripts with esbuild's transform API. Top-level names
// are kept since scripts share the global scope at runtime.
type ESBuild struct{}

func (ESBuild) Minify(filePath string) ([]byte, error) {
	src, err := os.ReadFile(filePath) // #nosec G304
	if err != nil {
		return nil, err
	}
	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        filePath,
		Target:            api.ES5,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return nil, errors.New(strings.TrimSpace(strings.Join(msgs, "\n")))
	}
	return result.Code, nil
}
