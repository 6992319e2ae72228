package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gameJSON = `{
	"width":  120,
	"height": 120,
	"fps":    40,
	"assets": {
		"main": {"type": "script", "global": true, "path": "script/main.js"},
		"sub":  {"type": "script", "global": true, "path": "script/sub.js"}
	},
	"globalScripts": [
		"node_modules/foobar/lib/x.js",
		"node_modules/foobar/package.json"
	]
}`

const gameJSONNoGlobalScripts = `{
	"width":  120,
	"height": 120,
	"fps":    40,
	"assets": {
		"main": {"type": "script", "global": true, "path": "script/main.js"},
		"sub":  {"type": "script", "global": true, "path": "script/sub.js"}
	}
}`

func mustParse(t *testing.T, src string) *GameConfiguration {
	t.Helper()
	gc, err := Parse([]byte(src))
	require.NoError(t, err)
	return gc
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestRemoveScriptEntries(t *testing.T) {
	t.Run("removes scripts", func(t *testing.T) {
		gc := mustParse(t, gameJSONNoGlobalScripts)
		RemoveScriptEntries(gc, []string{"node_modules/foobar/lib/x.js", "script/sub.js"})
		assert.Equal(t, []string{"main"}, gc.Assets.IDs())
		assert.Nil(t, gc.GlobalScripts)

		out, err := gc.MarshalJSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"width":  120, "height": 120, "fps": 40,
			"assets": {"main": {"type": "script", "global": true, "path": "script/main.js"}}
		}`, string(out))
	})

	t.Run("removes scripts from globalScripts", func(t *testing.T) {
		gc := mustParse(t, gameJSON)
		RemoveScriptEntries(gc, []string{"node_modules/foobar/lib/x.js", "script/sub.js"})
		assert.Equal(t, []string{"main"}, gc.Assets.IDs())
		assert.Equal(t, []string{"node_modules/foobar/package.json"}, gc.GlobalScripts)
	})

	t.Run("leaves other asset types alone", func(t *testing.T) {
		gc := mustParse(t, `{"assets": {
			"data": {"type": "text", "path": "text/data.json"},
			"main": {"type": "script", "global": true, "path": "text/data.json"}
		}}`)
		RemoveScriptEntries(gc, []string{"text/data.json"})
		assert.Equal(t, []string{"data"}, gc.Assets.IDs())
	})

	t.Run("is idempotent", func(t *testing.T) {
		paths := []string{"script/sub.js", "node_modules/foobar/lib/x.js", "missing.js"}
		once := mustParse(t, gameJSON)
		RemoveScriptEntries(once, paths)
		twice := mustParse(t, gameJSON)
		RemoveScriptEntries(twice, paths)
		RemoveScriptEntries(twice, paths)

		a, err := once.MarshalJSON()
		require.NoError(t, err)
		b, err := twice.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	})
}

func TestUniqueScriptAssetName(t *testing.T) {
	t.Run("uses the given prefix if it can be used", func(t *testing.T) {
		assert.Equal(t, "foo", UniqueScriptAssetName(mustParse(t, gameJSON), "foo"))
	})

	t.Run("detects conflicts", func(t *testing.T) {
		gc := mustParse(t, `{"assets": {
			"main": {"type": "script", "global": true, "path": "script/main.js"},
			"sub":  {"type": "script", "global": true, "path": "script/sub.js"},
			"sub0": {"type": "script", "global": true, "path": "script/sub0.js"}
		}}`)
		assert.Equal(t, "sub1", UniqueScriptAssetName(gc, "sub"))
	})

	t.Run("detects conflicts from globalScripts", func(t *testing.T) {
		gc := mustParse(t, `{
			"assets":        {"main": {"type": "script", "global": true, "path": "script/main.js"}},
			"globalScripts": ["zoo", "zoo0"]
		}`)
		assert.Equal(t, "zoo1", UniqueScriptAssetName(gc, "zoo"))
	})

	t.Run("checks the derived path as well as the id", func(t *testing.T) {
		gc := mustParse(t, `{"assets": {
			"other":   {"type": "image", "path": "script/bundle.js"},
			"bundle0": {"type": "text", "path": "text/a.txt"}
		}}`)
		assert.Equal(t, "bundle1", UniqueScriptAssetName(gc, "bundle"))
	})

	t.Run("keeps ids and paths apart", func(t *testing.T) {
		gc := mustParse(t, `{"assets": {
			"data": {"type": "text", "path": "foo"},
			"bar":  {"type": "text", "path": "text/bar.txt"}
		}}`)
		assert.Equal(t, "foo", UniqueScriptAssetName(gc, "foo"))
		assert.Equal(t, "script/foo.js", AddScriptAsset(gc, "foo"))
		assert.Equal(t, "bar0", UniqueScriptAssetName(gc, "bar"))
	})

	t.Run("never returns a taken id or path", func(t *testing.T) {
		gc := mustParse(t, gameJSON)
		for i := 0; i < 5; i++ {
			name := UniqueScriptAssetName(gc, "main")
			assert.False(t, gc.Assets.Has(name))
			for _, id := range gc.Assets.IDs() {
				a, _ := gc.Assets.Get(id)
				assert.NotEqual(t, "script/"+name+".js", a.Path())
			}
			AddScriptAsset(gc, "main")
		}
	})
}

func TestAddScriptAsset(t *testing.T) {
	gc := mustParse(t, gameJSON)
	p := AddScriptAsset(gc, "sub")
	assert.Equal(t, "script/sub0.js", p)
	assert.Equal(t, []string{"main", "sub", "sub0"}, gc.Assets.IDs())

	a, ok := gc.Assets.Get("sub0")
	require.True(t, ok)
	s, ok := a.(*ScriptAsset)
	require.True(t, ok)
	assert.True(t, s.Global)

	count := 0
	for _, sp := range ExtractScriptAssetFilePaths(gc) {
		if sp == p {
			count++
		}
	}
	assert.Equal(t, 1, count)

	out, err := gc.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"sub0":{"type":"script","global":true,"path":"script/sub0.js"}`)
}

func TestUniqueAssetPath(t *testing.T) {
	gc := mustParse(t, gameJSON)
	gc.Assets.Set("main0", NewScriptAsset("script/main0.js", true))
	gc.Assets.Set("main2", NewScriptAsset("script/main2.js", true))

	assert.Equal(t, "script/main1.js", UniqueAssetPath(gc, "script/main.js"))
	assert.Equal(t, "script/other.js", UniqueAssetPath(gc, "script/other.js"))

	gc.Assets.Set("root", NewTextAsset("readme"))
	assert.Equal(t, "readme0", UniqueAssetPath(gc, "readme"))
}

func TestExtractFilePaths(t *testing.T) {
	t.Run("lists paths", func(t *testing.T) {
		assert.Equal(t, []string{
			"script/main.js",
			"script/sub.js",
			"node_modules/foobar/lib/x.js",
			"node_modules/foobar/package.json",
		}, ExtractFilePaths(mustParse(t, gameJSON), t.TempDir()))
	})

	t.Run("completes audio extensions", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"audio/foo.ogg":                       "",
			"audio/foo.aac":                       "",
			"audio/foo.invalid":                   "",
			"audio/foo.mp4/foo.mustbeignored.aac": "",
			"script/main.js":                      "",
			"script/sub.js":                       "",
			"node_modules/foobar/lib/x.js":        "",
			"node_modules/foobar/package.json":    "",
		})
		gc := mustParse(t, gameJSON)
		gc.Assets.Set("sound", NewAudioAsset("audio/foo", "sound", 0))

		assert.Equal(t, []string{
			"script/main.js",
			"script/sub.js",
			"audio/foo.ogg",
			"audio/foo.aac",
			"node_modules/foobar/lib/x.js",
			"node_modules/foobar/package.json",
		}, ExtractFilePaths(gc, dir))
	})
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a/b.txt": "x"})
	assert.Equal(t, RegularFile, Stat(filepath.Join(dir, "a", "b.txt")))
	assert.Equal(t, Directory, Stat(filepath.Join(dir, "a")))
	assert.Equal(t, Absent, Stat(filepath.Join(dir, "nope")))
}

func TestExtractScriptAssetFilePaths(t *testing.T) {
	assert.Equal(t, []string{"script/main.js", "script/sub.js"},
		ExtractScriptAssetFilePaths(mustParse(t, gameJSONNoGlobalScripts)))
	assert.Equal(t, []string{"script/main.js", "script/sub.js", "node_modules/foobar/lib/x.js"},
		ExtractScriptAssetFilePaths(mustParse(t, gameJSON)))
}

func TestIsEmptyScriptJs(t *testing.T) {
	cases := map[string]struct {
		content string
		empty   bool
	}{
		"empty":                 {"", true},
		"whitespace only":       {" \r\n\t", true},
		"statement":             {"aaaaaaaaaaa", false},
		"interface only":        {"\"use strict\"\r\nObject.defineProperty(exports, \"__esModule\", { value: true });", true},
		"old compiler stub":     {"\"use strict\";\r\n", true},
		"minified marker":       {"'use strict';\nObject.defineProperty(exports,\"__esModule\",{value:!0});\n", true},
		"three plain lines":     {"aaaa\r\nbbb\rcccc", false},
		"stub plus code":        {"\"use strict\";\nObject.defineProperty(exports, \"__esModule\", { value: true });\nvar a = 1;", false},
		"marker without strict": {"Object.defineProperty(exports, \"__esModule\", { value: true });", false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.empty, IsEmptyScriptJs([]byte(c.content)))
		})
	}
}

func TestDuplicateAssetPaths(t *testing.T) {
	gc := mustParse(t, `{"assets": {
		"a": {"type": "image", "path": "image/x.png"},
		"b": {"type": "text", "path": "text/y.txt"},
		"c": {"type": "image", "path": "image/x.png"}
	}}`)
	assert.Equal(t, []Duplicate{{Path: "image/x.png", IDs: []string{"a", "c"}}}, DuplicateAssetPaths(gc))
	assert.Empty(t, DuplicateAssetPaths(mustParse(t, gameJSON)))
}
