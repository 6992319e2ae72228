package manifest

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// AudioExtensions are tried, in order, against extension-less audio paths.
var AudioExtensions = []string{".ogg", ".aac", ".mp4"}

type FileKind int

const (
	Absent FileKind = iota
	RegularFile
	Directory
)

// Stat reports what exists at p. Anything that cannot be stat'ed, or is
// neither a regular file nor a directory, is Absent.
func Stat(p string) FileKind {
	info, err := os.Stat(p)
	if err != nil {
		return Absent
	}
	switch {
	case info.IsDir():
		return Directory
	case info.Mode().IsRegular():
		return RegularFile
	default:
		return Absent
	}
}

// RemoveScriptEntries drops script assets and globalScripts entries whose
// path is in paths. Other asset types are never touched.
func RemoveScriptEntries(gc *GameConfiguration, paths []string) {
	table := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		table[p] = struct{}{}
	}

	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		if _, ok := a.(*ScriptAsset); !ok {
			continue
		}
		if _, ok := table[a.Path()]; ok {
			gc.Assets.Delete(id)
		}
	}

	if gc.GlobalScripts == nil {
		return
	}
	kept := make([]string, 0, len(gc.GlobalScripts))
	for _, p := range gc.GlobalScripts {
		if _, ok := table[p]; !ok {
			kept = append(kept, p)
		}
	}
	gc.GlobalScripts = kept
}

func scriptPathFor(name string) string {
	return "script/" + name + ".js"
}

// UniqueScriptAssetName returns prefix, or prefix followed by the smallest
// integer, such that the id is unused and "script/<id>.js" is not a path in
// use. Global script paths count as both ids and paths.
func UniqueScriptAssetName(gc *GameConfiguration, prefix string) string {
	ids := map[string]struct{}{}
	paths := map[string]struct{}{}
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		ids[id] = struct{}{}
		paths[a.Path()] = struct{}{}
	}
	for _, p := range gc.GlobalScripts {
		ids[p] = struct{}{}
		paths[p] = struct{}{}
	}
	free := func(name string) bool {
		_, idTaken := ids[name]
		_, pathTaken := paths[scriptPathFor(name)]
		return !idTaken && !pathTaken
	}

	if free(prefix) {
		return prefix
	}
	for i := 0; ; i++ {
		if name := prefix + strconv.Itoa(i); free(name) {
			return name
		}
	}
}

// AddScriptAsset registers a new global script asset under a unique id and
// returns its path.
func AddScriptAsset(gc *GameConfiguration, prefix string) string {
	id := UniqueScriptAssetName(gc, prefix)
	p := scriptPathFor(id)
	gc.Assets.Set(id, NewScriptAsset(p, true))
	return p
}

// UniqueAssetPath returns candidate if no asset uses it, otherwise the first
// "dir/stem<i>.ext" no asset uses.
func UniqueAssetPath(gc *GameConfiguration, candidate string) string {
	used := map[string]struct{}{}
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		used[a.Path()] = struct{}{}
	}
	if _, ok := used[candidate]; !ok {
		return candidate
	}

	dir, base := path.Split(candidate)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; ; i++ {
		p := dir + stem + strconv.Itoa(i) + ext
		if _, ok := used[p]; !ok {
			return p
		}
	}
}

// AudioFilePaths lists assetPath+ext for every audio extension that names a
// regular file under baseDir.
func AudioFilePaths(baseDir, assetPath string) []string {
	var paths []string
	for _, ext := range AudioExtensions {
		p := assetPath + ext
		if Stat(filepath.Join(baseDir, filepath.FromSlash(p))) == RegularFile {
			paths = append(paths, p)
		}
	}
	return paths
}

// ExtractFilePaths lists every file the manifest refers to: asset paths in
// asset order (audio completed with existing extensions), then global
// scripts.
func ExtractFilePaths(gc *GameConfiguration, baseDir string) []string {
	var result []string
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		switch a := a.(type) {
		case *AudioAsset:
			result = append(result, AudioFilePaths(baseDir, a.Path())...)
		case *ScriptAsset, *ImageAsset, *TextAsset, *OtherAsset:
			result = append(result, a.Path())
		}
	}
	result = append(result, gc.GlobalScripts...)
	return result
}

// ExtractScriptAssetFilePaths lists script asset paths, then global scripts
// ending in ".js".
func ExtractScriptAssetFilePaths(gc *GameConfiguration) []string {
	var result []string
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		if s, ok := a.(*ScriptAsset); ok {
			result = append(result, s.Path())
		}
	}
	for _, p := range gc.GlobalScripts {
		if strings.HasSuffix(p, ".js") {
			result = append(result, p)
		}
	}
	return result
}

var (
	lineBreak      = regexp.MustCompile(`\r\n|\r|\n`)
	useStrictLine  = regexp.MustCompile(`^["']use strict["'];?$`)
	esModuleMarker = regexp.MustCompile(`^Object\.defineProperty\(\s*exports\s*,\s*["']__esModule["']\s*,\s*\{\s*value\s*:\s*(true|!0)\s*\}\s*\);?$`)
)

// IsEmptyScriptJs reports whether a compiled script does nothing: it is
// empty, or it is only the "use strict" / __esModule marker a TypeScript
// compiler leaves behind for interface-only sources.
func IsEmptyScriptJs(content []byte) bool {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return true
	}
	var lines []string
	for _, l := range lineBreak.Split(text, -1) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	switch len(lines) {
	case 1:
		return useStrictLine.MatchString(lines[0])
	case 2:
		return useStrictLine.MatchString(lines[0]) && esModuleMarker.MatchString(lines[1])
	default:
		return false
	}
}

// Duplicate is a literal path shared by more than one asset id.
type Duplicate struct {
	Path string
	IDs  []string
}

// DuplicateAssetPaths reports paths referenced by several assets, in order
// of first appearance.
func DuplicateAssetPaths(gc *GameConfiguration) []Duplicate {
	byPath := map[string][]string{}
	var order []string
	for _, id := range gc.Assets.IDs() {
		a, _ := gc.Assets.Get(id)
		if _, seen := byPath[a.Path()]; !seen {
			order = append(order, a.Path())
		}
		byPath[a.Path()] = append(byPath[a.Path()], id)
	}
	var dups []Duplicate
	for _, p := range order {
		if ids := byPath[p]; len(ids) > 1 {
			dups = append(dups, Duplicate{Path: p, IDs: ids})
		}
	}
	return dups
}
