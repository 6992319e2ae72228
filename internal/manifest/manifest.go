package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/exp/slices"
)

// FileName is the manifest file at the root of a game package.
const FileName = "game.json"

var ErrInvalid = errors.New("invalid game.json")

// GameConfiguration is the in-memory game.json. Fields the tool does not
// interpret are kept in raw and written back untouched.
type GameConfiguration struct {
	Width  int
	Height int
	FPS    float64
	Main   string
	Assets *Assets
	// nil when the manifest has no globalScripts key
	GlobalScripts []string

	raw []byte
}

func Read(path string) (*GameConfiguration, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	gc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return gc, nil
}

func Parse(data []byte) (*GameConfiguration, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level value is not an object", ErrInvalid)
	}

	gc := &GameConfiguration{
		Width:  int(doc.Get("width").Int()),
		Height: int(doc.Get("height").Int()),
		FPS:    doc.Get("fps").Float(),
		Main:   doc.Get("main").String(),
		Assets: NewAssets(),
		raw:    bytes.Clone(data),
	}

	if assets := doc.Get("assets"); assets.Exists() {
		if !assets.IsObject() {
			return nil, fmt.Errorf("%w: assets is not an object", ErrInvalid)
		}
		var perr error
		assets.ForEach(func(key, value gjson.Result) bool {
			a, err := parseAsset(value)
			if err != nil {
				perr = fmt.Errorf("%w: asset %q: %s", ErrInvalid, key.String(), err)
				return false
			}
			gc.Assets.Set(key.String(), a)
			return true
		})
		if perr != nil {
			return nil, perr
		}
	}

	if gs := doc.Get("globalScripts"); gs.Exists() {
		if !gs.IsArray() {
			return nil, fmt.Errorf("%w: globalScripts is not an array", ErrInvalid)
		}
		gc.GlobalScripts = []string{}
		for _, p := range gs.Array() {
			gc.GlobalScripts = append(gc.GlobalScripts, p.String())
		}
	}
	return gc, nil
}

// MarshalJSON renders the manifest compactly, starting from the document it
// was parsed from so unknown keys keep their values and order.
func (gc *GameConfiguration) MarshalJSON() ([]byte, error) {
	e := newEditor(gc.raw)
	e.setIfPresent("width", gc.Width, gc.Width != 0)
	e.setIfPresent("height", gc.Height, gc.Height != 0)
	e.setIfPresent("fps", gc.FPS, gc.FPS != 0)
	if gc.Main != "" {
		e.set("main", gc.Main)
	} else {
		e.delete("main")
	}

	assets, err := gc.Assets.marshal()
	if err != nil {
		return nil, err
	}
	e.setRaw("assets", assets)

	if gc.GlobalScripts != nil {
		e.set("globalScripts", gc.GlobalScripts)
	} else {
		e.delete("globalScripts")
	}
	return e.bytes()
}

// Marshal renders the manifest the way it is persisted: tab indented with a
// trailing newline.
func Marshal(gc *GameConfiguration) ([]byte, error) {
	compact, err := gc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(compact), "", "\t"); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func Write(gc *GameConfiguration, path string) error {
	data, err := Marshal(gc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", FileName, err)
	}
	return os.WriteFile(path, data, 0644) // #nosec G306
}

// Assets keeps asset ids in manifest order.
type Assets struct {
	ids  []string
	byID map[string]Asset
}

func NewAssets() *Assets {
	return &Assets{byID: map[string]Asset{}}
}

func (a *Assets) Len() int {
	return len(a.ids)
}

// IDs returns a copy of the ids in enumeration order.
func (a *Assets) IDs() []string {
	return slices.Clone(a.ids)
}

func (a *Assets) Get(id string) (Asset, bool) {
	asset, ok := a.byID[id]
	return asset, ok
}

func (a *Assets) Has(id string) bool {
	_, ok := a.byID[id]
	return ok
}

// Set replaces an existing asset in place or appends a new one.
func (a *Assets) Set(id string, asset Asset) {
	if _, ok := a.byID[id]; !ok {
		a.ids = append(a.ids, id)
	}
	a.byID[id] = asset
}

func (a *Assets) Delete(id string) {
	if _, ok := a.byID[id]; !ok {
		return
	}
	delete(a.byID, id)
	if i := slices.Index(a.ids, id); i >= 0 {
		a.ids = slices.Delete(a.ids, i, i+1)
	}
}

func (a *Assets) marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range a.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		value, err := a.byID[id].marshal()
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// editor applies sjson edits and keeps the first error.
type editor struct {
	doc []byte
	err error
}

func newEditor(raw []byte) *editor {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &editor{doc: []byte("{}")}
	}
	return &editor{doc: bytes.Clone(raw)}
}

func (e *editor) set(path string, value any) {
	if e.err != nil {
		return
	}
	e.doc, e.err = sjson.SetBytes(e.doc, path, value)
}

// setIfPresent writes value when the key already exists or when force is set.
func (e *editor) setIfPresent(path string, value any, force bool) {
	if force || gjson.GetBytes(e.doc, path).Exists() {
		e.set(path, value)
	}
}

func (e *editor) setRaw(path string, value []byte) {
	if e.err != nil {
		return
	}
	e.doc, e.err = sjson.SetRawBytes(e.doc, path, value)
}

func (e *editor) delete(path string) {
	if e.err != nil || !gjson.GetBytes(e.doc, path).Exists() {
		return
	}
	e.doc, e.err = sjson.DeleteBytes(e.doc, path)
}

func (e *editor) bytes() ([]byte, error) {
	return e.doc, e.err
}
