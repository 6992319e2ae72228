package manifest

import (
	"bytes"
	"errors"

	"github.com/tidwall/gjson"
)

type AssetType string

const (
	TypeScript AssetType = "script"
	TypeAudio  AssetType = "audio"
	TypeImage  AssetType = "image"
	TypeText   AssetType = "text"
	TypeVideo  AssetType = "video"
)

// Asset is one entry of game.json "assets". The concrete type is one of
// *ScriptAsset, *AudioAsset, *ImageAsset, *TextAsset or *OtherAsset.
type Asset interface {
	Type() AssetType
	Path() string
	SetPath(p string)
	// VirtualPath is the path scripts use to refer to the asset after its
	// file has been renamed.
	VirtualPath() string
	SetVirtualPath(p string)

	marshal() ([]byte, error)
}

type assetBase struct {
	path        string
	virtualPath string
	raw         []byte
}

func (b *assetBase) Path() string { return b.path }
func (b *assetBase) SetPath(p string) { b.path = p }
func (b *assetBase) VirtualPath() string { return b.virtualPath }
func (b *assetBase) SetVirtualPath(p string) { b.virtualPath = p }

// begin starts an edit of the original asset object with the type set first,
// so freshly created assets serialize as {"type": ..., ...}.
func (b *assetBase) begin(t AssetType) *editor {
	e := newEditor(b.raw)
	e.set("type", string(t))
	return e
}

func (b *assetBase) finish(e *editor) ([]byte, error) {
	e.set("path", b.path)
	if b.virtualPath != "" {
		e.set("virtualPath", b.virtualPath)
	}
	return e.bytes()
}

type ScriptAsset struct {
	assetBase
	Global bool
}

func NewScriptAsset(path string, global bool) *ScriptAsset {
	return &ScriptAsset{assetBase: assetBase{path: path}, Global: global}
}

func (a *ScriptAsset) Type() AssetType { return TypeScript }

func (a *ScriptAsset) marshal() ([]byte, error) {
	e := a.begin(TypeScript)
	e.setIfPresent("global", a.Global, a.Global)
	return a.finish(e)
}

// AudioAsset paths carry no extension; the files on disk are the path plus
// one of AudioExtensions.
type AudioAsset struct {
	assetBase
	SystemID string
	Duration int64
}

func NewAudioAsset(path, systemID string, duration int64) *AudioAsset {
	return &AudioAsset{assetBase: assetBase{path: path}, SystemID: systemID, Duration: duration}
}

func (a *AudioAsset) Type() AssetType { return TypeAudio }

func (a *AudioAsset) marshal() ([]byte, error) {
	e := a.begin(TypeAudio)
	e.setIfPresent("systemId", a.SystemID, a.SystemID != "")
	e.setIfPresent("duration", a.Duration, a.Duration != 0)
	return a.finish(e)
}

type ImageAsset struct {
	assetBase
	Width  int
	Height int
}

func NewImageAsset(path string, width, height int) *ImageAsset {
	return &ImageAsset{assetBase: assetBase{path: path}, Width: width, Height: height}
}

func (a *ImageAsset) Type() AssetType { return TypeImage }

func (a *ImageAsset) marshal() ([]byte, error) {
	e := a.begin(TypeImage)
	e.setIfPresent("width", a.Width, a.Width != 0)
	e.setIfPresent("height", a.Height, a.Height != 0)
	return a.finish(e)
}

type TextAsset struct {
	assetBase
}

func NewTextAsset(path string) *TextAsset {
	return &TextAsset{assetBase: assetBase{path: path}}
}

func (a *TextAsset) Type() AssetType { return TypeText }

func (a *TextAsset) marshal() ([]byte, error) {
	return a.finish(a.begin(TypeText))
}

// OtherAsset holds asset kinds whose fields the converter never reads
// (video and anything newer); only the path is interpreted.
type OtherAsset struct {
	assetBase
	Kind AssetType
}

func (a *OtherAsset) Type() AssetType { return a.Kind }

func (a *OtherAsset) marshal() ([]byte, error) {
	return a.finish(a.begin(a.Kind))
}

func parseAsset(value gjson.Result) (Asset, error) {
	if !value.IsObject() {
		return nil, errors.New("not an object")
	}
	path := value.Get("path")
	if path.Type != gjson.String {
		return nil, errors.New("path is not a string")
	}
	base := assetBase{
		path:        path.String(),
		virtualPath: value.Get("virtualPath").String(),
		raw:         bytes.Clone([]byte(value.Raw)),
	}
	switch t := AssetType(value.Get("type").String()); t {
	case TypeScript:
		return &ScriptAsset{assetBase: base, Global: value.Get("global").Bool()}, nil
	case TypeAudio:
		return &AudioAsset{
			assetBase: base,
			SystemID:  value.Get("systemId").String(),
			Duration:  value.Get("duration").Int(),
		}, nil
	case TypeImage:
		return &ImageAsset{
			assetBase: base,
			Width:     int(value.Get("width").Int()),
			Height:    int(value.Get("height").Int()),
		}, nil
	case TypeText:
		return &TextAsset{assetBase: base}, nil
	case "":
		return nil, errors.New("missing type")
	default:
		return &OtherAsset{assetBase: base, Kind: t}, nil
	}
}
