package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-gpu/engine/assets/loaders"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeShader
	AssetTypeTexture
	AssetTypeFont
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeShader:
		return "shader"
	case AssetTypeTexture:
		return "texture"
	case AssetTypeFont:
		return "font"
	}
	return "none"
}

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

/** @brief An asset whose files changed since it was last loaded. */
type Reload struct {
	Name string
	Type AssetType
}

type loaded struct {
	name string
	kind AssetType
	deps []string
}

/**
 * @brief Indexes an asset directory, dispatches loads by type and, when
 * watching, maps file changes back to the assets built from them.
 */
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	loaded     map[string]*loaded
	dependents map[string]map[string]struct{}

	mutex   sync.RWMutex
	watcher *Watcher
}

// NewAssetManager indexes root. backend picks the shader language of
// .shadercfg stages. With watch set, Changes reports edited assets.
func NewAssetManager(root, backend string, watch bool) (*AssetManager, error) {
	am := &AssetManager{
		root:       root,
		assets:     make(map[string]AssetInfo),
		loaders:    make(map[AssetType]Loader),
		loaded:     make(map[string]*loaded),
		dependents: make(map[string]map[string]struct{}),
	}

	if err := am.index(); err != nil {
		return nil, err
	}

	fsys := os.DirFS(root)
	am.registerLoader(AssetTypeShader, &loaders.ShaderLoader{FS: fsys, Backend: backend})
	am.registerLoader(AssetTypeTexture, &loaders.TextureLoader{FS: fsys})
	am.registerLoader(AssetTypeFont, &loaders.BitmapFontLoader{ResourcePath: root})

	if watch {
		w, err := NewWatcher(root)
		if err != nil {
			return nil, err
		}
		am.watcher = w
	}
	return am, nil
}

func (am *AssetManager) Shutdown() error {
	if am.watcher == nil {
		return nil
	}
	return am.watcher.Close()
}

func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.loaders[assetType] = loader
}

func assetPath(name string, assetType AssetType) (string, error) {
	switch assetType {
	case AssetTypeShader:
		return fmt.Sprintf("shaders/%s.shadercfg", name), nil
	case AssetTypeFont:
		return fmt.Sprintf("fonts/%s.fnt", name), nil
	case AssetTypeTexture:
		return fmt.Sprintf("textures/%s", name), nil
	}
	return "", fmt.Errorf("unknown asset type %d", assetType)
}

// LoadAsset loads or reloads an asset from disk. Texture names carry their
// extension; shaders and fonts do not.
func (am *AssetManager) LoadAsset(name string, assetType AssetType, params any) (*loaders.Resource, error) {
	path, err := assetPath(name, assetType)
	if err != nil {
		return nil, err
	}

	am.mutex.RLock()
	_, exists := am.assets[path]
	loader, loaderExists := am.loaders[assetType]
	am.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type %s", assetType)
	}

	res, err := loader.Load(path, params)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastLoaded: time.Now()}
	am.track(path, &loaded{name: name, kind: assetType, deps: slashPaths(res.Dependencies)})
	am.mutex.Unlock()

	core.LogDebug("loaded %s %s (%d bytes)", assetType, name, res.DataSize)
	return res, nil
}

func (am *AssetManager) UnloadAsset(resource *loaders.Resource, assetType AssetType) error {
	loader, ok := am.loaders[assetType]
	if !ok {
		return fmt.Errorf("no loader registered for asset type %s", assetType)
	}
	return loader.Unload(resource)
}

// track replaces the dependency edges of path. Caller holds the write lock.
func (am *AssetManager) track(path string, l *loaded) {
	if prev, ok := am.loaded[path]; ok {
		for _, dep := range prev.deps {
			delete(am.dependents[dep], path)
		}
	}
	am.loaded[path] = l
	for _, dep := range l.deps {
		set, ok := am.dependents[dep]
		if !ok {
			set = make(map[string]struct{})
			am.dependents[dep] = set
		}
		set[path] = struct{}{}
	}
}

// Changes drains the watcher and returns the loaded assets whose files
// changed, in stable order. It returns nil when not watching.
func (am *AssetManager) Changes() []Reload {
	if am.watcher == nil {
		return nil
	}
	changed := am.watcher.Poll()
	if len(changed) == 0 {
		return nil
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	hit := make(map[string]struct{})
	for _, file := range changed {
		am.indexFile(file)
		for path := range am.dependents[file] {
			hit[path] = struct{}{}
		}
	}

	out := make([]Reload, 0, len(hit))
	for path := range hit {
		l := am.loaded[path]
		out = append(out, Reload{Name: l.name, Type: l.kind})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (am *AssetManager) index() error {
	return filepath.WalkDir(am.root, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(am.root, walkPath)
		if err != nil {
			return err
		}
		am.indexFile(filepath.ToSlash(rel))
		return nil
	})
}

func (am *AssetManager) indexFile(path string) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return
	}
	if _, ok := am.assets[path]; !ok {
		am.assets[path] = AssetInfo{Path: path, Type: assetType}
	}
}

func determineAssetType(file string) AssetType {
	switch strings.ToLower(path.Ext(file)) {
	case ".shadercfg":
		return AssetTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return AssetTypeTexture
	case ".fnt":
		return AssetTypeFont
	default:
		return AssetTypeNone
	}
}

func slashPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.ToSlash(p)
	}
	return out
}

// LoadShaderConfig reads a .shadercfg from fsys without an AssetManager.
func LoadShaderConfig(fsys fs.FS, name, backend string) (*metadata.ShaderDesc, []string, error) {
	res, err := (&loaders.ShaderLoader{FS: fsys, Backend: backend}).Load(name, nil)
	if err != nil {
		return nil, nil, err
	}
	return res.Data.(*metadata.ShaderDesc), res.Dependencies, nil
}
