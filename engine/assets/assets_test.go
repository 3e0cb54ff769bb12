package assets

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(data), 0o644))
	}
	return root
}

var spriteTree = map[string]string{
	"shaders/sprite.shadercfg": "[stages.vertex]\nglsl = \"sprite.vert\"\n[stages.pixel]\nglsl = \"sprite.frag\"\n",
	"shaders/sprite.vert":      "#include \"common.glsl\"\nvoid main() {}\n",
	"shaders/sprite.frag":      "void main() {}\n",
	"shaders/common.glsl":      "// common\n",
	"shaders/flat.shadercfg":   "[stages.pixel]\nglsl = \"sprite.frag\"\n",
	"notes.txt":                "ignored\n",
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, AssetTypeShader, determineAssetType("shaders/a.shadercfg"))
	assert.Equal(t, AssetTypeTexture, determineAssetType("textures/a.PNG"))
	assert.Equal(t, AssetTypeTexture, determineAssetType("textures/a.webp"))
	assert.Equal(t, AssetTypeFont, determineAssetType("fonts/a.fnt"))
	assert.Equal(t, AssetTypeNone, determineAssetType("shaders/a.glsl"))
}

func TestLoadAsset(t *testing.T) {
	am, err := NewAssetManager(writeTree(t, spriteTree), config.BackendOpenGL, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Shutdown() })

	res, err := am.LoadAsset("sprite", AssetTypeShader, nil)
	require.NoError(t, err)
	desc := res.Data.(*metadata.ShaderDesc)
	assert.Equal(t, "// common\n\nvoid main() {}\n", desc.Stages[metadata.StageVertex].Source)
	assert.False(t, am.assets["shaders/sprite.shadercfg"].LastLoaded.IsZero())

	_, err = am.LoadAsset("missing", AssetTypeShader, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	_, err = am.LoadAsset("notes.txt", AssetTypeTexture, nil)
	assert.ErrorIs(t, err, ErrAssetNotFound)
	_, err = am.LoadAsset("sprite", AssetTypeNone, nil)
	assert.Error(t, err)

	// without a watcher there is nothing to report
	assert.Nil(t, am.Changes())
}

func TestTrackReplacesDependencies(t *testing.T) {
	am := &AssetManager{loaded: map[string]*loaded{}, dependents: map[string]map[string]struct{}{}}
	am.track("shaders/a.shadercfg", &loaded{name: "a", deps: []string{"shaders/a.shadercfg", "shaders/old.glsl"}})
	am.track("shaders/a.shadercfg", &loaded{name: "a", deps: []string{"shaders/a.shadercfg", "shaders/new.glsl"}})

	assert.Empty(t, am.dependents["shaders/old.glsl"])
	assert.Contains(t, am.dependents["shaders/new.glsl"], "shaders/a.shadercfg")
}

func TestChangesMapFilesToAssets(t *testing.T) {
	root := writeTree(t, spriteTree)
	am, err := NewAssetManager(root, config.BackendOpenGL, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Shutdown() })

	_, err = am.LoadAsset("sprite", AssetTypeShader, nil)
	require.NoError(t, err)
	_, err = am.LoadAsset("flat", AssetTypeShader, nil)
	require.NoError(t, err)

	// an included file reloads only the shader that pulls it in
	require.NoError(t, os.WriteFile(filepath.Join(root, "shaders", "common.glsl"), []byte("// edited\n"), 0o644))
	var got []Reload
	require.Eventually(t, func() bool {
		got = append(got, am.Changes()...)
		return len(got) > 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []Reload{{Name: "sprite", Type: AssetTypeShader}}, got[:1])
	for _, r := range got {
		assert.NotEqual(t, "flat", r.Name)
	}

	// a stage shared by both reloads both
	require.Eventually(t, func() bool { return am.Changes() == nil }, time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "shaders", "sprite.frag"), []byte("void main() { }\n"), 0o644))
	seen := map[string]bool{}
	require.Eventually(t, func() bool {
		for _, r := range am.Changes() {
			seen[r.Name] = true
		}
		return seen["sprite"] && seen["flat"]
	}, 5*time.Second, 10*time.Millisecond)
}

func TestChangesIndexNewAssets(t *testing.T) {
	root := writeTree(t, spriteTree)
	am, err := NewAssetManager(root, config.BackendOpenGL, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = am.Shutdown() })

	_, err = am.LoadAsset("late", AssetTypeShader, nil)
	require.ErrorIs(t, err, ErrAssetNotFound)

	cfg := filepath.Join(root, "shaders", "late.shadercfg")
	require.NoError(t, os.WriteFile(cfg, []byte("[stages.pixel]\nglsl = \"sprite.frag\"\n"), 0o644))
	require.Eventually(t, func() bool {
		am.Changes()
		_, err := am.LoadAsset("late", AssetTypeShader, nil)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLoadShaderConfig(t *testing.T) {
	fsys := fstest.MapFS{
		"post.shadercfg": {Data: []byte("name = \"post\"\n[stages.compute]\nwgsl = \"post.wgsl\"\nentry = \"cs_main\"\n")},
		"post.wgsl":      {Data: []byte("@compute @workgroup_size(8) fn cs_main() {}\n")},
	}
	desc, deps, err := LoadShaderConfig(fsys, "post.shadercfg", config.BackendVulkan)
	require.NoError(t, err)
	assert.Equal(t, "post", desc.Name)
	assert.True(t, desc.Stages[metadata.StageCompute].Present())
	assert.Equal(t, []string{"post.shadercfg", "post.wgsl"}, deps)
}
