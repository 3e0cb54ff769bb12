package loaders

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func shaderFS() fstest.MapFS {
	return fstest.MapFS{
		"shaders/sprite.shadercfg": {Data: []byte(`
name = "sprite"

[stages.vertex]
glsl = "sprite.vert"
wgsl = "sprite.wgsl"
entry = "vs_main"

[stages.pixel]
glsl = "sprite.frag"
wgsl = "sprite.wgsl"
entry = "ps_main"
`)},
		"shaders/sprite.vert":           {Data: []byte("#version 410 core\n#include \"common/transform.glsl\"\nvoid main() {}\n")},
		"shaders/sprite.frag":           {Data: []byte("#version 410 core\nvoid main() {}\n")},
		"shaders/sprite.wgsl":           {Data: []byte("fn vs_main() {}\nfn ps_main() {}\n")},
		"shaders/common/transform.glsl": {Data: []byte("uniform mat4 transform;\n")},
	}
}

func TestShaderLoaderPicksBackendSources(t *testing.T) {
	fsys := shaderFS()

	gl := &ShaderLoader{FS: fsys, Backend: config.BackendOpenGL}
	res, err := gl.Load("shaders/sprite.shadercfg", nil)
	require.NoError(t, err)
	desc := res.Data.(*metadata.ShaderDesc)
	assert.Equal(t, "sprite", desc.Name)
	assert.Equal(t, "#version 410 core\nuniform mat4 transform;\n\nvoid main() {}\n", desc.Stages[metadata.StageVertex].Source)
	assert.Equal(t, "vs_main", desc.Stages[metadata.StageVertex].EntryPoint)
	assert.Equal(t, "ps_main", desc.Stages[metadata.StagePixel].EntryPoint)
	assert.Empty(t, desc.Stages[metadata.StageGeometry].Source)
	assert.Equal(t, []string{
		"shaders/sprite.shadercfg",
		"shaders/sprite.vert",
		"shaders/common/transform.glsl",
		"shaders/sprite.frag",
	}, res.Dependencies)

	vk := &ShaderLoader{FS: fsys, Backend: config.BackendVulkan}
	res, err = vk.Load("shaders/sprite.shadercfg", nil)
	require.NoError(t, err)
	desc = res.Data.(*metadata.ShaderDesc)
	assert.Equal(t, desc.Stages[metadata.StageVertex].Source, desc.Stages[metadata.StagePixel].Source)
	assert.Contains(t, desc.Stages[metadata.StagePixel].Source, "fn ps_main")
}

func TestShaderLoaderDefaultsNameToFile(t *testing.T) {
	fsys := fstest.MapFS{
		"flat.shadercfg": {Data: []byte("[stages.pixel]\nglsl = \"flat.frag\"\n")},
		"flat.frag":      {Data: []byte("void main() {}\n")},
	}
	res, err := (&ShaderLoader{FS: fsys, Backend: config.BackendOpenGL}).Load("flat.shadercfg", nil)
	require.NoError(t, err)
	assert.Equal(t, "flat", res.Name)
}

func TestShaderLoaderErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
	}{
		{"unknown stage", "[stages.tessellation]\nglsl = \"a.glsl\"\n"},
		{"unknown key", "[stages.vertex]\nglsl = \"a.glsl\"\nhlsl = \"a.hlsl\"\n"},
		{"missing file", "[stages.vertex]\nglsl = \"missing.glsl\"\n"},
		{"no stage for backend", "[stages.vertex]\nwgsl = \"a.wgsl\"\n"},
		{"broken toml", "[stages.vertex\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"a.shadercfg": {Data: []byte(tt.cfg)},
				"a.glsl":      {Data: []byte("void main() {}\n")},
				"a.wgsl":      {Data: []byte("fn main() {}\n")},
			}
			_, err := (&ShaderLoader{FS: fsys, Backend: config.BackendOpenGL}).Load("a.shadercfg", nil)
			assert.Error(t, err)
		})
	}
}

func TestPreprocessNestedIncludes(t *testing.T) {
	fsys := fstest.MapFS{
		"main.glsl":       {Data: []byte("#include \"lib/a.glsl\"\n  #include \"lib/b.glsl\"  \nvoid main() {}\n")},
		"lib/a.glsl":      {Data: []byte("// a\n#include \"../shared.glsl\"\n")},
		"lib/b.glsl":      {Data: []byte("// b\n")},
		"shared.glsl":     {Data: []byte("// shared\n")},
		"lib/unused.glsl": {Data: []byte("// unused\n")},
	}
	src, files, err := Preprocess(fsys, "main.glsl")
	require.NoError(t, err)
	assert.Equal(t, "// a\n// shared\n\n\n// b\n\nvoid main() {}\n", src)
	assert.Equal(t, []string{"main.glsl", "lib/a.glsl", "shared.glsl", "lib/b.glsl"}, files)
}

func TestPreprocessIgnoresCommentedDirective(t *testing.T) {
	fsys := fstest.MapFS{
		"main.glsl": {Data: []byte("// #include \"missing.glsl\"\nvoid main() {}\n")},
	}
	src, _, err := Preprocess(fsys, "main.glsl")
	require.NoError(t, err)
	assert.Contains(t, src, "// #include")
}

func TestPreprocessDetectsCycles(t *testing.T) {
	fsys := fstest.MapFS{
		"a.glsl": {Data: []byte("#include \"b.glsl\"\n")},
		"b.glsl": {Data: []byte("#include \"a.glsl\"\n")},
	}
	_, _, err := Preprocess(fsys, "a.glsl")
	assert.ErrorIs(t, err, ErrIncludeCycle)
	assert.ErrorContains(t, err, "a.glsl -> b.glsl -> a.glsl")

	self := fstest.MapFS{"s.glsl": {Data: []byte("#include \"s.glsl\"\n")}}
	_, _, err = Preprocess(self, "s.glsl")
	assert.ErrorIs(t, err, ErrIncludeCycle)
}

func TestPreprocessAllowsRepeatedIncludeWithoutCycle(t *testing.T) {
	fsys := fstest.MapFS{
		"main.glsl": {Data: []byte("#include \"x.glsl\"\n#include \"x.glsl\"\n")},
		"x.glsl":    {Data: []byte("x\n")},
	}
	src, files, err := Preprocess(fsys, "main.glsl")
	require.NoError(t, err)
	assert.Equal(t, "x\n\nx\n\n", src)
	assert.Equal(t, []string{"main.glsl", "x.glsl"}, files)
}
