package opengl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

const (
	testVS = "void main() { gl_Position = vec4(0.0); }\n"
	testPS = "out vec4 o_Color;\nvoid main() { o_Color = vec4(1.0); }\n"
)

func shaderDesc(name, vs, ps string) metadata.ShaderDesc {
	desc := metadata.ShaderDesc{Name: name}
	if vs != "" {
		desc = desc.Stage(metadata.StageVertex, metadata.ShaderStageSource{Source: vs})
	}
	if ps != "" {
		desc = desc.Stage(metadata.StagePixel, metadata.ShaderStageSource{Source: ps})
	}
	return desc
}

func mustShader(t *testing.T, d *Device, name, vs, ps string) *metadata.Shader {
	t.Helper()
	s, err := d.CreateShader(shaderDesc(name, vs, ps))
	require.NoError(t, err)
	return s
}

func TestSameAssignmentsReuseProgram(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	a := mustShader(t, d, "a", testVS, testPS)
	b := mustShader(t, d, "b", testVS, testPS+"// b\n")

	d.SetShader(a, metadata.MaskGraphics)
	require.True(t, d.ActiveProgramValid())
	first := d.program

	d.SetShader(b, metadata.MaskGraphics)
	assert.NotEqual(t, first, d.program)

	d.SetShader(a, metadata.MaskGraphics)
	assert.Equal(t, first, d.program)
	assert.Equal(t, 2, fake.count("CreateProgram("))
	assert.Equal(t, uint64(2), d.Stats().ProgramLinks)
}

func TestSetShaderWithoutSlotChangeIsNoop(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := mustShader(t, d, "s", testVS, testPS)
	d.SetShader(s, metadata.MaskGraphics)
	fake.reset()

	d.SetShader(s, metadata.MaskGraphics)
	assert.Empty(t, fake.calls)
}

func TestUnimplementedStageClearsSlot(t *testing.T) {
	d, _, _ := newTestDevice(t)
	full := mustShader(t, d, "full", testVS, testPS)
	vsOnly := mustShader(t, d, "vs", testVS+"// vs only\n", "")

	d.SetShader(full, metadata.MaskGraphics)
	d.SetShader(vsOnly, metadata.MaskGraphics)

	assert.Equal(t, vsOnly.ID, d.reg.Shader(metadata.StageVertex))
	assert.Equal(t, core.InvalidID, d.reg.Shader(metadata.StagePixel))
	assert.True(t, d.ActiveProgramValid())
}

func TestFailedLinkIsCached(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	bad := mustShader(t, d, "bad", testVS, "// LINK_FAIL\n"+testPS)

	d.SetShader(bad, metadata.MaskGraphics)
	assert.False(t, d.ActiveProgramValid())
	assert.Equal(t, 1, fake.count("LinkProgram("))
	assert.Equal(t, 1, fake.count("DeleteProgram("))
	assert.Equal(t, uint32(0), fake.program)

	d.SetShader(nil, metadata.MaskGraphics)
	d.SetShader(bad, metadata.MaskGraphics)
	assert.False(t, d.ActiveProgramValid())
	assert.Equal(t, 1, fake.count("LinkProgram("))
	assert.Equal(t, uint64(1), d.Stats().LinkFailures)

	d.SetPrimitiveTopology(metadata.TopologyTriangleList)
	d.Draw(3, 0)
	assert.Zero(t, fake.count("DrawArrays("))
}

func TestDestroyShaderPurgesPrograms(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := mustShader(t, d, "s", testVS, testPS)
	d.SetShader(s, metadata.MaskGraphics)
	program := d.program
	require.Equal(t, 1, d.programs.Len())

	d.DestroyShader(s)
	assert.Contains(t, fake.calls, call("DeleteProgram", program))
	assert.Zero(t, d.programs.Len())
	assert.Zero(t, d.programs.References(s.ID))
	assert.Equal(t, core.InvalidID, d.reg.Shader(metadata.StageVertex))
	assert.False(t, d.ActiveProgramValid())
	assert.Panics(t, func() { d.SetShader(s, metadata.MaskGraphics) })
}

func TestDestroyShaderPurgesFailedLinks(t *testing.T) {
	d, _, _ := newTestDevice(t)
	bad := mustShader(t, d, "bad", testVS, "// LINK_FAIL\n"+testPS)
	d.SetShader(bad, metadata.MaskGraphics)
	require.Equal(t, 1, d.programs.Len())

	d.DestroyShader(bad)
	assert.Zero(t, d.programs.Len())
}

func TestUpdateShaderPurgesAndRelinks(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := mustShader(t, d, "s", testVS, testPS)
	d.SetShader(s, metadata.MaskGraphics)
	old := d.program

	require.NoError(t, d.UpdateShader(s, shaderDesc("s", testVS, testPS+"// edited\n")))
	assert.Contains(t, fake.calls, call("DeleteProgram", old))
	assert.NotEqual(t, old, d.program)
	assert.True(t, d.ActiveProgramValid())
	assert.Equal(t, s.ID, d.reg.Shader(metadata.StagePixel))
	assert.Equal(t, 1, d.programs.Len())
}

func TestUpdateShaderDropsVanishedStages(t *testing.T) {
	d, _, _ := newTestDevice(t)
	s := mustShader(t, d, "s", testVS, testPS)
	d.SetShader(s, metadata.MaskGraphics)

	require.NoError(t, d.UpdateShader(s, shaderDesc("s", testVS, "")))
	assert.False(t, s.Implements(metadata.StagePixel))
	assert.Equal(t, core.InvalidID, d.reg.Shader(metadata.StagePixel))
	assert.Equal(t, s.ID, d.reg.Shader(metadata.StageVertex))
}

func TestUpdateShaderKeepsStagesOnCompileError(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := mustShader(t, d, "s", testVS, testPS)
	d.SetShader(s, metadata.MaskGraphics)
	program := d.program
	fake.reset()

	err := d.UpdateShader(s, shaderDesc("s", testVS, "#error broken\n"+testPS))
	assert.ErrorIs(t, err, core.ErrCompile)
	assert.Equal(t, program, d.program)
	assert.True(t, d.ActiveProgramValid())
	assert.Zero(t, fake.count("DeleteProgram("))
	assert.Equal(t, metadata.MaskVertex|metadata.MaskPixel, s.Mask)
}

func TestCreateShaderReportsFailedStages(t *testing.T) {
	d, _, _ := newTestDevice(t)
	s, err := d.CreateShader(shaderDesc("half", testVS, "#error nope\n"+testPS))
	assert.ErrorIs(t, err, core.ErrCompile)
	require.NotNil(t, s)
	assert.True(t, s.Implements(metadata.StageVertex))
	assert.False(t, s.Implements(metadata.StagePixel))

	_, err = d.CreateShader(metadata.ShaderDesc{Name: "compute"}.Stage(metadata.StageCompute,
		metadata.ShaderStageSource{Source: "void main() {}"}))
	assert.ErrorIs(t, err, core.ErrUnsupported)

	_, err = d.CreateShader(shaderDesc("empty", "void other() {}", ""))
	assert.ErrorIs(t, err, core.ErrResourceCreation)
}

func TestStageSourcePreamble(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	desc := metadata.ShaderDesc{Name: "entry"}.Stage(metadata.StageVertex, metadata.ShaderStageSource{
		Source:     "#version 330 core\nvoid vs_main() {}\n",
		EntryPoint: "vs_main",
	})
	s, err := d.CreateShader(desc)
	require.NoError(t, err)
	gs, _ := d.shaders.Get(s.ID)

	src := fake.sources[gs.stages[metadata.StageVertex]]
	assert.True(t, strings.HasPrefix(src, "#version 330 core\n"))
	assert.Contains(t, src, "#define ANIMA_STAGE_VERTEX 1\n")
	assert.Contains(t, src, "#define vs_main main\n")
	assert.Equal(t, 1, strings.Count(src, "#version"))
}

func TestProgramInterfaceBindings(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	ps := "layout(std140) uniform Constants0 { vec4 tint; };\nuniform sampler2D u_Texture1;\n" + testPS
	s := mustShader(t, d, "bound", testVS, ps)

	d.SetShader(s, metadata.MaskGraphics)
	assert.Contains(t, fake.calls, call("UniformBlockBinding", d.program, 0, 0))
	assert.Contains(t, fake.calls, call("Uniform1i", len("u_Texture1"), 1))
	assert.Equal(t, 1, fake.count("Uniform1i("))
}
