package opengl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

func TestFirstApplyIsUnconditional(t *testing.T) {
	fake := newRecordingGL()
	d := New(config.Default(), &fakeSurface{width: 64, height: 64}, fake)
	require.NoError(t, d.Initialize())

	assert.Equal(t, metadata.MaxRenderTargets, fake.count("Disablei("))
	assert.Equal(t, metadata.MaxRenderTargets, fake.count("ColorMaski("))
	assert.Equal(t, metadata.MaxRenderTargets, fake.count("BlendFuncSeparatei("))
	assert.Contains(t, fake.calls, call("CullFace", glapi.BACK))
	assert.Contains(t, fake.calls, call("DepthFunc", glapi.LESS))
	assert.Contains(t, fake.calls, call("Viewport", 0, 0, 64, 64))
}

func TestSetBlendStateIsIdempotent(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := d.CreateBlendState(metadata.AlphaBlendDesc())

	d.SetBlendState(s)
	assert.NotEmpty(t, fake.calls)

	fake.reset()
	before := d.Stats().RedundantSets
	d.SetBlendState(s)
	assert.Empty(t, fake.calls)
	assert.Equal(t, before+1, d.Stats().RedundantSets)
}

func TestBlendDiffTouchesOnlyChangedAttachments(t *testing.T) {
	d, fake, _ := newTestDevice(t)

	a := metadata.DefaultBlendDesc()
	a.IndependentBlend = true
	b := a
	b.RenderTarget[3].BlendEnable = true
	b.RenderTarget[3].SrcBlend = metadata.BlendSrcAlpha

	// same attachments as the default state, so nothing reaches GL
	d.SetBlendState(d.CreateBlendState(a))
	assert.Empty(t, fake.calls)

	d.SetBlendState(d.CreateBlendState(b))
	assert.Equal(t, []string{
		call("Enablei", glapi.BLEND, 3),
		call("BlendFuncSeparatei", 3, glapi.SRC_ALPHA, glapi.ZERO, glapi.ONE, glapi.ZERO),
	}, fake.calls)
}

func TestAlphaToCoverageIsDiffedSeparately(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	desc := metadata.DefaultBlendDesc()
	desc.AlphaToCoverage = true

	d.SetBlendState(d.CreateBlendState(desc))
	assert.Equal(t, []string{call("Enable", glapi.SAMPLE_ALPHA_TO_COVERAGE)}, fake.calls)
}

func TestNilBlendSelectsDefault(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	d.SetBlendState(d.CreateBlendState(metadata.AlphaBlendDesc()))
	fake.reset()

	d.SetBlendState(nil)
	assert.Equal(t, metadata.MaxRenderTargets, fake.count("Disablei("))
	assert.Same(t, d.defaults.blend, d.reg.Blend())
}

func TestRasterizerDiff(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	desc := metadata.DefaultRasterizerDesc()
	desc.CullMode = metadata.CullNone
	s := d.CreateRasterizerState(desc)

	d.SetRasterizerState(s)
	assert.Equal(t, []string{call("Disable", glapi.CULL_FACE)}, fake.calls)

	fake.reset()
	d.SetRasterizerState(s)
	assert.Empty(t, fake.calls)

	desc.FillMode = metadata.FillWireframe
	desc.DepthBias = 2
	d.SetRasterizerState(d.CreateRasterizerState(desc))
	assert.Equal(t, []string{
		call("PolygonMode", glapi.FRONT_AND_BACK, glapi.LINE),
		call("Enable", glapi.POLYGON_OFFSET_FILL),
		call("PolygonOffset", 0, 2),
	}, fake.calls)
}

func TestDepthStencilDiffOnStencilRef(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := d.CreateDepthStencilState(metadata.DefaultDepthStencilDesc())

	d.SetDepthStencilState(s, 0)
	assert.Empty(t, fake.calls)

	d.SetDepthStencilState(s, 7)
	assert.Equal(t, []string{
		call("StencilFuncSeparate", glapi.FRONT, glapi.ALWAYS, 7, 0xFF),
		call("StencilFuncSeparate", glapi.BACK, glapi.ALWAYS, 7, 0xFF),
	}, fake.calls)

	fake.reset()
	d.SetDepthStencilState(s, 7)
	assert.Empty(t, fake.calls)
}

func TestViewportAndTopologyElide(t *testing.T) {
	d, fake, _ := newTestDevice(t)

	d.SetViewport(metadata.FullViewport(640, 480))
	assert.Empty(t, fake.calls)

	d.SetViewport(metadata.Viewport{X: 10, Y: 20, Width: 100, Height: 50, MaxDepth: 1})
	assert.Equal(t, []string{call("Viewport", 10, 20, 100, 50), call("DepthRange", 0, 1)}, fake.calls)

	fake.reset()
	d.SetPrimitiveTopology(metadata.TopologyTriangleList)
	d.SetPrimitiveTopology(metadata.TopologyTriangleList)
	assert.Empty(t, fake.calls)
	assert.Panics(t, func() { d.SetPrimitiveTopology(metadata.TopologyQuadList) })
}

func TestTextureSamplerAndConstantBufferElide(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	tex, err := d.CreateTexture(metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm, Width: 4, Height: 4}, nil)
	require.NoError(t, err)
	sampler, err := d.CreateSamplerState(metadata.DefaultSamplerDesc())
	require.NoError(t, err)
	ubo, err := d.CreateBuffer(metadata.BufferDesc{Size: 64, Bind: metadata.BindConstantBuffer}, nil)
	require.NoError(t, err)
	glTex, _ := d.textures.Get(tex.ID)
	glUBO, _ := d.buffers.Get(ubo.ID)
	fake.reset()

	d.SetTexture(2, tex)
	assert.Equal(t, []string{
		call("ActiveTexture", glapi.TEXTURE0+2),
		call("BindTexture", glapi.TEXTURE_2D, glTex.name),
	}, fake.calls)

	fake.reset()
	d.SetTexture(2, tex)
	d.SetSampler(1, sampler)
	d.SetSampler(1, sampler)
	d.SetConstantBuffer(0, ubo)
	d.SetConstantBuffer(0, ubo)
	assert.Equal(t, []string{
		call("BindSampler", 1, sampler.Native()),
		call("BindBufferBase", glapi.UNIFORM_BUFFER, 0, glUBO.name),
	}, fake.calls)

	fake.reset()
	d.SetTexture(2, nil)
	assert.Equal(t, []string{call("BindTexture", glapi.TEXTURE_2D, 0)}, fake.calls)

	assert.Panics(t, func() { d.SetTexture(16, tex) })
}

func TestTextureUploadKeepsActiveUnit(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	desc := metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm, Width: 4, Height: 4, MipLevels: 1, Bind: metadata.BindShaderInput}
	shadow, err := d.CreateTexture(desc, nil)
	require.NoError(t, err)
	d.SetTexture(3, shadow)
	require.Equal(t, uint32(3), fake.active)

	_, err = d.CreateTexture(desc, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), fake.active)
	require.NoError(t, d.UpdateTexture(shadow, 0, 0, 0, 1, 1, []byte{1, 2, 3, 4}))
	assert.Equal(t, uint32(3), fake.active)

	// the shadowed unit agrees with the context, so rebinding elides
	fake.reset()
	d.SetTexture(3, shadow)
	assert.Empty(t, fake.calls)
}

func TestSamplerStateParameters(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	desc := metadata.DefaultSamplerDesc()
	desc.MipFilter = metadata.FilterNearest
	desc.AddressU = metadata.AddressBorder
	desc.CompareEnable = true
	desc.CompareFunc = metadata.CompareLessEqual

	s, err := d.CreateSamplerState(desc)
	require.NoError(t, err)
	name := s.Native()
	assert.Contains(t, fake.calls, call("SamplerParameteri", name, glapi.TEXTURE_MIN_FILTER, glapi.LINEAR_MIPMAP_NEAREST))
	assert.Contains(t, fake.calls, call("SamplerParameteri", name, glapi.TEXTURE_WRAP_S, glapi.CLAMP_TO_BORDER))
	assert.Contains(t, fake.calls, call("SamplerParameteri", name, glapi.TEXTURE_COMPARE_FUNC, glapi.LEQUAL))
	assert.Equal(t, 1, fake.count("SamplerParameterfv("))
}
