package opengl

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

func decodeFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func TestImmediateRoundTrip(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	im := d.Immediate()

	require.NoError(t, im.Begin(metadata.TopologyTriangleList))
	for i := 0; i < 3; i++ {
		im.Emit()
		require.NoError(t, im.Position(float32(i), 2, 3))
		require.NoError(t, im.TexCoord(0.5, 1))
		require.NoError(t, im.Color(1, 0, 0, 1))
	}
	require.NoError(t, im.End())

	data := fake.uploads[d.immediateBackend.vbo]
	require.Len(t, data, 3*36)
	floats := decodeFloats(data)
	assert.Equal(t, []float32{2, 2, 3, 0.5, 1, 1, 0, 0, 1}, floats[18:27])
	assert.Equal(t, []string{call("DrawArrays", glapi.TRIANGLES, 0, 3)}, fake.matching("DrawArrays("))
	assert.Contains(t, fake.calls, call("BindTexture", glapi.TEXTURE_2D, d.immediateBackend.white))
	assert.Equal(t, uint64(1), d.Stats().DrawCalls)
}

func TestImmediateEmptyBatchDrawsNothing(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	im := d.Immediate()
	require.NoError(t, im.Begin(metadata.TopologyPointList))
	require.NoError(t, im.End())
	fake.reset()

	require.NoError(t, im.Begin(metadata.TopologyPointList))
	require.NoError(t, im.End())
	assert.Empty(t, fake.calls)
}

func TestImmediateRestoresDeviceBindings(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	s := mustShader(t, d, "lit", testVS, testPS)
	d.SetShader(s, metadata.MaskGraphics)
	layout := twoSlotLayout(t, d)
	d.SetInputLayout(layout)
	d.SetVertexBuffers([]*metadata.Buffer{vertexBuffer(t, d, 12), vertexBuffer(t, d, 8)}, nil, false)

	desc := metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm, Width: 4, Height: 4, MipLevels: 1, Bind: metadata.BindShaderInput}
	albedo, err := d.CreateTexture(desc, nil)
	require.NoError(t, err)
	shadow, err := d.CreateTexture(desc, nil)
	require.NoError(t, err)
	sampler, err := d.CreateSamplerState(metadata.DefaultSamplerDesc())
	require.NoError(t, err)
	d.SetTexture(0, albedo)
	d.SetSampler(0, sampler)
	d.SetTexture(3, shadow)

	program, vao := fake.program, fake.vao
	albedoName := fake.tex2D[0]
	require.NotZero(t, program)
	require.NotZero(t, vao)
	require.Equal(t, uint32(3), fake.active)

	im := d.Immediate()
	require.NoError(t, im.Begin(metadata.TopologyQuadList))
	for i := 0; i < 4; i++ {
		im.Emit()
	}
	fake.reset()
	require.NoError(t, im.End())

	assert.Equal(t, []string{call("DrawArrays", glapi.TRIANGLES, 0, 6)}, fake.matching("DrawArrays("))
	assert.Equal(t, program, fake.program)
	assert.Equal(t, vao, fake.vao)
	assert.Equal(t, uint32(3), fake.active)
	assert.Equal(t, albedoName, fake.tex2D[0])
	assert.Equal(t, sampler.Native(), fake.samplers[0])

	// the register still reflects the caller's state
	fake.reset()
	d.SetShader(s, metadata.MaskGraphics)
	d.SetTexture(3, shadow)
	d.SetSampler(0, sampler)
	assert.Empty(t, fake.calls)
}

func TestImmediateGrowsToNextPowerOfTwo(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	im := d.Immediate()
	require.NoError(t, im.Begin(metadata.TopologyPointList))
	for i := 0; i < 1025; i++ {
		im.Emit()
	}
	require.NoError(t, im.End())

	assert.Equal(t, 2048, im.Capacity())
	assert.Contains(t, fake.calls, call("BufferData", glapi.ARRAY_BUFFER, 2048*36, glapi.STREAM_DRAW))
	assert.Len(t, fake.uploads[d.immediateBackend.vbo], 1025*36)
	assert.Equal(t, []string{call("DrawArrays", glapi.POINTS, 0, 1025)}, fake.matching("DrawArrays("))
}

func TestImmediateSamplesBound2DTexture(t *testing.T) {
	d, fake, _ := newTestDevice(t)
	tex, err := d.CreateTexture(metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm, Width: 2, Height: 2, MipLevels: 1}, nil)
	require.NoError(t, err)
	glTex, _ := d.textures.Get(tex.ID)

	im := d.Immediate()
	require.NoError(t, im.Begin(metadata.TopologyTriangleList))
	im.SetTexture(tex)
	for i := 0; i < 3; i++ {
		im.Emit()
	}
	fake.reset()
	require.NoError(t, im.End())
	assert.Contains(t, fake.calls, call("BindTexture", glapi.TEXTURE_2D, glTex.name))
	assert.Contains(t, fake.calls, call("BindSampler", 0, d.immediateBackend.sampler))
}
