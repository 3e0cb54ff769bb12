package renderer

import (
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/immediate"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief Device is the single capability surface a renderer talks to. Every
 * Set* call is elided when it would not change native state. A device is
 * thread-affine; Lock and Unlock serialize callers that share one.
 */
type Device interface {
	Initialize() error
	Shutdown() error
	Resized(width, height uint32) error
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	Lock()
	Unlock()

	CreateBuffer(desc metadata.BufferDesc, data []byte) (*metadata.Buffer, error)
	UpdateBuffer(buffer *metadata.Buffer, offset uint64, data []byte) error
	DestroyBuffer(buffer *metadata.Buffer)

	CreateTexture(desc metadata.TextureDesc, data []metadata.TextureData) (*metadata.Texture, error)
	UpdateTexture(texture *metadata.Texture, mip, x, y, width, height uint32, pixels []byte) error
	DestroyTexture(texture *metadata.Texture)

	CreateRenderTarget(desc metadata.RenderTargetDesc) (*metadata.RenderTarget, error)
	DestroyRenderTarget(rt *metadata.RenderTarget)
	Backbuffer() *metadata.RenderTarget
	SetRenderTarget(rt *metadata.RenderTarget, clear *metadata.ClearDesc)
	SetRenderTargetMask(rt *metadata.RenderTarget, mask []bool)
	PushRenderTarget(rt *metadata.RenderTarget, clear *metadata.ClearDesc)
	PopRenderTarget()
	Clear(desc metadata.ClearDesc)

	CreateBlendState(desc metadata.BlendDesc) *metadata.BlendState
	CreateRasterizerState(desc metadata.RasterizerDesc) *metadata.RasterizerState
	CreateDepthStencilState(desc metadata.DepthStencilDesc) *metadata.DepthStencilState
	CreateSamplerState(desc metadata.SamplerDesc) (*metadata.SamplerState, error)
	SetBlendState(state *metadata.BlendState)
	SetRasterizerState(state *metadata.RasterizerState)
	SetDepthStencilState(state *metadata.DepthStencilState, stencilRef uint8)

	CreateShader(desc metadata.ShaderDesc) (*metadata.Shader, error)
	UpdateShader(shader *metadata.Shader, desc metadata.ShaderDesc) error
	DestroyShader(shader *metadata.Shader)
	SetShader(shader *metadata.Shader, stages metadata.StageMask)
	ActiveProgramValid() bool

	CreateInputLayout(desc metadata.InputLayoutDesc) (*metadata.InputLayout, error)
	DestroyInputLayout(layout *metadata.InputLayout)
	SetInputLayout(layout *metadata.InputLayout)
	SetVertexBuffers(buffers []*metadata.Buffer, strides []uint32, forceDynamic bool)
	SetIndexBuffer(buffer *metadata.Buffer, format metadata.Format)

	SetTexture(slot int, texture *metadata.Texture)
	SetSampler(slot int, sampler *metadata.SamplerState)
	SetConstantBuffer(slot int, buffer *metadata.Buffer)
	SetPrimitiveTopology(topology metadata.PrimitiveTopology)
	SetViewport(viewport metadata.Viewport)

	Draw(vertexCount, startVertex uint32)
	DrawIndexed(indexCount, startIndex uint32, baseVertex int32)
	DrawInstanced(vertexCount, instanceCount, startVertex uint32)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32)

	CreateQuery(kind metadata.QueryKind) (*metadata.Query, error)
	BeginQuery(query *metadata.Query)
	EndQuery(query *metadata.Query)
	// QueryResult reports false until the GPU has produced the value.
	QueryResult(query *metadata.Query) (uint64, bool)
	DestroyQuery(query *metadata.Query)

	Immediate() *immediate.Renderer
	Stats() core.DeviceStats
}
