package vulkan

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/immediate"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

// The bindings match constantBinding, textureBinding and samplerBinding.
const immediateShader = `struct Transform {
	m: mat4x4<f32>,
}

@group(0) @binding(0) var<uniform> u_transform: Transform;
@group(0) @binding(4) var t_texture0: texture_2d<f32>;
@group(0) @binding(12) var s_texture0: sampler;

struct VertexOutput {
	@builtin(position) position: vec4<f32>,
	@location(0) texcoord: vec2<f32>,
	@location(1) color: vec4<f32>,
}

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) texcoord: vec2<f32>, @location(2) color: vec4<f32>) -> VertexOutput {
	var out: VertexOutput;
	out.position = u_transform.m * vec4<f32>(position, 1.0);
	out.texcoord = texcoord;
	out.color = color;
	return out;
}

@fragment
fn ps_main(in: VertexOutput) -> @location(0) vec4<f32> {
	return textureSample(t_texture0, s_texture0, in.texcoord) * in.color;
}
`

const transformSize = 64

type immediateChunk struct {
	buffer   *metadata.Buffer
	capacity int
	used     int
}

/**
 * @brief Vertex and transform buffers written by the immediate renderer
 * during one frame. Batches never overwrite what an earlier batch of the
 * same frame reads; everything is reused once the frame's fence signals.
 */
type immediateChunks struct {
	vertices   []*immediateChunk
	transforms []*metadata.Buffer
	transform  int
}

func (c *immediateChunks) reset() {
	for _, chunk := range c.vertices {
		chunk.used = 0
	}
	c.transform = 0
}

// reserve claims room for n vertices in the first chunk that has it and
// returns that chunk with the first claimed vertex.
func (c *immediateChunks) reserve(n int) (*immediateChunk, int) {
	for _, chunk := range c.vertices {
		if chunk.capacity-chunk.used >= n {
			first := chunk.used
			chunk.used += n
			return chunk, first
		}
	}
	return nil, 0
}

func (c *immediateChunks) nextTransform() *metadata.Buffer {
	if c.transform >= len(c.transforms) {
		return nil
	}
	b := c.transforms[c.transform]
	c.transform++
	return b
}

type immediateSaved struct {
	reg           state.Register
	vertex        *vkBinding
	vertexDynamic bool
}

/**
 * @brief immediateBackend hosts the immediate renderer on ordinary device
 * resources. Bind goes through the Set* calls, so the batch is recorded by the
 * same path as any draw and the register is restored afterwards.
 */
type immediateBackend struct {
	d *Device

	shader   *metadata.Shader
	layout   *metadata.InputLayout
	sampler  *metadata.SamplerState
	capacity int
	created  bool

	chunk   *immediateChunk
	first   int
	staging []byte
	saved   immediateSaved
}

func newImmediateBackend(d *Device) *immediateBackend {
	return &immediateBackend{d: d}
}

var _ immediate.Backend = (*immediateBackend)(nil)

func (b *immediateBackend) Create(capacity int) error {
	desc := metadata.ShaderDesc{Name: "immediate"}.
		Stage(metadata.StageVertex, metadata.ShaderStageSource{Source: immediateShader, EntryPoint: "vs_main"}).
		Stage(metadata.StagePixel, metadata.ShaderStageSource{Source: immediateShader, EntryPoint: "ps_main"})
	shader, err := b.d.CreateShader(desc)
	if err != nil {
		if shader != nil {
			b.d.DestroyShader(shader)
		}
		return fmt.Errorf("immediate shader: %w", err)
	}

	layout, err := b.d.CreateInputLayout(metadata.InputLayoutDesc{
		Name: "immediate",
		Elements: []metadata.InputElement{
			{Location: 0, Format: metadata.FormatR32Float, Components: 3, Offset: 0},
			{Location: 1, Format: metadata.FormatR32Float, Components: 2, Offset: 12},
			{Location: 2, Format: metadata.FormatR32Float, Components: 4, Offset: 20},
		},
	})
	if err != nil {
		b.d.DestroyShader(shader)
		return fmt.Errorf("immediate layout: %w", err)
	}

	sampler, err := b.d.CreateSamplerState(metadata.SamplerDesc{
		MinFilter: metadata.FilterLinear,
		MagFilter: metadata.FilterLinear,
		MipFilter: metadata.FilterNearest,
		AddressU:  metadata.AddressClamp,
		AddressV:  metadata.AddressClamp,
		AddressW:  metadata.AddressClamp,
		MaxLOD:    gomath.MaxFloat32,
	})
	if err != nil {
		b.d.DestroyInputLayout(layout)
		b.d.DestroyShader(shader)
		return fmt.Errorf("immediate sampler: %w", err)
	}

	b.shader, b.layout, b.sampler = shader, layout, sampler
	b.capacity = capacity
	b.created = true
	core.LogDebug("immediate renderer created with room for %d vertices", capacity)
	return nil
}

// Grow only raises the size of chunks created from now on. Chunks already
// handed to a frame stay valid until that frame retires.
func (b *immediateBackend) Grow(capacity int) error {
	b.capacity = capacity
	return nil
}

func (b *immediateBackend) chunks() *immediateChunks {
	frame := b.d.context.frame()
	if frame.immediate == nil {
		frame.immediate = &immediateChunks{}
	}
	return frame.immediate
}

func (b *immediateBackend) Upload(vertices []immediate.Vertex) error {
	chunks := b.chunks()
	chunk, first := chunks.reserve(len(vertices))
	if chunk == nil {
		capacity := max(b.capacity, len(vertices))
		buffer, err := b.d.CreateBuffer(metadata.BufferDesc{
			Size:   uint64(capacity * immediate.VertexStride),
			Stride: immediate.VertexStride,
			Usage:  metadata.UsageDynamic,
			Bind:   metadata.BindVertexBuffer,
			Name:   "immediate vertices",
		}, nil)
		if err != nil {
			return err
		}
		chunk = &immediateChunk{buffer: buffer, capacity: capacity, used: len(vertices)}
		chunks.vertices = append(chunks.vertices, chunk)
		first = 0
	}
	b.staging = immediate.AppendVertices(b.staging[:0], vertices)
	if err := b.d.UpdateBuffer(chunk.buffer, uint64(first*immediate.VertexStride), b.staging); err != nil {
		return err
	}
	b.chunk, b.first = chunk, first
	return nil
}

func (b *immediateBackend) transformBuffer(transform math.Mat4) *metadata.Buffer {
	chunks := b.chunks()
	buffer := chunks.nextTransform()
	if buffer == nil {
		var err error
		buffer, err = b.d.CreateBuffer(metadata.BufferDesc{
			Size:  transformSize,
			Usage: metadata.UsageDynamic,
			Bind:  metadata.BindConstantBuffer,
			Name:  "immediate transform",
		}, nil)
		if err != nil {
			core.LogError("immediate transform buffer: %s", err)
			return nil
		}
		chunks.transforms = append(chunks.transforms, buffer)
		chunks.transform++
	}
	data := make([]byte, 0, transformSize)
	for _, f := range transform.Data {
		data = binary.LittleEndian.AppendUint32(data, gomath.Float32bits(f))
	}
	if err := b.d.UpdateBuffer(buffer, 0, data); err != nil {
		core.LogError("immediate transform upload: %s", err)
	}
	return buffer
}

func (b *immediateBackend) SaveState() {
	b.saved = immediateSaved{
		reg:           b.d.reg.Snapshot(),
		vertex:        b.d.vertex,
		vertexDynamic: b.d.vertexDynamic,
	}
}

func (b *immediateBackend) Bind(transform math.Mat4, texture *metadata.Texture) {
	d := b.d
	d.SetShader(b.shader, metadata.MaskAll)
	d.SetInputLayout(b.layout)
	d.SetVertexBuffers([]*metadata.Buffer{b.chunk.buffer}, []uint32{immediate.VertexStride}, true)

	var bound *metadata.Texture
	if t, ok := d.textures.Get(texture.Handle()); ok {
		if t.desc.Dimension == metadata.Texture2D {
			bound = texture
		} else {
			core.LogWarn("immediate renderer only samples 2D textures, %q ignored", t.desc.Name)
		}
	}
	d.SetTexture(0, bound)
	d.SetSampler(0, b.sampler)
	d.SetConstantBuffer(0, b.transformBuffer(transform))
}

func (b *immediateBackend) Draw(topology metadata.PrimitiveTopology, count int) {
	if _, ok := topologies[topology]; !ok {
		topology = metadata.TopologyTriangleList
	}
	b.d.SetPrimitiveTopology(topology)
	cb, ok := b.d.prepareDraw("immediate Draw", false)
	if !ok {
		return
	}
	vk.CmdDraw(cb.Handle, uint32(count), 1, uint32(b.first), 0)
	b.d.metrics.CountDraw()
}

// RestoreState puts the register back and forces the next draw to record
// every binding again.
func (b *immediateBackend) RestoreState() {
	d := b.d
	d.reg.Restore(b.saved.reg)
	d.vertex, d.vertexDynamic = b.saved.vertex, b.saved.vertexDynamic
	d.resolveProgram()
	d.markAllDirty()
	b.saved = immediateSaved{}
}

// destroy releases what Create built. The sampler stays with the device's
// sampler states.
func (b *immediateBackend) destroy() {
	if !b.created {
		return
	}
	d := b.d
	for i := range d.context.frames {
		chunks := d.context.frames[i].immediate
		if chunks == nil {
			continue
		}
		for _, chunk := range chunks.vertices {
			d.DestroyBuffer(chunk.buffer)
		}
		for _, buffer := range chunks.transforms {
			d.DestroyBuffer(buffer)
		}
		d.context.frames[i].immediate = nil
	}
	d.DestroyInputLayout(b.layout)
	d.DestroyShader(b.shader)
	*b = immediateBackend{d: d}
}
