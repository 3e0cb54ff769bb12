package opengl

import (
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/immediate"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

const immediateVertexShader = `#version 410 core
layout(location = 0) in vec3 a_Position;
layout(location = 1) in vec2 a_TexCoord;
layout(location = 2) in vec4 a_Color;

uniform mat4 u_Transform;

out vec2 v_TexCoord;
out vec4 v_Color;

void main() {
	v_TexCoord = a_TexCoord;
	v_Color = a_Color;
	gl_Position = u_Transform * vec4(a_Position, 1.0);
}
`

const immediatePixelShader = `#version 410 core
in vec2 v_TexCoord;
in vec4 v_Color;

uniform sampler2D u_Texture0;

out vec4 o_Color;

void main() {
	o_Color = texture(u_Texture0, v_TexCoord) * v_Color;
}
`

type savedBindings struct {
	program     int32
	vao         int32
	arrayBuffer int32
}

type savedState struct {
	program int32
	vao     int32
	active  int32
	texture int32
	sampler int32
}

/**
 * @brief immediateBackend hosts the immediate renderer on raw GL objects that
 * live outside the device registries and the register.
 */
type immediateBackend struct {
	d  *Device
	gl glapi.Functions

	program      uint32
	vao          uint32
	vbo          uint32
	white        uint32
	sampler      uint32
	transformLoc int32
	capacity     int

	staging []byte
	saved   savedState
}

func newImmediateBackend(d *Device) *immediateBackend {
	return &immediateBackend{d: d, gl: d.gl, transformLoc: -1}
}

var _ immediate.Backend = (*immediateBackend)(nil)

func (b *immediateBackend) getInt(pname glapi.Enum) int32 {
	var v int32
	b.gl.GetIntegerv(pname, &v)
	return v
}

func (b *immediateBackend) saveBindings() savedBindings {
	return savedBindings{
		program:     b.getInt(glapi.CURRENT_PROGRAM),
		vao:         b.getInt(glapi.VERTEX_ARRAY_BINDING),
		arrayBuffer: b.getInt(glapi.ARRAY_BUFFER_BINDING),
	}
}

func (b *immediateBackend) restoreBindings(s savedBindings) {
	b.gl.BindBuffer(glapi.ARRAY_BUFFER, uint32(s.arrayBuffer))
	b.gl.BindVertexArray(uint32(s.vao))
	b.gl.UseProgram(uint32(s.program))
}

func (b *immediateBackend) Create(capacity int) error {
	vs, err := b.d.compileGLSL(glapi.VERTEX_SHADER, immediateVertexShader)
	if err != nil {
		return fmt.Errorf("%w: immediate vertex shader: %w", core.ErrCompile, err)
	}
	ps, err := b.d.compileGLSL(glapi.FRAGMENT_SHADER, immediatePixelShader)
	if err != nil {
		b.gl.DeleteShader(vs)
		return fmt.Errorf("%w: immediate pixel shader: %w", core.ErrCompile, err)
	}
	program := b.gl.CreateProgram()
	b.gl.AttachShader(program, vs)
	b.gl.AttachShader(program, ps)
	b.gl.LinkProgram(program)
	b.gl.DeleteShader(vs)
	b.gl.DeleteShader(ps)
	if b.gl.GetProgrami(program, glapi.LINK_STATUS) == glapi.FALSE {
		log := b.gl.GetProgramInfoLog(program)
		b.gl.DeleteProgram(program)
		return fmt.Errorf("%w: immediate program: %s", core.ErrLink, log)
	}
	b.program = program

	saved := b.saveBindings()
	b.vao = b.gl.GenVertexArray()
	b.vbo = b.gl.GenBuffer()
	b.gl.BindVertexArray(b.vao)
	b.gl.BindBuffer(glapi.ARRAY_BUFFER, b.vbo)
	b.gl.BufferData(glapi.ARRAY_BUFFER, capacity*immediate.VertexStride, nil, glapi.STREAM_DRAW)
	for _, a := range []struct {
		location uint32
		size     int32
		offset   int
	}{{0, 3, 0}, {1, 2, 12}, {2, 4, 20}} {
		b.gl.EnableVertexAttribArray(a.location)
		b.gl.VertexAttribPointer(a.location, a.size, glapi.FLOAT, false, immediate.VertexStride, a.offset)
	}
	b.gl.UseProgram(b.program)
	b.transformLoc = b.gl.GetUniformLocation(b.program, "u_Transform")
	if loc := b.gl.GetUniformLocation(b.program, "u_Texture0"); loc >= 0 {
		b.gl.Uniform1i(loc, 0)
	}
	b.restoreBindings(saved)

	b.white = b.gl.GenTexture()
	b.d.withTexture(glapi.TEXTURE_2D, b.white, func() {
		b.gl.TexImage2D(glapi.TEXTURE_2D, 0, int32(glapi.RGBA8), 1, 1, glapi.RGBA, glapi.UNSIGNED_BYTE, []byte{0xFF, 0xFF, 0xFF, 0xFF})
		b.gl.TexParameteri(glapi.TEXTURE_2D, glapi.TEXTURE_MIN_FILTER, int32(glapi.NEAREST))
		b.gl.TexParameteri(glapi.TEXTURE_2D, glapi.TEXTURE_MAG_FILTER, int32(glapi.NEAREST))
	})
	b.sampler = b.gl.GenSampler()
	b.gl.SamplerParameteri(b.sampler, glapi.TEXTURE_MIN_FILTER, int32(glapi.LINEAR))
	b.gl.SamplerParameteri(b.sampler, glapi.TEXTURE_MAG_FILTER, int32(glapi.LINEAR))
	b.gl.SamplerParameteri(b.sampler, glapi.TEXTURE_WRAP_S, int32(glapi.CLAMP_TO_EDGE))
	b.gl.SamplerParameteri(b.sampler, glapi.TEXTURE_WRAP_T, int32(glapi.CLAMP_TO_EDGE))

	b.capacity = capacity
	core.LogDebug("immediate renderer created with room for %d vertices", capacity)
	return nil
}

func (b *immediateBackend) Grow(capacity int) error {
	saved := b.saveBindings()
	b.gl.BindBuffer(glapi.ARRAY_BUFFER, b.vbo)
	b.gl.BufferData(glapi.ARRAY_BUFFER, capacity*immediate.VertexStride, nil, glapi.STREAM_DRAW)
	b.restoreBindings(saved)
	b.capacity = capacity
	return nil
}

func (b *immediateBackend) Upload(vertices []immediate.Vertex) error {
	if len(vertices) > b.capacity {
		return fmt.Errorf("%d vertices exceed the immediate buffer of %d", len(vertices), b.capacity)
	}
	b.staging = immediate.AppendVertices(b.staging[:0], vertices)
	b.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, b.vbo)
	b.gl.BufferSubData(glapi.COPY_WRITE_BUFFER, 0, b.staging)
	b.gl.BindBuffer(glapi.COPY_WRITE_BUFFER, 0)
	return nil
}

// SaveState reads back the bindings Bind is about to replace.
func (b *immediateBackend) SaveState() {
	b.saved.program = b.getInt(glapi.CURRENT_PROGRAM)
	b.saved.vao = b.getInt(glapi.VERTEX_ARRAY_BINDING)
	b.saved.active = b.getInt(glapi.ACTIVE_TEXTURE)
	b.gl.ActiveTexture(glapi.TEXTURE0)
	b.saved.texture = b.getInt(glapi.TEXTURE_BINDING_2D)
	b.saved.sampler = b.getInt(glapi.SAMPLER_BINDING)
}

func (b *immediateBackend) Bind(transform math.Mat4, texture *metadata.Texture) {
	b.gl.UseProgram(b.program)
	b.gl.UniformMatrix4fv(b.transformLoc, transform.Data[:])
	b.gl.BindVertexArray(b.vao)

	name := b.white
	if t, ok := b.d.textures.Get(texture.Handle()); ok {
		if t.target == glapi.TEXTURE_2D {
			name = t.name
		} else {
			core.LogWarn("immediate renderer only samples 2D textures, %q ignored", t.desc.Name)
		}
	}
	b.gl.BindTexture(glapi.TEXTURE_2D, name)
	b.gl.BindSampler(0, b.sampler)
}

func (b *immediateBackend) Draw(topology metadata.PrimitiveTopology, count int) {
	mode, ok := primitiveModes[topology]
	if !ok {
		mode = glapi.TRIANGLES
	}
	b.gl.DrawArrays(mode, 0, int32(count))
	b.d.metrics.CountDraw()
}

// RestoreState rebinds exactly what SaveState read.
func (b *immediateBackend) RestoreState() {
	b.gl.BindSampler(0, uint32(b.saved.sampler))
	b.gl.BindTexture(glapi.TEXTURE_2D, uint32(b.saved.texture))
	b.gl.ActiveTexture(glapi.Enum(b.saved.active))
	b.gl.BindVertexArray(uint32(b.saved.vao))
	b.gl.UseProgram(uint32(b.saved.program))
}

func (b *immediateBackend) destroy() {
	if b.program == 0 {
		return
	}
	b.gl.DeleteProgram(b.program)
	b.gl.DeleteVertexArray(b.vao)
	b.gl.DeleteBuffer(b.vbo)
	b.gl.DeleteTexture(b.white)
	b.gl.DeleteSampler(b.sampler)
	*b = immediateBackend{d: b.d, gl: b.gl, transformLoc: -1}
}
