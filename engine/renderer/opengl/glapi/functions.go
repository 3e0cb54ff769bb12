// Package glapi is the subset of OpenGL 4.1 core the device uses. Handles are
// plain GL names; zero is the default object.
package glapi

type Functions interface {
	Init() error
	GetError() Enum
	GetIntegerv(pname Enum, data *int32)

	Enable(cap Enum)
	Disable(cap Enum)
	Enablei(cap Enum, index uint32)
	Disablei(cap Enum, index uint32)
	BlendFuncSeparatei(buf uint32, srcRGB, dstRGB, srcAlpha, dstAlpha Enum)
	BlendEquationSeparatei(buf uint32, modeRGB, modeAlpha Enum)
	ColorMaski(buf uint32, red, green, blue, alpha bool)
	CullFace(mode Enum)
	FrontFace(mode Enum)
	PolygonMode(face, mode Enum)
	PolygonOffset(factor, units float32)
	DepthFunc(fn Enum)
	DepthMask(flag bool)
	StencilFuncSeparate(face, fn Enum, ref int32, mask uint32)
	StencilOpSeparate(face, sfail, dpfail, dppass Enum)
	StencilMaskSeparate(face Enum, mask uint32)
	Viewport(x, y, width, height int32)
	DepthRange(near, far float64)
	ClearColor(red, green, blue, alpha float32)
	ClearDepth(depth float64)
	ClearStencil(s int32)
	Clear(mask Enum)

	GenBuffer() uint32
	DeleteBuffer(buffer uint32)
	BindBuffer(target Enum, buffer uint32)
	BufferData(target Enum, size int, data []byte, usage Enum)
	BufferSubData(target Enum, offset int, data []byte)
	BindBufferBase(target Enum, index, buffer uint32)

	GenVertexArray() uint32
	DeleteVertexArray(array uint32)
	BindVertexArray(array uint32)
	EnableVertexAttribArray(index uint32)
	DisableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, xtype Enum, normalized bool, stride int32, offset int)
	VertexAttribIPointer(index uint32, size int32, xtype Enum, stride int32, offset int)
	VertexAttribDivisor(index, divisor uint32)

	GenTexture() uint32
	DeleteTexture(texture uint32)
	ActiveTexture(unit Enum)
	BindTexture(target Enum, texture uint32)
	TexImage2D(target Enum, level, internalFormat, width, height int32, format, xtype Enum, pixels []byte)
	TexImage3D(target Enum, level, internalFormat, width, height, depth int32, format, xtype Enum, pixels []byte)
	TexSubImage2D(target Enum, level, x, y, width, height int32, format, xtype Enum, pixels []byte)
	TexParameteri(target, pname Enum, param int32)
	GenerateMipmap(target Enum)

	GenSampler() uint32
	DeleteSampler(sampler uint32)
	BindSampler(unit, sampler uint32)
	SamplerParameteri(sampler uint32, pname Enum, param int32)
	SamplerParameterf(sampler uint32, pname Enum, param float32)
	SamplerParameterfv(sampler uint32, pname Enum, params []float32)

	GenFramebuffer() uint32
	DeleteFramebuffer(framebuffer uint32)
	BindFramebuffer(target Enum, framebuffer uint32)
	FramebufferTexture(target, attachment Enum, texture uint32, level int32)
	CheckFramebufferStatus(target Enum) Enum
	DrawBuffers(bufs []Enum)
	DrawBuffer(buf Enum)

	CreateShader(xtype Enum) uint32
	ShaderSource(shader uint32, source string)
	CompileShader(shader uint32)
	GetShaderi(shader uint32, pname Enum) int32
	GetShaderInfoLog(shader uint32) string
	DeleteShader(shader uint32)
	CreateProgram() uint32
	AttachShader(program, shader uint32)
	LinkProgram(program uint32)
	GetProgrami(program uint32, pname Enum) int32
	GetProgramInfoLog(program uint32) string
	DeleteProgram(program uint32)
	UseProgram(program uint32)
	GetUniformBlockIndex(program uint32, name string) uint32
	UniformBlockBinding(program, index, binding uint32)
	GetUniformLocation(program uint32, name string) int32
	Uniform1i(location, v int32)
	UniformMatrix4fv(location int32, value []float32)

	DrawArrays(mode Enum, first, count int32)
	DrawArraysInstanced(mode Enum, first, count, instances int32)
	DrawElementsBaseVertex(mode Enum, count int32, xtype Enum, offset int, baseVertex int32)
	DrawElementsInstancedBaseVertex(mode Enum, count int32, xtype Enum, offset int, instances, baseVertex int32)

	GenQuery() uint32
	DeleteQuery(query uint32)
	BeginQuery(target Enum, query uint32)
	EndQuery(target Enum)
	QueryCounter(query uint32, target Enum)
	GetQueryObjectui(query uint32, pname Enum) uint32
	GetQueryObjectui64(query uint32, pname Enum) uint64
}
