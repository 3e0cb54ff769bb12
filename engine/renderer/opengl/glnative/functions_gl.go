// Package glnative binds glapi.Functions to the cgo OpenGL 4.1 core loader.
package glnative

import (
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

// Functions requires a current context on the calling thread for every call.
type Functions struct{}

var _ glapi.Functions = (*Functions)(nil)

func New() *Functions {
	return &Functions{}
}

func ptr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}

func (f *Functions) Init() error { return gl.Init() }

func (f *Functions) GetError() glapi.Enum                          { return gl.GetError() }
func (f *Functions) GetIntegerv(pname glapi.Enum, data *int32)     { gl.GetIntegerv(pname, data) }
func (f *Functions) Enable(cap glapi.Enum)                         { gl.Enable(cap) }
func (f *Functions) Disable(cap glapi.Enum)                        { gl.Disable(cap) }
func (f *Functions) Enablei(cap glapi.Enum, index uint32)          { gl.Enablei(cap, index) }
func (f *Functions) Disablei(cap glapi.Enum, index uint32)         { gl.Disablei(cap, index) }
func (f *Functions) CullFace(mode glapi.Enum)                      { gl.CullFace(mode) }
func (f *Functions) FrontFace(mode glapi.Enum)                     { gl.FrontFace(mode) }
func (f *Functions) PolygonMode(face, mode glapi.Enum)             { gl.PolygonMode(face, mode) }
func (f *Functions) PolygonOffset(factor, units float32)           { gl.PolygonOffset(factor, units) }
func (f *Functions) DepthFunc(fn glapi.Enum)                       { gl.DepthFunc(fn) }
func (f *Functions) DepthMask(flag bool)                           { gl.DepthMask(flag) }
func (f *Functions) StencilMaskSeparate(face glapi.Enum, m uint32) { gl.StencilMaskSeparate(face, m) }
func (f *Functions) Viewport(x, y, width, height int32)            { gl.Viewport(x, y, width, height) }
func (f *Functions) DepthRange(near, far float64)                  { gl.DepthRange(near, far) }
func (f *Functions) ClearColor(r, g, b, a float32)                 { gl.ClearColor(r, g, b, a) }
func (f *Functions) ClearDepth(depth float64)                      { gl.ClearDepth(depth) }
func (f *Functions) ClearStencil(s int32)                          { gl.ClearStencil(s) }
func (f *Functions) Clear(mask glapi.Enum)                         { gl.Clear(mask) }

func (f *Functions) BlendFuncSeparatei(buf uint32, srcRGB, dstRGB, srcAlpha, dstAlpha glapi.Enum) {
	gl.BlendFuncSeparatei(buf, srcRGB, dstRGB, srcAlpha, dstAlpha)
}

func (f *Functions) BlendEquationSeparatei(buf uint32, modeRGB, modeAlpha glapi.Enum) {
	gl.BlendEquationSeparatei(buf, modeRGB, modeAlpha)
}

func (f *Functions) ColorMaski(buf uint32, red, green, blue, alpha bool) {
	gl.ColorMaski(buf, red, green, blue, alpha)
}

func (f *Functions) StencilFuncSeparate(face, fn glapi.Enum, ref int32, mask uint32) {
	gl.StencilFuncSeparate(face, fn, ref, mask)
}

func (f *Functions) StencilOpSeparate(face, sfail, dpfail, dppass glapi.Enum) {
	gl.StencilOpSeparate(face, sfail, dpfail, dppass)
}

func (f *Functions) GenBuffer() uint32 {
	var b uint32
	gl.GenBuffers(1, &b)
	return b
}

func (f *Functions) DeleteBuffer(buffer uint32)                  { gl.DeleteBuffers(1, &buffer) }
func (f *Functions) BindBuffer(target glapi.Enum, buffer uint32) { gl.BindBuffer(target, buffer) }

func (f *Functions) BufferData(target glapi.Enum, size int, data []byte, usage glapi.Enum) {
	gl.BufferData(target, size, ptr(data), usage)
}

func (f *Functions) BufferSubData(target glapi.Enum, offset int, data []byte) {
	if len(data) == 0 {
		return
	}
	gl.BufferSubData(target, offset, len(data), gl.Ptr(data))
}

func (f *Functions) BindBufferBase(target glapi.Enum, index, buffer uint32) {
	gl.BindBufferBase(target, index, buffer)
}

func (f *Functions) GenVertexArray() uint32 {
	var a uint32
	gl.GenVertexArrays(1, &a)
	return a
}

func (f *Functions) DeleteVertexArray(array uint32)        { gl.DeleteVertexArrays(1, &array) }
func (f *Functions) BindVertexArray(array uint32)          { gl.BindVertexArray(array) }
func (f *Functions) EnableVertexAttribArray(index uint32)  { gl.EnableVertexAttribArray(index) }
func (f *Functions) DisableVertexAttribArray(index uint32) { gl.DisableVertexAttribArray(index) }
func (f *Functions) VertexAttribDivisor(index, div uint32) { gl.VertexAttribDivisor(index, div) }

func (f *Functions) VertexAttribPointer(index uint32, size int32, xtype glapi.Enum, normalized bool, stride int32, offset int) {
	gl.VertexAttribPointer(index, size, xtype, normalized, stride, gl.PtrOffset(offset))
}

func (f *Functions) VertexAttribIPointer(index uint32, size int32, xtype glapi.Enum, stride int32, offset int) {
	gl.VertexAttribIPointer(index, size, xtype, stride, gl.PtrOffset(offset))
}

func (f *Functions) GenTexture() uint32 {
	var t uint32
	gl.GenTextures(1, &t)
	return t
}

func (f *Functions) DeleteTexture(texture uint32)                  { gl.DeleteTextures(1, &texture) }
func (f *Functions) ActiveTexture(unit glapi.Enum)                 { gl.ActiveTexture(unit) }
func (f *Functions) BindTexture(target glapi.Enum, texture uint32) { gl.BindTexture(target, texture) }
func (f *Functions) GenerateMipmap(target glapi.Enum)              { gl.GenerateMipmap(target) }

func (f *Functions) TexImage2D(target glapi.Enum, level, internalFormat, width, height int32, format, xtype glapi.Enum, pixels []byte) {
	gl.TexImage2D(target, level, internalFormat, width, height, 0, format, xtype, ptr(pixels))
}

func (f *Functions) TexImage3D(target glapi.Enum, level, internalFormat, width, height, depth int32, format, xtype glapi.Enum, pixels []byte) {
	gl.TexImage3D(target, level, internalFormat, width, height, depth, 0, format, xtype, ptr(pixels))
}

func (f *Functions) TexSubImage2D(target glapi.Enum, level, x, y, width, height int32, format, xtype glapi.Enum, pixels []byte) {
	gl.TexSubImage2D(target, level, x, y, width, height, format, xtype, ptr(pixels))
}

func (f *Functions) TexParameteri(target, pname glapi.Enum, param int32) {
	gl.TexParameteri(target, pname, param)
}

func (f *Functions) GenSampler() uint32 {
	var s uint32
	gl.GenSamplers(1, &s)
	return s
}

func (f *Functions) DeleteSampler(sampler uint32)     { gl.DeleteSamplers(1, &sampler) }
func (f *Functions) BindSampler(unit, sampler uint32) { gl.BindSampler(unit, sampler) }

func (f *Functions) SamplerParameteri(sampler uint32, pname glapi.Enum, param int32) {
	gl.SamplerParameteri(sampler, pname, param)
}

func (f *Functions) SamplerParameterf(sampler uint32, pname glapi.Enum, param float32) {
	gl.SamplerParameterf(sampler, pname, param)
}

func (f *Functions) SamplerParameterfv(sampler uint32, pname glapi.Enum, params []float32) {
	if len(params) == 0 {
		return
	}
	gl.SamplerParameterfv(sampler, pname, &params[0])
}

func (f *Functions) GenFramebuffer() uint32 {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	return fb
}

func (f *Functions) DeleteFramebuffer(framebuffer uint32) { gl.DeleteFramebuffers(1, &framebuffer) }

func (f *Functions) BindFramebuffer(target glapi.Enum, framebuffer uint32) {
	gl.BindFramebuffer(target, framebuffer)
}

func (f *Functions) FramebufferTexture(target, attachment glapi.Enum, texture uint32, level int32) {
	gl.FramebufferTexture(target, attachment, texture, level)
}

func (f *Functions) CheckFramebufferStatus(target glapi.Enum) glapi.Enum {
	return gl.CheckFramebufferStatus(target)
}

func (f *Functions) DrawBuffers(bufs []glapi.Enum) {
	if len(bufs) == 0 {
		return
	}
	gl.DrawBuffers(int32(len(bufs)), &bufs[0])
}

func (f *Functions) DrawBuffer(buf glapi.Enum) { gl.DrawBuffer(buf) }

func (f *Functions) CreateShader(xtype glapi.Enum) uint32 { return gl.CreateShader(xtype) }

func (f *Functions) ShaderSource(shader uint32, source string) {
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
}

func (f *Functions) CompileShader(shader uint32) { gl.CompileShader(shader) }
func (f *Functions) DeleteShader(shader uint32)  { gl.DeleteShader(shader) }

func (f *Functions) GetShaderi(shader uint32, pname glapi.Enum) int32 {
	var v int32
	gl.GetShaderiv(shader, pname, &v)
	return v
}

func (f *Functions) GetShaderInfoLog(shader uint32) string {
	n := f.GetShaderi(shader, glapi.INFO_LOG_LENGTH)
	if n <= 0 {
		return ""
	}
	log := strings.Repeat("\x00", int(n+1))
	gl.GetShaderInfoLog(shader, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (f *Functions) CreateProgram() uint32               { return gl.CreateProgram() }
func (f *Functions) AttachShader(program, shader uint32) { gl.AttachShader(program, shader) }
func (f *Functions) LinkProgram(program uint32)          { gl.LinkProgram(program) }
func (f *Functions) DeleteProgram(program uint32)        { gl.DeleteProgram(program) }
func (f *Functions) UseProgram(program uint32)           { gl.UseProgram(program) }

func (f *Functions) GetProgrami(program uint32, pname glapi.Enum) int32 {
	var v int32
	gl.GetProgramiv(program, pname, &v)
	return v
}

func (f *Functions) GetProgramInfoLog(program uint32) string {
	n := f.GetProgrami(program, glapi.INFO_LOG_LENGTH)
	if n <= 0 {
		return ""
	}
	log := strings.Repeat("\x00", int(n+1))
	gl.GetProgramInfoLog(program, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}

func (f *Functions) GetUniformBlockIndex(program uint32, name string) uint32 {
	return gl.GetUniformBlockIndex(program, gl.Str(name+"\x00"))
}

func (f *Functions) UniformBlockBinding(program, index, binding uint32) {
	gl.UniformBlockBinding(program, index, binding)
}

func (f *Functions) GetUniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

func (f *Functions) Uniform1i(location, v int32) { gl.Uniform1i(location, v) }

func (f *Functions) UniformMatrix4fv(location int32, value []float32) {
	if len(value) < 16 {
		return
	}
	gl.UniformMatrix4fv(location, int32(len(value)/16), false, &value[0])
}

func (f *Functions) DrawArrays(mode glapi.Enum, first, count int32) {
	gl.DrawArrays(mode, first, count)
}

func (f *Functions) DrawArraysInstanced(mode glapi.Enum, first, count, instances int32) {
	gl.DrawArraysInstanced(mode, first, count, instances)
}

func (f *Functions) DrawElementsBaseVertex(mode glapi.Enum, count int32, xtype glapi.Enum, offset int, baseVertex int32) {
	gl.DrawElementsBaseVertex(mode, count, xtype, gl.PtrOffset(offset), baseVertex)
}

func (f *Functions) DrawElementsInstancedBaseVertex(mode glapi.Enum, count int32, xtype glapi.Enum, offset int, instances, baseVertex int32) {
	gl.DrawElementsInstancedBaseVertex(mode, count, xtype, gl.PtrOffset(offset), instances, baseVertex)
}

func (f *Functions) GenQuery() uint32 {
	var q uint32
	gl.GenQueries(1, &q)
	return q
}

func (f *Functions) DeleteQuery(query uint32)                     { gl.DeleteQueries(1, &query) }
func (f *Functions) BeginQuery(target glapi.Enum, query uint32)   { gl.BeginQuery(target, query) }
func (f *Functions) EndQuery(target glapi.Enum)                   { gl.EndQuery(target) }
func (f *Functions) QueryCounter(query uint32, target glapi.Enum) { gl.QueryCounter(query, target) }

func (f *Functions) GetQueryObjectui(query uint32, pname glapi.Enum) uint32 {
	var v uint32
	gl.GetQueryObjectuiv(query, pname, &v)
	return v
}

func (f *Functions) GetQueryObjectui64(query uint32, pname glapi.Enum) uint64 {
	var v uint64
	gl.GetQueryObjectui64v(query, pname, &v)
	return v
}
