package opengl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/platform"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

// recordingGL records every call as "Name(arg, ...)" and tracks just enough
// context state to answer GetIntegerv.
type recordingGL struct {
	calls []string
	next  uint32

	program     uint32
	vao         uint32
	arrayBuffer uint32
	active      uint32
	tex2D       map[uint32]uint32
	samplers    map[uint32]uint32

	sources  map[uint32]string
	compiled map[uint32]bool
	attached map[uint32][]uint32
	linked   map[uint32]bool
	uploads  map[uint32][]byte
	bound    map[glapi.Enum]uint32

	queryReady   bool
	incompleteFB bool
}

func newRecordingGL() *recordingGL {
	return &recordingGL{
		tex2D:    map[uint32]uint32{},
		samplers: map[uint32]uint32{},
		sources:  map[uint32]string{},
		compiled: map[uint32]bool{},
		attached: map[uint32][]uint32{},
		linked:   map[uint32]bool{},
		uploads:  map[uint32][]byte{},
		bound:    map[glapi.Enum]uint32{},
	}
}

// call formats a native call the way recordingGL records it.
func call(name string, args ...interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func (f *recordingGL) rec(name string, args ...interface{}) {
	f.calls = append(f.calls, call(name, args...))
}

func (f *recordingGL) gen() uint32 {
	f.next++
	return f.next
}

func (f *recordingGL) reset() {
	f.calls = nil
}

// count returns how many recorded calls start with prefix.
func (f *recordingGL) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *recordingGL) matching(prefix string) []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *recordingGL) Init() error {
	f.rec("Init")
	return nil
}

func (f *recordingGL) GetError() glapi.Enum { return glapi.NO_ERROR }

func (f *recordingGL) GetIntegerv(pname glapi.Enum, data *int32) {
	f.rec("GetIntegerv", pname)
	switch pname {
	case glapi.CURRENT_PROGRAM:
		*data = int32(f.program)
	case glapi.VERTEX_ARRAY_BINDING:
		*data = int32(f.vao)
	case glapi.ARRAY_BUFFER_BINDING:
		*data = int32(f.arrayBuffer)
	case glapi.ACTIVE_TEXTURE:
		*data = int32(glapi.TEXTURE0 + f.active)
	case glapi.TEXTURE_BINDING_2D:
		*data = int32(f.tex2D[f.active])
	case glapi.SAMPLER_BINDING:
		*data = int32(f.samplers[f.active])
	}
}

func (f *recordingGL) Enable(cap glapi.Enum)                 { f.rec("Enable", cap) }
func (f *recordingGL) Disable(cap glapi.Enum)                { f.rec("Disable", cap) }
func (f *recordingGL) Enablei(cap glapi.Enum, index uint32)  { f.rec("Enablei", cap, index) }
func (f *recordingGL) Disablei(cap glapi.Enum, index uint32) { f.rec("Disablei", cap, index) }
func (f *recordingGL) CullFace(mode glapi.Enum)              { f.rec("CullFace", mode) }
func (f *recordingGL) FrontFace(mode glapi.Enum)             { f.rec("FrontFace", mode) }
func (f *recordingGL) PolygonMode(face, mode glapi.Enum)     { f.rec("PolygonMode", face, mode) }
func (f *recordingGL) PolygonOffset(factor, units float32)   { f.rec("PolygonOffset", factor, units) }
func (f *recordingGL) DepthFunc(fn glapi.Enum)               { f.rec("DepthFunc", fn) }
func (f *recordingGL) DepthMask(flag bool)                   { f.rec("DepthMask", flag) }
func (f *recordingGL) Viewport(x, y, w, h int32)             { f.rec("Viewport", x, y, w, h) }
func (f *recordingGL) DepthRange(near, far float64)          { f.rec("DepthRange", near, far) }
func (f *recordingGL) ClearColor(r, g, b, a float32)         { f.rec("ClearColor", r, g, b, a) }
func (f *recordingGL) ClearDepth(depth float64)              { f.rec("ClearDepth", depth) }
func (f *recordingGL) ClearStencil(s int32)                  { f.rec("ClearStencil", s) }
func (f *recordingGL) Clear(mask glapi.Enum)                 { f.rec("Clear", mask) }
func (f *recordingGL) StencilMaskSeparate(face glapi.Enum, m uint32) {
	f.rec("StencilMaskSeparate", face, m)
}

func (f *recordingGL) BlendFuncSeparatei(buf uint32, srcRGB, dstRGB, srcAlpha, dstAlpha glapi.Enum) {
	f.rec("BlendFuncSeparatei", buf, srcRGB, dstRGB, srcAlpha, dstAlpha)
}

func (f *recordingGL) BlendEquationSeparatei(buf uint32, modeRGB, modeAlpha glapi.Enum) {
	f.rec("BlendEquationSeparatei", buf, modeRGB, modeAlpha)
}

func (f *recordingGL) ColorMaski(buf uint32, r, g, b, a bool) { f.rec("ColorMaski", buf, r, g, b, a) }

func (f *recordingGL) StencilFuncSeparate(face, fn glapi.Enum, ref int32, mask uint32) {
	f.rec("StencilFuncSeparate", face, fn, ref, mask)
}

func (f *recordingGL) StencilOpSeparate(face, sfail, dpfail, dppass glapi.Enum) {
	f.rec("StencilOpSeparate", face, sfail, dpfail, dppass)
}

func (f *recordingGL) GenBuffer() uint32 {
	b := f.gen()
	f.rec("GenBuffer", b)
	return b
}

func (f *recordingGL) DeleteBuffer(buffer uint32) { f.rec("DeleteBuffer", buffer) }

func (f *recordingGL) BindBuffer(target glapi.Enum, buffer uint32) {
	f.rec("BindBuffer", target, buffer)
	f.bound[target] = buffer
	if target == glapi.ARRAY_BUFFER {
		f.arrayBuffer = buffer
	}
}

func (f *recordingGL) BufferData(target glapi.Enum, size int, data []byte, usage glapi.Enum) {
	f.rec("BufferData", target, size, usage)
}

func (f *recordingGL) BufferSubData(target glapi.Enum, offset int, data []byte) {
	f.rec("BufferSubData", target, offset, len(data))
	f.uploads[f.bound[target]] = append([]byte(nil), data...)
}

func (f *recordingGL) BindBufferBase(target glapi.Enum, index, buffer uint32) {
	f.rec("BindBufferBase", target, index, buffer)
}

func (f *recordingGL) GenVertexArray() uint32 {
	a := f.gen()
	f.rec("GenVertexArray", a)
	return a
}

func (f *recordingGL) DeleteVertexArray(array uint32) {
	f.rec("DeleteVertexArray", array)
	if f.vao == array {
		f.vao = 0
	}
}

func (f *recordingGL) BindVertexArray(array uint32) {
	f.rec("BindVertexArray", array)
	f.vao = array
}

func (f *recordingGL) EnableVertexAttribArray(index uint32)  { f.rec("EnableVertexAttribArray", index) }
func (f *recordingGL) DisableVertexAttribArray(index uint32) { f.rec("DisableVertexAttribArray", index) }
func (f *recordingGL) VertexAttribDivisor(index, div uint32) { f.rec("VertexAttribDivisor", index, div) }

func (f *recordingGL) VertexAttribPointer(index uint32, size int32, xtype glapi.Enum, normalized bool, stride int32, offset int) {
	f.rec("VertexAttribPointer", index, size, xtype, normalized, stride, offset)
}

func (f *recordingGL) VertexAttribIPointer(index uint32, size int32, xtype glapi.Enum, stride int32, offset int) {
	f.rec("VertexAttribIPointer", index, size, xtype, stride, offset)
}

func (f *recordingGL) GenTexture() uint32 {
	t := f.gen()
	f.rec("GenTexture", t)
	return t
}

func (f *recordingGL) DeleteTexture(texture uint32) { f.rec("DeleteTexture", texture) }

func (f *recordingGL) ActiveTexture(unit glapi.Enum) {
	f.rec("ActiveTexture", unit)
	f.active = unit - glapi.TEXTURE0
}

func (f *recordingGL) BindTexture(target glapi.Enum, texture uint32) {
	f.rec("BindTexture", target, texture)
	if target == glapi.TEXTURE_2D {
		f.tex2D[f.active] = texture
	}
}

func (f *recordingGL) TexImage2D(target glapi.Enum, level, internalFormat, width, height int32, format, xtype glapi.Enum, pixels []byte) {
	f.rec("TexImage2D", target, level, internalFormat, width, height, format, xtype, len(pixels))
}

func (f *recordingGL) TexImage3D(target glapi.Enum, level, internalFormat, width, height, depth int32, format, xtype glapi.Enum, pixels []byte) {
	f.rec("TexImage3D", target, level, internalFormat, width, height, depth, format, xtype, len(pixels))
}

func (f *recordingGL) TexSubImage2D(target glapi.Enum, level, x, y, width, height int32, format, xtype glapi.Enum, pixels []byte) {
	f.rec("TexSubImage2D", target, level, x, y, width, height, format, xtype, len(pixels))
}

func (f *recordingGL) TexParameteri(target, pname glapi.Enum, param int32) {
	f.rec("TexParameteri", target, pname, param)
}

func (f *recordingGL) GenerateMipmap(target glapi.Enum) { f.rec("GenerateMipmap", target) }

func (f *recordingGL) GenSampler() uint32 {
	s := f.gen()
	f.rec("GenSampler", s)
	return s
}

func (f *recordingGL) DeleteSampler(sampler uint32) { f.rec("DeleteSampler", sampler) }

func (f *recordingGL) BindSampler(unit, sampler uint32) {
	f.rec("BindSampler", unit, sampler)
	f.samplers[unit] = sampler
}

func (f *recordingGL) SamplerParameteri(sampler uint32, pname glapi.Enum, param int32) {
	f.rec("SamplerParameteri", sampler, pname, param)
}

func (f *recordingGL) SamplerParameterf(sampler uint32, pname glapi.Enum, param float32) {
	f.rec("SamplerParameterf", sampler, pname, param)
}

func (f *recordingGL) SamplerParameterfv(sampler uint32, pname glapi.Enum, params []float32) {
	f.rec("SamplerParameterfv", sampler, pname, params)
}

func (f *recordingGL) GenFramebuffer() uint32 {
	fb := f.gen()
	f.rec("GenFramebuffer", fb)
	return fb
}

func (f *recordingGL) DeleteFramebuffer(fb uint32)                  { f.rec("DeleteFramebuffer", fb) }
func (f *recordingGL) BindFramebuffer(target glapi.Enum, fb uint32) { f.rec("BindFramebuffer", target, fb) }
func (f *recordingGL) DrawBuffers(bufs []glapi.Enum)                { f.rec("DrawBuffers", bufs) }
func (f *recordingGL) DrawBuffer(buf glapi.Enum)                    { f.rec("DrawBuffer", buf) }

func (f *recordingGL) FramebufferTexture(target, attachment glapi.Enum, texture uint32, level int32) {
	f.rec("FramebufferTexture", target, attachment, texture, level)
}

func (f *recordingGL) CheckFramebufferStatus(target glapi.Enum) glapi.Enum {
	f.rec("CheckFramebufferStatus", target)
	if f.incompleteFB {
		return 0x8CD6
	}
	return glapi.FRAMEBUFFER_COMPLETE
}

func (f *recordingGL) CreateShader(xtype glapi.Enum) uint32 {
	s := f.gen()
	f.rec("CreateShader", xtype, s)
	return s
}

func (f *recordingGL) ShaderSource(shader uint32, source string) {
	f.rec("ShaderSource", shader)
	f.sources[shader] = source
}

// CompileShader fails on sources carrying an #error directive.
func (f *recordingGL) CompileShader(shader uint32) {
	f.rec("CompileShader", shader)
	f.compiled[shader] = !strings.Contains(f.sources[shader], "#error")
}

func (f *recordingGL) GetShaderi(shader uint32, pname glapi.Enum) int32 {
	if pname == glapi.COMPILE_STATUS && f.compiled[shader] {
		return glapi.TRUE
	}
	return glapi.FALSE
}

func (f *recordingGL) GetShaderInfoLog(shader uint32) string { return "0:1(1): error: #error" }
func (f *recordingGL) DeleteShader(shader uint32)            { f.rec("DeleteShader", shader) }

func (f *recordingGL) CreateProgram() uint32 {
	p := f.gen()
	f.rec("CreateProgram", p)
	return p
}

func (f *recordingGL) AttachShader(program, shader uint32) {
	f.rec("AttachShader", program, shader)
	f.attached[program] = append(f.attached[program], shader)
}

// LinkProgram fails when an attached source contains LINK_FAIL.
func (f *recordingGL) LinkProgram(program uint32) {
	f.rec("LinkProgram", program)
	ok := true
	for _, s := range f.attached[program] {
		if strings.Contains(f.sources[s], "LINK_FAIL") {
			ok = false
		}
	}
	f.linked[program] = ok
}

func (f *recordingGL) GetProgrami(program uint32, pname glapi.Enum) int32 {
	if pname == glapi.LINK_STATUS && f.linked[program] {
		return glapi.TRUE
	}
	return glapi.FALSE
}

func (f *recordingGL) GetProgramInfoLog(program uint32) string { return "link error" }
func (f *recordingGL) DeleteProgram(program uint32)            { f.rec("DeleteProgram", program) }

func (f *recordingGL) UseProgram(program uint32) {
	f.rec("UseProgram", program)
	f.program = program
}

func (f *recordingGL) programSource(program uint32) string {
	var sb strings.Builder
	for _, s := range f.attached[program] {
		sb.WriteString(f.sources[s])
	}
	return sb.String()
}

func (f *recordingGL) GetUniformBlockIndex(program uint32, name string) uint32 {
	if strings.Contains(f.programSource(program), name) {
		return 0
	}
	return glapi.INVALID_INDEX
}

func (f *recordingGL) UniformBlockBinding(program, index, binding uint32) {
	f.rec("UniformBlockBinding", program, index, binding)
}

func (f *recordingGL) GetUniformLocation(program uint32, name string) int32 {
	if strings.Contains(f.programSource(program), name) {
		return int32(len(name))
	}
	return -1
}

func (f *recordingGL) Uniform1i(location, v int32) { f.rec("Uniform1i", location, v) }

func (f *recordingGL) UniformMatrix4fv(location int32, value []float32) {
	f.rec("UniformMatrix4fv", location, value)
}

func (f *recordingGL) DrawArrays(mode glapi.Enum, first, count int32) {
	f.rec("DrawArrays", mode, first, count)
}

func (f *recordingGL) DrawArraysInstanced(mode glapi.Enum, first, count, instances int32) {
	f.rec("DrawArraysInstanced", mode, first, count, instances)
}

func (f *recordingGL) DrawElementsBaseVertex(mode glapi.Enum, count int32, xtype glapi.Enum, offset int, baseVertex int32) {
	f.rec("DrawElementsBaseVertex", mode, count, xtype, offset, baseVertex)
}

func (f *recordingGL) DrawElementsInstancedBaseVertex(mode glapi.Enum, count int32, xtype glapi.Enum, offset int, instances, baseVertex int32) {
	f.rec("DrawElementsInstancedBaseVertex", mode, count, xtype, offset, instances, baseVertex)
}

func (f *recordingGL) GenQuery() uint32 {
	q := f.gen()
	f.rec("GenQuery", q)
	return q
}

func (f *recordingGL) DeleteQuery(query uint32)                   { f.rec("DeleteQuery", query) }
func (f *recordingGL) BeginQuery(target glapi.Enum, query uint32) { f.rec("BeginQuery", target, query) }
func (f *recordingGL) EndQuery(target glapi.Enum)                 { f.rec("EndQuery", target) }
func (f *recordingGL) QueryCounter(query uint32, target glapi.Enum) {
	f.rec("QueryCounter", query, target)
}

func (f *recordingGL) GetQueryObjectui(query uint32, pname glapi.Enum) uint32 {
	f.rec("GetQueryObjectui", query, pname)
	if f.queryReady {
		return 1
	}
	return 0
}

func (f *recordingGL) GetQueryObjectui64(query uint32, pname glapi.Enum) uint64 {
	f.rec("GetQueryObjectui64", query, pname)
	return 42
}

type fakeSurface struct {
	width, height uint32
	format        platform.SurfaceFormat
	swaps         int
	interval      int
}

func (s *fakeSurface) Size() (uint32, uint32)              { return s.width, s.height }
func (s *fakeSurface) FramebufferSize() (uint32, uint32)   { return s.width, s.height }
func (s *fakeSurface) PixelFormat() platform.SurfaceFormat { return s.format }
func (s *fakeSurface) MakeCurrent()                        {}
func (s *fakeSurface) SwapBuffers()                        { s.swaps++ }
func (s *fakeSurface) SetSwapInterval(interval int)        { s.interval = interval }

// newTestDevice returns an initialized device with the call log cleared.
func newTestDevice(t *testing.T) (*Device, *recordingGL, *fakeSurface) {
	t.Helper()
	fake := newRecordingGL()
	surface := &fakeSurface{
		width:  640,
		height: 480,
		format: platform.SurfaceFormat{ColorBits: 32, DepthBits: 24, StencilBits: 8},
	}
	d := New(config.Default(), surface, fake)
	require.NoError(t, d.Initialize())
	fake.reset()
	return d, fake, surface
}
