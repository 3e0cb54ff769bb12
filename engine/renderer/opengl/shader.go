package opengl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

const glslVersion = "#version 410 core"

var stageTypes = [metadata.ShaderStageCount]glapi.Enum{
	metadata.StageVertex:   glapi.VERTEX_SHADER,
	metadata.StagePixel:    glapi.FRAGMENT_SHADER,
	metadata.StageGeometry: glapi.GEOMETRY_SHADER,
	metadata.StageHull:     glapi.TESS_CONTROL_SHADER,
	metadata.StageDomain:   glapi.TESS_EVALUATION_SHADER,
}

type glShader struct {
	name   string
	desc   metadata.ShaderDesc
	stages [metadata.ShaderStageCount]uint32
}

func (s *glShader) mask() metadata.StageMask {
	var m metadata.StageMask
	for i, name := range s.stages {
		if name != 0 {
			m |= metadata.ShaderStage(i).Mask()
		}
	}
	return m
}

func (s *glShader) release(gl glapi.Functions) {
	for i, name := range s.stages {
		if name != 0 {
			gl.DeleteShader(name)
			s.stages[i] = 0
		}
	}
}

// glslSource puts the version line first, then the stage define, then maps the
// entry point onto main.
func glslSource(stage metadata.ShaderStage, src *metadata.ShaderStageSource) string {
	version, body := glslVersion, src.Source
	trimmed := strings.TrimLeft(body, " \t\r\n")
	if strings.HasPrefix(trimmed, "#version") {
		line, rest, _ := strings.Cut(trimmed, "\n")
		version, body = strings.TrimSpace(line), rest
	}
	var sb strings.Builder
	sb.WriteString(version)
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "#define ANIMA_STAGE_%s 1\n", strings.ToUpper(stage.String()))
	if entry := src.Entry(); entry != "main" {
		fmt.Fprintf(&sb, "#define %s main\n", entry)
	}
	sb.WriteString(body)
	return sb.String()
}

func (d *Device) compileGLSL(xtype glapi.Enum, source string) (uint32, error) {
	name := d.gl.CreateShader(xtype)
	d.gl.ShaderSource(name, source)
	d.gl.CompileShader(name)
	if d.gl.GetShaderi(name, glapi.COMPILE_STATUS) == glapi.FALSE {
		log := d.gl.GetShaderInfoLog(name)
		d.gl.DeleteShader(name)
		return 0, errors.New(strings.TrimSpace(log))
	}
	return name, nil
}

// compileStages compiles every present stage. Stages that fail are left at
// zero and their diagnostics are joined into the returned error.
func (d *Device) compileStages(desc *metadata.ShaderDesc) ([metadata.ShaderStageCount]uint32, bool, error) {
	var stages [metadata.ShaderStageCount]uint32
	var errs []error
	present := false
	for i := range desc.Stages {
		stage := metadata.ShaderStage(i)
		src := &desc.Stages[i]
		if !src.Present() {
			continue
		}
		present = true
		name, err := d.compileGLSL(stageTypes[stage], glslSource(stage, src))
		if err != nil {
			core.LogError("failed to compile %s stage of shader %q: %s", stage, desc.Name, err)
			errs = append(errs, fmt.Errorf("%w: %s stage of %q: %w", core.ErrCompile, stage, desc.Name, err))
			continue
		}
		stages[i] = name
	}
	return stages, present, errors.Join(errs...)
}

/**
 * @brief Compiles every stage whose source implements its entry point. The
 * returned shader carries the stages that compiled even when err is not nil.
 */
func (d *Device) CreateShader(desc metadata.ShaderDesc) (*metadata.Shader, error) {
	if desc.Stages[metadata.StageCompute].Present() {
		return nil, fmt.Errorf("%w: compute stage of %q needs OpenGL 4.3", core.ErrUnsupported, desc.Name)
	}
	stages, present, err := d.compileStages(&desc)
	if !present {
		return nil, fmt.Errorf("%w: shader %q has no stage implementing its entry point", core.ErrResourceCreation, desc.Name)
	}
	s := &glShader{name: desc.Name, desc: desc, stages: stages}
	id := d.shaders.Insert(s)
	return &metadata.Shader{ID: id, Name: desc.Name, Mask: s.mask()}, err
}

/**
 * @brief Recompiles a shader in place. On any compile error the previous
 * stages stay live. On success every program built from the shader is
 * purged and the bound program is resolved again.
 */
func (d *Device) UpdateShader(shader *metadata.Shader, desc metadata.ShaderDesc) error {
	s, ok := d.shaders.Get(shader.Handle())
	if !ok {
		return fmt.Errorf("%w: shader %s", core.ErrInvalidHandle, shader.Handle())
	}
	if desc.Stages[metadata.StageCompute].Present() {
		return fmt.Errorf("%w: compute stage of %q needs OpenGL 4.3", core.ErrUnsupported, desc.Name)
	}
	stages, present, err := d.compileStages(&desc)
	if err != nil || !present {
		for _, name := range stages {
			if name != 0 {
				d.gl.DeleteShader(name)
			}
		}
		if err == nil {
			err = fmt.Errorf("%w: shader %q has no stage implementing its entry point", core.ErrResourceCreation, desc.Name)
		}
		core.LogWarn("keeping previous stages of shader %q", s.name)
		return err
	}

	d.releasePrograms(d.programs.Purge(shader.ID))
	s.release(d.gl)
	s.stages, s.desc = stages, desc
	shader.Mask = s.mask()

	bound := false
	for i := 0; i < metadata.ShaderStageCount; i++ {
		stage := metadata.ShaderStage(i)
		if d.reg.Shader(stage) != shader.ID {
			continue
		}
		if !shader.Implements(stage) {
			d.reg.SwapShader(stage, core.InvalidID)
		}
		bound = true
	}
	if bound {
		d.resolveProgram()
	}
	core.LogInfo("shader %q reloaded", s.name)
	return nil
}

func (d *Device) DestroyShader(shader *metadata.Shader) {
	s, ok := d.shaders.Remove(shader.Handle())
	if !ok {
		core.LogWarn("DestroyShader called with an invalid shader %s", shader.Handle())
		return
	}
	d.releasePrograms(d.programs.Purge(shader.ID))
	s.release(d.gl)

	bound := false
	for _, id := range d.reg.Shaders() {
		if id == shader.ID {
			bound = true
		}
	}
	d.reg.ForgetShader(shader.ID)
	if bound {
		d.resolveProgram()
	}
}

func (d *Device) releasePrograms(programs []uint32) {
	for _, p := range programs {
		if d.program == p {
			d.useProgram(0, false)
		}
		d.gl.DeleteProgram(p)
	}
}

/**
 * @brief Assigns shader to every stage in stages. A stage the shader does not
 * implement is cleared. The program is resolved only when a slot changed.
 */
func (d *Device) SetShader(shader *metadata.Shader, stages metadata.StageMask) {
	if shader != nil {
		_, ok := d.shaders.Get(shader.ID)
		core.Assert(ok, "SetShader with destroyed shader %q", shader.Name)
	}
	changed := false
	for i := 0; i < metadata.ShaderStageCount; i++ {
		stage := metadata.ShaderStage(i)
		if !stages.Has(stage) {
			continue
		}
		slot := core.InvalidID
		if shader.Implements(stage) {
			slot = shader.ID
		}
		if d.reg.SwapShader(stage, slot) {
			changed = true
		}
	}
	if !changed {
		d.metrics.CountRedundant()
		return
	}
	d.metrics.CountStateChange()
	d.resolveProgram()
}

func (d *Device) ActiveProgramValid() bool {
	return d.programValid
}

func (d *Device) resolveProgram() {
	slots := d.reg.Shaders()
	if state.Empty(slots) {
		d.useProgram(0, false)
		return
	}
	hash := state.CombineStages(slots)
	if program, status := d.programs.Get(hash); status != state.ProgramMissing {
		if status == state.ProgramFailed {
			d.useProgram(0, false)
			return
		}
		d.useProgram(program, true)
		return
	}

	program := d.gl.CreateProgram()
	for i, id := range slots {
		if !id.Valid() {
			continue
		}
		if s, ok := d.shaders.Get(id); ok && s.stages[i] != 0 {
			d.gl.AttachShader(program, s.stages[i])
		}
	}
	d.gl.LinkProgram(program)
	if d.gl.GetProgrami(program, glapi.LINK_STATUS) == glapi.FALSE {
		log := strings.TrimSpace(d.gl.GetProgramInfoLog(program))
		core.LogError("%s: program %016x: %s", core.ErrLink, hash, log)
		d.useProgram(0, false)
		d.gl.DeleteProgram(program)
		d.programs.StoreFailed(hash, slots)
		d.metrics.CountLinkFailure()
		return
	}
	d.programs.Store(hash, slots, program)
	d.metrics.CountLink()
	d.useProgram(program, true)
	d.bindProgramInterface(program)
}

// bindProgramInterface fixes the uniform block and sampler bindings of a
// freshly linked program. The program must be current.
func (d *Device) bindProgramInterface(program uint32) {
	for i := uint32(0); i < state.MaxConstantBuffers; i++ {
		if idx := d.gl.GetUniformBlockIndex(program, fmt.Sprintf("Constants%d", i)); idx != glapi.INVALID_INDEX {
			d.gl.UniformBlockBinding(program, idx, i)
		}
	}
	for i := int32(0); i < state.MaxTextureSlots; i++ {
		if loc := d.gl.GetUniformLocation(program, fmt.Sprintf("u_Texture%d", i)); loc >= 0 {
			d.gl.Uniform1i(loc, i)
		}
	}
}
