package vulkan

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/shadercache"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/state"
)

const cacheBackend = "vulkan"

// compileWGSL turns WGSL into SPIR-V bytes.
var compileWGSL = naga.Compile

type vkShader struct {
	name    string
	desc    metadata.ShaderDesc
	modules [metadata.ShaderStageCount]vk.ShaderModule
}

func (s *vkShader) mask() metadata.StageMask {
	var m metadata.StageMask
	for i, module := range s.modules {
		if module != vk.NullShaderModule {
			m |= metadata.ShaderStage(i).Mask()
		}
	}
	return m
}

func (s *vkShader) release(context *VulkanContext) {
	releaseModules(context, s.modules)
	s.modules = [metadata.ShaderStageCount]vk.ShaderModule{}
}

func releaseModules(context *VulkanContext, modules [metadata.ShaderStageCount]vk.ShaderModule) {
	for _, module := range modules {
		if module != vk.NullShaderModule {
			vk.DestroyShaderModule(context.Device.LogicalDevice, module, context.Allocator)
		}
	}
}

// spirv returns the bytecode of one stage, from the cache when the same
// source was compiled before.
func (d *Device) spirv(stage metadata.ShaderStage, src *metadata.ShaderStageSource) ([]byte, error) {
	key := shadercache.NewKey(cacheBackend, stage, src.Entry(), src.Source)
	if code, ok := d.cache.Load(key); ok {
		return code, nil
	}
	code, err := compileWGSL(src.Source)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("compiler returned %d bytes of SPIR-V", len(code))
	}
	if err := d.cache.Store(key, code); err != nil {
		core.LogWarn("shader cache store of %s failed: %s", key, err)
	}
	return code, nil
}

func (d *Device) createModule(code []byte) (vk.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    spirvWords(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.context.Device.LogicalDevice, &info, d.context.Allocator, &module); res != vk.Success {
		return vk.NullShaderModule, resultError("vkCreateShaderModule", res)
	}
	return module, nil
}

func unsupportedStages(desc *metadata.ShaderDesc) error {
	for _, stage := range []metadata.ShaderStage{metadata.StageGeometry, metadata.StageHull, metadata.StageDomain, metadata.StageCompute} {
		if desc.Stages[stage].Present() {
			return fmt.Errorf("%w: %s stage of %q on the Vulkan device", core.ErrUnsupported, stage, desc.Name)
		}
	}
	return nil
}

// compileStages compiles every present stage. Stages that fail are left
// null and their diagnostics are joined into the returned error.
func (d *Device) compileStages(desc *metadata.ShaderDesc) ([metadata.ShaderStageCount]vk.ShaderModule, bool, error) {
	var modules [metadata.ShaderStageCount]vk.ShaderModule
	var errs []error
	present := false
	for i := range desc.Stages {
		stage := metadata.ShaderStage(i)
		src := &desc.Stages[i]
		if !src.Present() {
			continue
		}
		present = true
		code, err := d.spirv(stage, src)
		if err != nil {
			core.LogError("failed to compile %s stage of shader %q: %s", stage, desc.Name, err)
			errs = append(errs, fmt.Errorf("%w: %s stage of %q: %w", core.ErrCompile, stage, desc.Name, err))
			continue
		}
		module, err := d.createModule(code)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s stage of %q: %w", core.ErrResourceCreation, stage, desc.Name, err))
			continue
		}
		modules[i] = module
	}
	return modules, present, errors.Join(errs...)
}

/**
 * @brief Compiles every WGSL stage whose source implements its entry point.
 * The returned shader carries the stages that compiled even when err is not
 * nil.
 */
func (d *Device) CreateShader(desc metadata.ShaderDesc) (*metadata.Shader, error) {
	if err := unsupportedStages(&desc); err != nil {
		return nil, err
	}
	modules, present, err := d.compileStages(&desc)
	if !present {
		return nil, fmt.Errorf("%w: shader %q has no stage implementing its entry point", core.ErrResourceCreation, desc.Name)
	}
	s := &vkShader{name: desc.Name, desc: desc, modules: modules}
	id := d.shaders.Insert(s)
	return &metadata.Shader{ID: id, Name: desc.Name, Mask: s.mask()}, err
}

/**
 * @brief Recompiles a shader in place. On any compile error the previous
 * modules stay live. On success every program built from the shader is
 * purged and the bound program is resolved again.
 */
func (d *Device) UpdateShader(shader *metadata.Shader, desc metadata.ShaderDesc) error {
	s, ok := d.shaders.Get(shader.Handle())
	if !ok {
		return fmt.Errorf("%w: shader %s", core.ErrInvalidHandle, shader.Handle())
	}
	if err := unsupportedStages(&desc); err != nil {
		return err
	}
	modules, present, err := d.compileStages(&desc)
	if err != nil || !present {
		releaseModules(d.context, modules)
		if err == nil {
			err = fmt.Errorf("%w: shader %q has no stage implementing its entry point", core.ErrResourceCreation, desc.Name)
		}
		core.LogWarn("keeping previous stages of shader %q", s.name)
		return err
	}

	d.releasePrograms(d.programs.Purge(shader.ID))
	old := s.modules
	d.release(func() { releaseModules(d.context, old) })
	s.modules, s.desc = modules, desc
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
	d.release(func() { s.release(d.context) })

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

// releasePrograms destroys the pipelines of purged programs once the frames
// that may use them retire. Failed links are stored as nil.
func (d *Device) releasePrograms(programs []*vkProgram) {
	for _, p := range programs {
		if p == nil {
			continue
		}
		if d.program == p {
			d.useProgram(nil, false)
		}
		d.release(func() { p.destroy(d.context) })
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

func (d *Device) useProgram(p *vkProgram, valid bool) {
	if d.program != p {
		d.dirty |= dirtyPipeline
	}
	d.program, d.programValid = p, valid
}

// resolveProgram looks the combination of bound stages up in the program
// cache. Linking collects the stage infos; a combination without a vertex
// stage cannot form a graphics pipeline and is cached as failed.
func (d *Device) resolveProgram() {
	slots := d.reg.Shaders()
	if state.Empty(slots) {
		d.useProgram(nil, false)
		return
	}
	hash := state.CombineStages(slots)
	if program, status := d.programs.Get(hash); status != state.ProgramMissing {
		if status == state.ProgramFailed {
			d.useProgram(nil, false)
			return
		}
		d.useProgram(program, true)
		return
	}

	program := &vkProgram{hash: hash, pipelines: make(map[pipelineKey]vk.Pipeline)}
	for i, id := range slots {
		if !id.Valid() {
			continue
		}
		s, ok := d.shaders.Get(id)
		if !ok || s.modules[i] == vk.NullShaderModule {
			continue
		}
		program.stages = append(program.stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stageFlags[i],
			Module: s.modules[i],
			PName:  VulkanSafeString(s.desc.Stages[i].Entry()),
		})
	}
	if !slots[metadata.StageVertex].Valid() || len(program.stages) == 0 {
		core.LogError("%s: program %016x has no vertex stage", core.ErrLink, hash)
		d.useProgram(nil, false)
		d.programs.StoreFailed(hash, slots)
		d.metrics.CountLinkFailure()
		return
	}
	d.programs.Store(hash, slots, program)
	d.metrics.CountLink()
	d.useProgram(program, true)
}
