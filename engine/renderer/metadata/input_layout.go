package metadata

import "github.com/spaghettifunk/anima-gpu/engine/core"

/** @brief Maximum number of vertex buffer slots in a layout. */
const MaxVertexBuffers = 8

/**
 * @brief One vertex attribute. Format names the component type and
 * Components the count, so FormatR32Float with 3 components is a vec3.
 */
type InputElement struct {
	/** @brief Shader attribute location. */
	Location   uint32
	Format     Format
	Components uint32
	/** @brief Byte offset inside one vertex of the buffer in Slot. */
	Offset uint32
	/** @brief Advance per instance instead of per vertex. */
	PerInstance bool
	/** @brief Instances drawn per element advance; 0 is treated as 1. */
	InstanceStepRate uint32
	/** @brief Vertex buffer slot the attribute reads from. */
	Slot uint32
}

// Size returns the attribute size in bytes.
func (e *InputElement) Size() uint32 {
	return e.Components * uint32(e.Format.BytesPerPixel())
}

// Normalized reports whether integer data is read as normalized floats.
func (e *InputElement) Normalized() bool {
	switch e.Format {
	case FormatR8Unorm, FormatRG8Unorm, FormatRGBA8Unorm, FormatBGRA8Unorm, FormatD16Unorm:
		return true
	}
	return false
}

type InputLayoutDesc struct {
	Name     string
	Elements []InputElement
}

// Slots returns the number of vertex buffer slots the layout declares.
func (d *InputLayoutDesc) Slots() int {
	n := 0
	for _, e := range d.Elements {
		if int(e.Slot)+1 > n {
			n = int(e.Slot) + 1
		}
	}
	return n
}

// PerInstance reports whether any element of slot advances per instance.
func (d *InputLayoutDesc) PerInstance(slot uint32) bool {
	for _, e := range d.Elements {
		if e.Slot == slot && e.PerInstance {
			return true
		}
	}
	return false
}

type InputLayout struct {
	ID   core.ID
	Desc InputLayoutDesc
}

func (l *InputLayout) Handle() core.ID {
	if l == nil {
		return core.InvalidID
	}
	return l.ID
}
