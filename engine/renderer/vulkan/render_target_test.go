package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func multiLayout(mask uint8) attachmentLayout {
	return attachmentLayout{
		colors:       [metadata.MaxRenderTargets]vk.Format{vk.FormatR8g8b8a8Unorm, vk.FormatR16g16b16a16Sfloat, vk.FormatR8g8b8a8Unorm},
		count:        3,
		mask:         mask,
		depth:        vk.FormatD24UnormS8Uint,
		depthStencil: true,
	}
}

func TestDescribePassKeepsDisabledSlotsUnused(t *testing.T) {
	desc := describePass(passKey{layout: multiLayout(0b101)})

	require.Len(t, desc.attachments, 4)
	require.Len(t, desc.colorRefs, 3)
	assert.Equal(t, uint32(0), desc.colorRefs[0].Attachment)
	assert.Equal(t, uint32(vk.AttachmentUnused), desc.colorRefs[1].Attachment)
	assert.Equal(t, uint32(2), desc.colorRefs[2].Attachment)
	require.NotNil(t, desc.depthRef)
	assert.Equal(t, uint32(3), desc.depthRef.Attachment)
}

func TestDescribePassLoadsOffscreenTargets(t *testing.T) {
	desc := describePass(passKey{layout: multiLayout(0b111)})
	for _, a := range desc.attachments[:3] {
		assert.Equal(t, vk.AttachmentLoadOpLoad, a.LoadOp)
		assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, a.InitialLayout)
		assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, a.FinalLayout)
	}
	depth := desc.attachments[3]
	assert.Equal(t, vk.AttachmentLoadOpLoad, depth.StencilLoadOp)
	assert.Equal(t, vk.AttachmentStoreOpStore, depth.StencilStoreOp)
	assert.Equal(t, vk.ImageLayoutDepthStencilReadOnlyOptimal, depth.FinalLayout)
}

func TestDescribePassFreshBackbuffer(t *testing.T) {
	layout := attachmentLayout{
		colors:     [metadata.MaxRenderTargets]vk.Format{vk.FormatB8g8r8a8Unorm},
		count:      1,
		mask:       1,
		depth:      vk.FormatD32Sfloat,
		backbuffer: true,
	}
	desc := describePass(passKey{layout: layout, fresh: true})

	require.Len(t, desc.attachments, 2)
	color, depth := desc.attachments[0], desc.attachments[1]
	assert.Equal(t, vk.AttachmentLoadOpDontCare, color.LoadOp)
	assert.Equal(t, vk.ImageLayoutUndefined, color.InitialLayout)
	assert.Equal(t, vk.ImageLayoutPresentSrc, color.FinalLayout)
	assert.Equal(t, vk.ImageLayoutUndefined, depth.InitialLayout)
	// no stencil bits, so stencil contents are never kept
	assert.Equal(t, vk.AttachmentStoreOpDontCare, depth.StencilStoreOp)
}

func TestDescribePassWithoutDepth(t *testing.T) {
	layout := attachmentLayout{colors: [metadata.MaxRenderTargets]vk.Format{vk.FormatR8g8b8a8Unorm}, count: 1, mask: 1}
	desc := describePass(passKey{layout: layout})
	assert.Len(t, desc.attachments, 1)
	assert.Nil(t, desc.depthRef)
}

func TestTargetMask(t *testing.T) {
	assert.Equal(t, uint8(0b101), targetMask(3, []bool{true, false, true}))
	assert.Equal(t, uint8(0b001), targetMask(3, []bool{true}))
	assert.Equal(t, uint8(0b011), targetMask(2, []bool{true, true, true, true}))
	assert.Zero(t, targetMask(4, nil))
}

func TestValidateTargetDesc(t *testing.T) {
	tests := []struct {
		name string
		desc metadata.RenderTargetDesc
		err  error
	}{
		{"backbuffer", metadata.RenderTargetDesc{Kind: metadata.RenderTargetBackbuffer}, core.ErrUnsupported},
		{"2d with two colors", metadata.RenderTargetDesc{
			Kind:         metadata.RenderTarget2D,
			ColorFormats: []metadata.Format{metadata.FormatRGBA8Unorm, metadata.FormatRGBA8Unorm},
		}, core.ErrResourceCreation},
		{"empty multi", metadata.RenderTargetDesc{Kind: metadata.RenderTargetMulti}, core.ErrResourceCreation},
		{"no attachment", metadata.RenderTargetDesc{Kind: metadata.RenderTarget2D}, core.ErrResourceCreation},
		{"color as depth", metadata.RenderTargetDesc{
			Kind:        metadata.RenderTarget2D,
			DepthFormat: metadata.FormatRGBA8Unorm,
		}, core.ErrResourceCreation},
		{"depth as color", metadata.RenderTargetDesc{
			Kind:         metadata.RenderTarget2D,
			ColorFormats: []metadata.Format{metadata.FormatD32Float},
		}, core.ErrResourceCreation},
		{"depth only", metadata.RenderTargetDesc{Kind: metadata.RenderTarget2D, DepthFormat: metadata.FormatD32Float}, nil},
		{"multi", metadata.RenderTargetDesc{
			Kind:         metadata.RenderTargetMulti,
			ColorFormats: []metadata.Format{metadata.FormatRGBA8Unorm, metadata.FormatRGBA16Float},
			DepthFormat:  metadata.FormatD24UnormS8Uint,
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTargetDesc(tt.desc)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func offscreen(colors int, depth metadata.Format) *metadata.RenderTarget {
	rt := &metadata.RenderTarget{Desc: metadata.RenderTargetDesc{Kind: metadata.RenderTargetMulti, DepthFormat: depth}}
	for i := 0; i < colors; i++ {
		rt.Color = append(rt.Color, &metadata.Texture{})
	}
	return rt
}

func TestClearAttachmentsSkipsDisabledSlots(t *testing.T) {
	rt := offscreen(3, metadata.FormatUnknown)
	out := clearAttachments(rt, 0b110, metadata.ClearDesc{Flags: metadata.ClearColor | metadata.ClearDepth})

	require.Len(t, out, 2)
	assert.Equal(t, uint32(1), out[0].ColorAttachment)
	assert.Equal(t, uint32(2), out[1].ColorAttachment)
}

func TestClearAttachmentsStencilNeedsStencilBits(t *testing.T) {
	flags := metadata.ClearDepth | metadata.ClearStencil

	out := clearAttachments(offscreen(0, metadata.FormatD32Float), 0, metadata.ClearDesc{Flags: flags})
	require.Len(t, out, 1)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), out[0].AspectMask)

	out = clearAttachments(offscreen(0, metadata.FormatD24UnormS8Uint), 0, metadata.ClearDesc{Flags: flags})
	require.Len(t, out, 1)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), out[0].AspectMask)

	out = clearAttachments(offscreen(0, metadata.FormatD24UnormS8Uint), 0, metadata.ClearDesc{Flags: metadata.ClearStencil})
	require.Len(t, out, 1)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectStencilBit), out[0].AspectMask)
}

func TestClearAttachmentsBackbufferHasOneSlot(t *testing.T) {
	rt := &metadata.RenderTarget{Desc: metadata.RenderTargetDesc{Kind: metadata.RenderTargetBackbuffer}}
	out := clearAttachments(rt, 0, metadata.ClearDesc{Flags: metadata.ClearColor})
	require.Len(t, out, 1)
	assert.Equal(t, uint32(0), out[0].ColorAttachment)
}
