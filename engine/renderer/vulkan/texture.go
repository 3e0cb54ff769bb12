package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

type vkTexture struct {
	image *VulkanImage
	desc  metadata.TextureDesc
}

func mipExtent(size, mip uint32) uint32 {
	return max(size>>mip, 1)
}

// restingLayout is the layout a texture is kept in outside render passes.
func restingLayout(f metadata.Format) vk.ImageLayout {
	if f.IsDepth() {
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	}
	return vk.ImageLayoutShaderReadOnlyOptimal
}

func textureUsage(desc metadata.TextureDesc) vk.ImageUsageFlags {
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	if desc.Bind.Has(metadata.BindRenderTarget) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if desc.Bind.Has(metadata.BindDepthStencil) || desc.Format.IsDepth() {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if desc.Bind.Has(metadata.BindUnorderedAccess) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	return usage
}

func (d *Device) formatSupported(format vk.Format, usage vk.ImageUsageFlags) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.context.Device.PhysicalDevice, format, &props)
	props.Deref()
	features := props.OptimalTilingFeatures
	if features&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit) == 0 {
		return false
	}
	if usage&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) != 0 &&
		features&vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit) == 0 {
		return false
	}
	if usage&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit) != 0 &&
		features&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) == 0 {
		return false
	}
	return true
}

// validateTextureData checks every entry against the mip chain and returns
// the expected byte count of each.
func validateTextureData(desc metadata.TextureDesc, data []metadata.TextureData) ([]int, error) {
	sizes := make([]int, len(data))
	for i, td := range data {
		if td.Mip >= desc.MipLevels || td.Layer >= desc.Layers() {
			return nil, fmt.Errorf("%w: texture %q has data for mip %d layer %d outside its range",
				core.ErrResourceCreation, desc.Name, td.Mip, td.Layer)
		}
		w, h := mipExtent(desc.Width, td.Mip), mipExtent(desc.Height, td.Mip)
		want := int(w * h * uint32(desc.Format.BytesPerPixel()))
		if desc.Dimension == metadata.Texture3D {
			want *= int(mipExtent(desc.Layers(), td.Mip))
		}
		if len(td.Pixels) < want {
			return nil, fmt.Errorf("%w: texture %q mip %d layer %d has %d bytes, needs %d",
				core.ErrResourceCreation, desc.Name, td.Mip, td.Layer, len(td.Pixels), want)
		}
		sizes[i] = want
	}
	return sizes, nil
}

func (d *Device) CreateTexture(desc metadata.TextureDesc, data []metadata.TextureData) (*metadata.Texture, error) {
	t, err := d.createTexture(desc, data)
	if err != nil {
		return nil, err
	}
	id := d.textures.Insert(t)
	return &metadata.Texture{ID: id, Desc: t.desc}, nil
}

func (d *Device) createTexture(desc metadata.TextureDesc, data []metadata.TextureData) (*vkTexture, error) {
	format, ok := nativeFormat(desc.Format)
	if !ok {
		return nil, fmt.Errorf("%w: texture %q has unsupported format %s", core.ErrResourceCreation, desc.Name, desc.Format)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q has zero extent", core.ErrResourceCreation, desc.Name)
	}
	if desc.Dimension == metadata.TextureCube && desc.Width != desc.Height {
		return nil, fmt.Errorf("%w: cube texture %q is not square", core.ErrResourceCreation, desc.Name)
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	usage := textureUsage(desc)
	if !d.formatSupported(format, usage) {
		return nil, fmt.Errorf("%w: format %s of texture %q is not supported by the device",
			core.ErrResourceCreation, desc.Format, desc.Name)
	}
	sizes, err := validateTextureData(desc, data)
	if err != nil {
		return nil, err
	}

	config := VulkanImageConfig{
		Type:       vk.ImageType2d,
		Width:      desc.Width,
		Height:     desc.Height,
		Layers:     1,
		Mips:       desc.MipLevels,
		Format:     format,
		Tiling:     vk.ImageTilingOptimal,
		Usage:      usage,
		Memory:     vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		Aspect:     aspectMask(desc.Format),
		CreateView: true,
	}
	switch desc.Dimension {
	case metadata.TextureCube:
		config.Layers, config.Cube = 6, true
	case metadata.Texture3D:
		config.Type, config.Depth = vk.ImageType3d, desc.Layers()
	}
	image, err := ImageCreate(d.context, config)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Name, err)
	}
	t := &vkTexture{image: image, desc: desc}
	if err := d.uploadTexture(t, data, sizes); err != nil {
		image.ImageDestroy(d.context)
		return nil, fmt.Errorf("texture %q: %w", desc.Name, err)
	}
	return t, nil
}

// uploadTexture copies the initial data through a staging buffer, fills the
// remaining mips by blitting when mip 1 was not given, and leaves the image
// in its resting layout.
func (d *Device) uploadTexture(t *vkTexture, data []metadata.TextureData, sizes []int) error {
	total := 0
	for _, n := range sizes {
		total += n
	}
	var staging *VulkanBuffer
	if total > 0 {
		var err error
		staging, err = BufferCreate(d.context, uint64(total), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
		if err != nil {
			return err
		}
		defer staging.Destroy(d.context)
	}

	generate := t.desc.MipLevels > 1 && !t.desc.Format.IsDepth() && t.desc.Dimension != metadata.Texture3D && len(data) > 0
	regions := make([]vk.BufferImageCopy, 0, len(data))
	offset := 0
	for i, td := range data {
		staging.Write(uint64(offset), td.Pixels[:sizes[i]])
		depth := uint32(1)
		layer := td.Layer
		if t.desc.Dimension == metadata.Texture3D {
			depth, layer = mipExtent(t.desc.Layers(), td.Mip), 0
		}
		regions = append(regions, vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(offset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     t.image.Aspect,
				MipLevel:       td.Mip,
				BaseArrayLayer: layer,
				LayerCount:     1,
			},
			ImageExtent: vk.Extent3D{
				Width:  mipExtent(t.desc.Width, td.Mip),
				Height: mipExtent(t.desc.Height, td.Mip),
				Depth:  depth,
			},
		})
		offset += sizes[i]
		if td.Mip == 1 {
			generate = false
		}
	}

	return d.submitOnce(func(cb *VulkanCommandBuffer) {
		if len(regions) > 0 {
			t.image.Transition(cb, vk.ImageLayoutTransferDstOptimal)
			vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, t.image.Handle, vk.ImageLayoutTransferDstOptimal,
				uint32(len(regions)), regions)
		}
		if generate {
			generateMips(cb, t.image)
		}
		t.image.Transition(cb, restingLayout(t.desc.Format))
	})
}

func mipBarrier(cb *VulkanCommandBuffer, image *VulkanImage, mip uint32) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferReadBit),
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutTransferSrcOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:   image.Aspect,
			BaseMipLevel: mip,
			LevelCount:   1,
			LayerCount:   image.Layers,
		},
	}
	stage := vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	vk.CmdPipelineBarrier(cb.Handle, stage, stage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// generateMips expects every level in TransferDst and leaves all of them in
// TransferSrc.
func generateMips(cb *VulkanCommandBuffer, image *VulkanImage) {
	for mip := uint32(1); mip < image.Mips; mip++ {
		mipBarrier(cb, image, mip-1)
		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: image.Aspect, MipLevel: mip - 1, LayerCount: image.Layers},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: image.Aspect, MipLevel: mip, LayerCount: image.Layers},
		}
		blit.SrcOffsets[1] = vk.Offset3D{X: int32(mipExtent(image.Width, mip-1)), Y: int32(mipExtent(image.Height, mip-1)), Z: 1}
		blit.DstOffsets[1] = vk.Offset3D{X: int32(mipExtent(image.Width, mip)), Y: int32(mipExtent(image.Height, mip)), Z: 1}
		vk.CmdBlitImage(cb.Handle, image.Handle, vk.ImageLayoutTransferSrcOptimal, image.Handle, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{blit}, vk.FilterLinear)
	}
	mipBarrier(cb, image, image.Mips-1)
	image.Layout = vk.ImageLayoutTransferSrcOptimal
}

// UpdateTexture goes through a one-off submission that waits for the queue.
// It is not ordered against the frame currently being recorded.
func (d *Device) UpdateTexture(texture *metadata.Texture, mip, x, y, width, height uint32, pixels []byte) error {
	t, ok := d.textures.Get(texture.Handle())
	if !ok {
		return fmt.Errorf("%w: texture %s", core.ErrInvalidHandle, texture.Handle())
	}
	if t.desc.Dimension != metadata.Texture2D {
		return fmt.Errorf("%w: partial updates of texture %q", core.ErrUnsupported, t.desc.Name)
	}
	if mip >= t.desc.MipLevels || x+width > mipExtent(t.desc.Width, mip) || y+height > mipExtent(t.desc.Height, mip) {
		return fmt.Errorf("update region %dx%d at %d,%d is outside mip %d of texture %q",
			width, height, x, y, mip, t.desc.Name)
	}
	want := int(width * height * uint32(t.desc.Format.BytesPerPixel()))
	if len(pixels) < want {
		return fmt.Errorf("update of texture %q has %d bytes, needs %d", t.desc.Name, len(pixels), want)
	}
	if want == 0 {
		return nil
	}

	staging, err := BufferCreate(d.context, uint64(want), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	defer staging.Destroy(d.context)
	staging.Write(0, pixels[:want])

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{AspectMask: t.image.Aspect, MipLevel: mip, LayerCount: 1},
		ImageOffset:      vk.Offset3D{X: int32(x), Y: int32(y)},
		ImageExtent:      vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	resting := t.image.Layout
	return d.submitOnce(func(cb *VulkanCommandBuffer) {
		t.image.Transition(cb, vk.ImageLayoutTransferDstOptimal)
		vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, t.image.Handle, vk.ImageLayoutTransferDstOptimal,
			1, []vk.BufferImageCopy{region})
		t.image.Transition(cb, resting)
	})
}

func (d *Device) DestroyTexture(texture *metadata.Texture) {
	t, ok := d.textures.Remove(texture.Handle())
	if !ok {
		core.LogWarn("DestroyTexture called with an invalid texture %s", texture.Handle())
		return
	}
	d.reg.ForgetTexture(texture.ID)
	d.dirty |= dirtyDescriptors
	d.release(func() { t.image.ImageDestroy(d.context) })
}
