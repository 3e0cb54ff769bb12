package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func TestMipExtentNeverReachesZero(t *testing.T) {
	assert.Equal(t, uint32(64), mipExtent(256, 2))
	assert.Equal(t, uint32(1), mipExtent(256, 12))
	assert.Equal(t, uint32(1), mipExtent(3, 2))
}

func TestRestingLayout(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, restingLayout(metadata.FormatRGBA8Unorm))
	assert.Equal(t, vk.ImageLayoutDepthStencilReadOnlyOptimal, restingLayout(metadata.FormatD24UnormS8Uint))
}

func TestTextureUsage(t *testing.T) {
	base := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	assert.Equal(t, base, textureUsage(metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm}))

	color := textureUsage(metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm, Bind: metadata.BindRenderTarget})
	assert.Equal(t, base|vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit), color)

	// a depth format is always attachable
	depth := textureUsage(metadata.TextureDesc{Format: metadata.FormatD32Float})
	assert.Equal(t, base|vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), depth)
}

func TestBufferUsage(t *testing.T) {
	transfer := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	assert.Equal(t, transfer|vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), bufferUsage(metadata.BindVertexBuffer))
	assert.Equal(t, transfer|vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), bufferUsage(metadata.BindConstantBuffer))

	all := bufferUsage(0)
	for _, bit := range []vk.BufferUsageFlagBits{vk.BufferUsageVertexBufferBit, vk.BufferUsageIndexBufferBit, vk.BufferUsageUniformBufferBit} {
		assert.NotZero(t, all&vk.BufferUsageFlags(bit))
	}
}

func TestValidateTextureData(t *testing.T) {
	desc := metadata.TextureDesc{Format: metadata.FormatRGBA8Unorm, Width: 4, Height: 4, MipLevels: 3, Name: "chain"}
	sizes, err := validateTextureData(desc, []metadata.TextureData{
		{Mip: 0, Pixels: make([]byte, 64)},
		{Mip: 1, Pixels: make([]byte, 16)},
		{Mip: 2, Pixels: make([]byte, 4)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{64, 16, 4}, sizes)

	_, err = validateTextureData(desc, []metadata.TextureData{{Mip: 1, Pixels: make([]byte, 8)}})
	assert.ErrorIs(t, err, core.ErrResourceCreation)

	_, err = validateTextureData(desc, []metadata.TextureData{{Mip: 3, Pixels: make([]byte, 4)}})
	assert.ErrorIs(t, err, core.ErrResourceCreation)

	cube := metadata.TextureDesc{Dimension: metadata.TextureCube, Format: metadata.FormatR8Unorm, Width: 2, Height: 2, MipLevels: 1}
	_, err = validateTextureData(cube, []metadata.TextureData{{Layer: 5, Pixels: make([]byte, 4)}})
	assert.NoError(t, err)
	_, err = validateTextureData(cube, []metadata.TextureData{{Layer: 6, Pixels: make([]byte, 4)}})
	assert.ErrorIs(t, err, core.ErrResourceCreation)
}

func TestValidateVolumeData(t *testing.T) {
	desc := metadata.TextureDesc{Dimension: metadata.Texture3D, Format: metadata.FormatR8Unorm, Width: 4, Height: 4, Depth: 4, MipLevels: 2}
	sizes, err := validateTextureData(desc, []metadata.TextureData{
		{Mip: 0, Pixels: make([]byte, 64)},
		{Mip: 1, Pixels: make([]byte, 8)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{64, 8}, sizes)
}
