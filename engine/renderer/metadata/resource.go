package metadata

import "github.com/spaghettifunk/anima-gpu/engine/core"

/**
 * @brief Describes a GPU buffer at creation time.
 */
type BufferDesc struct {
	/** @brief Size in bytes. */
	Size uint64
	/** @brief Per-vertex stride in bytes for vertex buffers. */
	Stride uint32
	Usage  Usage
	Access Access
	Bind   BindFlags
	/** @brief Optional debug label. */
	Name string
}

/**
 * @brief A GPU buffer. The ID resolves to the backend object on the device
 * that created it.
 */
type Buffer struct {
	ID   core.ID
	Desc BufferDesc
}

func (b *Buffer) Handle() core.ID {
	if b == nil {
		return core.InvalidID
	}
	return b.ID
}

type TextureDimension uint8

const (
	Texture2D TextureDimension = iota
	Texture3D
	TextureCube
)

/**
 * @brief Describes a texture at creation time.
 */
type TextureDesc struct {
	Dimension TextureDimension
	Format    Format
	Width     uint32
	Height    uint32
	/** @brief Depth for 3D textures; six faces are implied for cubes. */
	Depth     uint32
	MipLevels uint32
	Usage     Usage
	Access    Access
	Bind      BindFlags
	Name      string
}

func (d *TextureDesc) Layers() uint32 {
	switch d.Dimension {
	case TextureCube:
		return 6
	case Texture3D:
		if d.Depth == 0 {
			return 1
		}
		return d.Depth
	}
	return 1
}

/**
 * @brief Texel data for one mip of one layer.
 */
type TextureData struct {
	Mip    uint32
	Layer  uint32
	Pixels []byte
}

type Texture struct {
	ID   core.ID
	Desc TextureDesc
}

func (t *Texture) Handle() core.ID {
	if t == nil {
		return core.InvalidID
	}
	return t.ID
}

type QueryKind uint8

const (
	QueryOcclusion QueryKind = iota
	QueryTimestamp
)

type Query struct {
	ID   core.ID
	Kind QueryKind
}
