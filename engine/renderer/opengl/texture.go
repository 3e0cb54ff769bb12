package opengl

import (
	"fmt"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/opengl/glapi"
)

type pixelFormat struct {
	internal int32
	format   glapi.Enum
	xtype    glapi.Enum
}

var pixelFormats = map[metadata.Format]pixelFormat{
	metadata.FormatR8Unorm:        {int32(glapi.R8), glapi.RED, glapi.UNSIGNED_BYTE},
	metadata.FormatRG8Unorm:       {int32(glapi.RG8), glapi.RG, glapi.UNSIGNED_BYTE},
	metadata.FormatRGBA8Unorm:     {int32(glapi.RGBA8), glapi.RGBA, glapi.UNSIGNED_BYTE},
	metadata.FormatBGRA8Unorm:     {int32(glapi.RGBA8), glapi.BGRA, glapi.UNSIGNED_BYTE},
	metadata.FormatRGBA16Float:    {int32(glapi.RGBA16F), glapi.RGBA, glapi.HALF_FLOAT},
	metadata.FormatRGBA32Float:    {int32(glapi.RGBA32F), glapi.RGBA, glapi.FLOAT},
	metadata.FormatR32Float:       {int32(glapi.R32F), glapi.RED, glapi.FLOAT},
	metadata.FormatRG32Float:      {int32(glapi.RG32F), glapi.RG, glapi.FLOAT},
	metadata.FormatRGB32Float:     {int32(glapi.RGB32F), glapi.RGB, glapi.FLOAT},
	metadata.FormatD16Unorm:       {int32(glapi.DEPTH_COMPONENT16), glapi.DEPTH_COMPONENT, glapi.UNSIGNED_SHORT},
	metadata.FormatD24UnormS8Uint: {int32(glapi.DEPTH24_STENCIL8), glapi.DEPTH_STENCIL, glapi.UNSIGNED_INT_24_8},
	metadata.FormatD32Float:       {int32(glapi.DEPTH_COMPONENT32F), glapi.DEPTH_COMPONENT, glapi.FLOAT},
	metadata.FormatD32FloatS8Uint: {int32(glapi.DEPTH32F_STENCIL8), glapi.DEPTH_STENCIL, glapi.FLOAT_32_UNSIGNED_INT_24_8_REV},
	metadata.FormatR16Uint:        {int32(glapi.R16UI), glapi.RED_INTEGER, glapi.UNSIGNED_SHORT},
	metadata.FormatR32Uint:        {int32(glapi.R32UI), glapi.RED_INTEGER, glapi.UNSIGNED_INT},
}

type glTexture struct {
	name   uint32
	target glapi.Enum
	desc   metadata.TextureDesc
	pf     pixelFormat
}

func textureTarget(dim metadata.TextureDimension) glapi.Enum {
	switch dim {
	case metadata.Texture3D:
		return glapi.TEXTURE_3D
	case metadata.TextureCube:
		return glapi.TEXTURE_CUBE_MAP
	}
	return glapi.TEXTURE_2D
}

func mipExtent(size, mip uint32) uint32 {
	return max(size>>mip, 1)
}

func (d *Device) CreateTexture(desc metadata.TextureDesc, data []metadata.TextureData) (*metadata.Texture, error) {
	pf, ok := pixelFormats[desc.Format]
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

	type level struct{ mip, layer uint32 }
	pixels := make(map[level][]byte, len(data))
	for _, td := range data {
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
		pixels[level{td.Mip, td.Layer}] = td.Pixels
	}

	t := &glTexture{name: d.gl.GenTexture(), target: textureTarget(desc.Dimension), desc: desc, pf: pf}
	d.withTexture(t.target, t.name, func() {
		d.gl.TexParameteri(t.target, glapi.TEXTURE_BASE_LEVEL, 0)
		d.gl.TexParameteri(t.target, glapi.TEXTURE_MAX_LEVEL, int32(desc.MipLevels-1))
		for mip := uint32(0); mip < desc.MipLevels; mip++ {
			w, h := int32(mipExtent(desc.Width, mip)), int32(mipExtent(desc.Height, mip))
			switch desc.Dimension {
			case metadata.TextureCube:
				for face := uint32(0); face < 6; face++ {
					d.gl.TexImage2D(glapi.TEXTURE_CUBE_MAP_POSITIVE_X+face, int32(mip), pf.internal, w, h,
						pf.format, pf.xtype, pixels[level{mip, face}])
				}
			case metadata.Texture3D:
				depth := int32(mipExtent(desc.Layers(), mip))
				d.gl.TexImage3D(t.target, int32(mip), pf.internal, w, h, depth, pf.format, pf.xtype, pixels[level{mip, 0}])
			default:
				d.gl.TexImage2D(t.target, int32(mip), pf.internal, w, h, pf.format, pf.xtype, pixels[level{mip, 0}])
			}
		}
		filter := glapi.LINEAR
		if desc.Format.IsDepth() || pf.format == glapi.RED_INTEGER {
			filter = glapi.NEAREST
		}
		minFilter := filter
		if desc.MipLevels > 1 {
			minFilter = glapi.LINEAR_MIPMAP_LINEAR
		}
		d.gl.TexParameteri(t.target, glapi.TEXTURE_MIN_FILTER, int32(minFilter))
		d.gl.TexParameteri(t.target, glapi.TEXTURE_MAG_FILTER, int32(filter))
		d.gl.TexParameteri(t.target, glapi.TEXTURE_WRAP_S, int32(glapi.CLAMP_TO_EDGE))
		d.gl.TexParameteri(t.target, glapi.TEXTURE_WRAP_T, int32(glapi.CLAMP_TO_EDGE))
		d.gl.TexParameteri(t.target, glapi.TEXTURE_WRAP_R, int32(glapi.CLAMP_TO_EDGE))

		_, hasMip1 := pixels[level{1, 0}]
		if desc.MipLevels > 1 && !hasMip1 && !desc.Format.IsDepth() {
			d.gl.GenerateMipmap(t.target)
		}
	})

	id := d.textures.Insert(t)
	return &metadata.Texture{ID: id, Desc: desc}, nil
}

func (d *Device) UpdateTexture(texture *metadata.Texture, mip, x, y, width, height uint32, pixels []byte) error {
	t, ok := d.textures.Get(texture.Handle())
	if !ok {
		return fmt.Errorf("%w: texture %s", core.ErrInvalidHandle, texture.Handle())
	}
	if t.target != glapi.TEXTURE_2D {
		return fmt.Errorf("%w: partial updates of texture %q", core.ErrUnsupported, t.desc.Name)
	}
	if mip >= t.desc.MipLevels || x+width > mipExtent(t.desc.Width, mip) || y+height > mipExtent(t.desc.Height, mip) {
		return fmt.Errorf("update region %dx%d at %d,%d is outside mip %d of texture %q",
			width, height, x, y, mip, t.desc.Name)
	}
	if want := int(width * height * uint32(t.desc.Format.BytesPerPixel())); len(pixels) < want {
		return fmt.Errorf("update of texture %q has %d bytes, needs %d", t.desc.Name, len(pixels), want)
	}
	d.withTexture(t.target, t.name, func() {
		d.gl.TexSubImage2D(t.target, int32(mip), int32(x), int32(y), int32(width), int32(height), t.pf.format, t.pf.xtype, pixels)
	})
	return nil
}

func (d *Device) DestroyTexture(texture *metadata.Texture) {
	t, ok := d.textures.Remove(texture.Handle())
	if !ok {
		core.LogWarn("DestroyTexture called with an invalid texture %s", texture.Handle())
		return
	}
	for i := range d.units {
		if d.units[i].name == t.name && d.units[i].target == t.target {
			d.units[i].name = 0
		}
	}
	d.reg.ForgetTexture(texture.ID)
	d.gl.DeleteTexture(t.name)
}
