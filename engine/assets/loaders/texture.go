package loaders

import (
	"fmt"
	"io/fs"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief A decoded texture ready for Device.CreateTexture.
 */
type TextureResource struct {
	Desc metadata.TextureDesc
	Data []metadata.TextureData
}

type TextureLoader struct {
	FS fs.FS
}

// Load decodes an image file. params may be a *metadata.ImageParams or nil.
func (tl *TextureLoader) Load(name string, params any) (*Resource, error) {
	var p metadata.ImageParams
	if params != nil {
		ip, ok := params.(*metadata.ImageParams)
		if !ok {
			return nil, fmt.Errorf("texture loader expects *metadata.ImageParams, got %T", params)
		}
		p = *ip
	}

	file, err := tl.FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := LoadImage(file, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tex := &TextureResource{
		Desc: metadata.TextureDesc{
			Dimension: metadata.Texture2D,
			Format:    img.Format,
			Width:     img.Width,
			Height:    img.Height,
			MipLevels: 1,
			Usage:     metadata.UsageDefault,
			Bind:      metadata.BindShaderInput,
			Name:      name,
		},
		Data: []metadata.TextureData{{Pixels: img.Pixels}},
	}
	if p.GenerateMips {
		tex.Data = MipChain(img)
		tex.Desc.MipLevels = uint32(len(tex.Data))
	}

	size := uint64(0)
	for _, d := range tex.Data {
		size += uint64(len(d.Pixels))
	}
	return &Resource{
		Name:         name,
		FullPath:     name,
		DataSize:     size,
		Data:         tex,
		Dependencies: []string{name},
	}, nil
}

func (tl *TextureLoader) Unload(resource *Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}
