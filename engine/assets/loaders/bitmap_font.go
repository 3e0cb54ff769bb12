package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

/**
 * @brief A font descriptor plus its decoded atlas pages, in page ID order.
 */
type BitmapFontResource struct {
	Font  *metadata.FontData
	Pages []*metadata.ImageData
}

// BitmapFontLoader reads AngelCode .fnt files. bmfont works on OS paths, so
// the loader takes a directory rather than an fs.FS.
type BitmapFontLoader struct {
	ResourcePath string
}

func (fl *BitmapFontLoader) Load(name string, params any) (*Resource, error) {
	fullPath := filepath.Join(fl.ResourcePath, name)
	font, err := LoadBitmapFont(fullPath)
	if err != nil {
		return nil, err
	}

	out := &BitmapFontResource{Font: font}
	deps := []string{name}
	size := uint64(0)
	for _, page := range font.Pages {
		file := filepath.Join(filepath.Dir(name), page.Name)
		img, err := loadImageFile(filepath.Join(fl.ResourcePath, file))
		if err != nil {
			return nil, fmt.Errorf("font %s page %d: %w", font.Face, page.ID, err)
		}
		out.Pages = append(out.Pages, img)
		deps = append(deps, file)
		size += uint64(len(img.Pixels))
	}

	return &Resource{
		Name:         font.Face,
		FullPath:     fullPath,
		DataSize:     size,
		Data:         out,
		Dependencies: deps,
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *Resource) error {
	if data, ok := resource.Data.(*BitmapFontResource); ok {
		data.Font.Glyphs = nil
		data.Font.Kernings = nil
		data.Pages = nil
	}
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

func loadImageFile(path string) (*metadata.ImageData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return LoadImage(file, metadata.ImageParams{})
}

// LoadBitmapFont parses the descriptor only. Page images are left to the caller.
func LoadBitmapFont(path string) (*metadata.FontData, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, err
	}
	desc := font.Descriptor
	// a negative size asks for a match on cell height instead of char height
	size := desc.Info.Size
	if size < 0 {
		size = -size
	}

	out := &metadata.FontData{
		Face:       desc.Info.Face,
		Size:       uint32(size),
		LineHeight: int32(desc.Common.LineHeight),
		Baseline:   int32(desc.Common.Base),
		AtlasSizeX: int32(desc.Common.ScaleW),
		AtlasSizeY: int32(desc.Common.ScaleH),
		Glyphs:     make(map[int32]*metadata.FontGlyph, len(desc.Chars)),
		Kernings:   make(map[[2]int32]int16, len(desc.Kerning)),
		Pages:      make([]*metadata.BitmapFontPage, 0, len(desc.Pages)),
	}

	for _, p := range desc.Pages {
		out.Pages = append(out.Pages, &metadata.BitmapFontPage{ID: int8(p.ID), Name: p.File})
	}
	sort.Slice(out.Pages, func(i, j int) bool { return out.Pages[i].ID < out.Pages[j].ID })

	for _, g := range desc.Chars {
		out.Glyphs[int32(g.ID)] = &metadata.FontGlyph{
			Codepoint: int32(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		}
	}

	for pair, k := range desc.Kerning {
		out.Kernings[[2]int32{int32(pair.First), int32(pair.Second)}] = int16(k.Amount)
	}

	// Tabs are four spaces wide, or four ems when the font has no space glyph.
	if space, ok := out.Glyphs[' ']; ok {
		out.TabXAdvance = float32(space.XAdvance) * 4
	} else {
		out.TabXAdvance = float32(out.Size) * 4
	}
	return out, nil
}
