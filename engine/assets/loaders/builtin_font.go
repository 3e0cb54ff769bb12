package loaders

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

const (
	builtinFirst   = ' '
	builtinLast    = '~'
	builtinColumns = 16
	builtinCellW   = 8
	builtinCellH   = 14
)

// BuiltinFont rasterizes the printable ASCII range of basicfont.Face7x13
// into a white atlas with coverage in alpha. It needs no files, so text
// works before any font asset exists.
func BuiltinFont() (*metadata.FontData, *metadata.ImageData) {
	face := basicfont.Face7x13
	count := int(builtinLast-builtinFirst) + 1
	rows := (count + builtinColumns - 1) / builtinColumns
	atlas := image.NewNRGBA(image.Rect(0, 0, builtinColumns*builtinCellW, rows*builtinCellH))

	out := &metadata.FontData{
		Face:        "basicfont 7x13",
		Size:        uint32(face.Height),
		LineHeight:  int32(face.Height),
		Baseline:    int32(face.Ascent),
		AtlasSizeX:  int32(atlas.Rect.Dx()),
		AtlasSizeY:  int32(atlas.Rect.Dy()),
		Glyphs:      make(map[int32]*metadata.FontGlyph, count),
		Kernings:    map[[2]int32]int16{},
		Pages:       []*metadata.BitmapFontPage{{ID: 0, Name: "builtin"}},
		TabXAdvance: float32(face.Advance) * 4,
	}

	drawer := &font.Drawer{Dst: atlas, Src: image.White, Face: face}
	for i := 0; i < count; i++ {
		r := rune(builtinFirst + i)
		x, y := (i%builtinColumns)*builtinCellW, (i/builtinColumns)*builtinCellH
		drawer.Dot = fixed.P(x, y+face.Ascent)
		drawer.DrawString(string(r))
		out.Glyphs[int32(r)] = &metadata.FontGlyph{
			Codepoint: int32(r),
			X:         uint16(x),
			Y:         uint16(y),
			Width:     uint16(face.Width),
			Height:    uint16(face.Height),
			XAdvance:  int16(face.Advance),
		}
	}

	return out, &metadata.ImageData{
		Width:  uint32(atlas.Rect.Dx()),
		Height: uint32(atlas.Rect.Dy()),
		Format: metadata.FormatRGBA8Unorm,
		Pixels: atlas.Pix,
	}
}
