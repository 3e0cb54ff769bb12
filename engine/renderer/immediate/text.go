package immediate

import (
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

// Quad emits four corners of an axis-aligned rectangle for a QuadList batch.
func (r *Renderer) Quad(rect math.Rect, uv math.Vec4, color math.Vec4) {
	x0, y0 := rect.X, rect.Y
	x1, y1 := rect.X+rect.Width, rect.Y+rect.Height
	corners := [4]Vertex{
		{Position: math.NewVec3(x0, y0, 0), TexCoord: math.NewVec2(uv.X, uv.Y), Color: color},
		{Position: math.NewVec3(x1, y0, 0), TexCoord: math.NewVec2(uv.Z, uv.Y), Color: color},
		{Position: math.NewVec3(x1, y1, 0), TexCoord: math.NewVec2(uv.Z, uv.W), Color: color},
		{Position: math.NewVec3(x0, y1, 0), TexCoord: math.NewVec2(uv.X, uv.W), Color: color},
	}
	r.vertices = append(r.vertices, corners[:]...)
}

// DrawText lays out text with a bitmap font and draws it as one batch.
// (x, y) is the top-left corner of the first line.
func (r *Renderer) DrawText(font *metadata.FontData, text string, x, y, scale float32, color math.Vec4, transform math.Mat4) error {
	if err := r.Begin(metadata.TopologyQuadList); err != nil {
		return err
	}
	r.SetTransform(transform)
	r.SetTexture(font.Atlas)
	layoutText(font, text, x, y, scale, func(rect math.Rect, uv math.Vec4) {
		r.Quad(rect, uv, color)
	})
	return r.End()
}

// MeasureText returns the extent of text without drawing it.
func MeasureText(font *metadata.FontData, text string, scale float32) (width, height float32) {
	lines := float32(1)
	lineWidth := float32(0)
	prev := int32(-1)
	for _, c := range text {
		cp := int32(c)
		switch c {
		case '\n':
			width = max(width, lineWidth)
			lineWidth = 0
			lines++
			prev = -1
			continue
		case '\t':
			lineWidth += font.TabXAdvance * scale
			prev = -1
			continue
		}
		g := glyph(font, cp)
		if g == nil {
			continue
		}
		if prev >= 0 {
			lineWidth += float32(font.Kerning(prev, cp)) * scale
		}
		lineWidth += float32(g.XAdvance) * scale
		prev = cp
	}
	return max(width, lineWidth), lines * float32(font.LineHeight) * scale
}

func layoutText(font *metadata.FontData, text string, x, y, scale float32, emit func(rect math.Rect, uv math.Vec4)) {
	penX, penY := x, y
	prev := int32(-1)
	atlasW, atlasH := float32(font.AtlasSizeX), float32(font.AtlasSizeY)
	for _, c := range text {
		cp := int32(c)
		switch c {
		case '\n':
			penX = x
			penY += float32(font.LineHeight) * scale
			prev = -1
			continue
		case '\t':
			penX += font.TabXAdvance * scale
			prev = -1
			continue
		}
		g := glyph(font, cp)
		if g == nil {
			continue
		}
		if prev >= 0 {
			penX += float32(font.Kerning(prev, cp)) * scale
		}
		if g.Width > 0 && g.Height > 0 {
			rect := math.Rect{
				X:      penX + float32(g.XOffset)*scale,
				Y:      penY + float32(g.YOffset)*scale,
				Width:  float32(g.Width) * scale,
				Height: float32(g.Height) * scale,
			}
			uv := math.NewVec4(
				float32(g.X)/atlasW,
				float32(g.Y)/atlasH,
				float32(g.X+g.Width)/atlasW,
				float32(g.Y+g.Height)/atlasH,
			)
			emit(rect, uv)
		}
		penX += float32(g.XAdvance) * scale
		prev = cp
	}
}

// glyph falls back to '?' for codepoints the font lacks.
func glyph(font *metadata.FontData, cp int32) *metadata.FontGlyph {
	if g, ok := font.Glyphs[cp]; ok {
		return g
	}
	return font.Glyphs['?']
}
