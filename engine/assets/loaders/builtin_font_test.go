package loaders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinFont(t *testing.T) {
	font, atlas := BuiltinFont()

	assert.Len(t, font.Glyphs, 95)
	assert.Equal(t, int32(13), font.LineHeight)
	assert.Equal(t, uint32(font.AtlasSizeX), atlas.Width)
	assert.Equal(t, uint32(font.AtlasSizeY), atlas.Height)
	require.Len(t, atlas.Pixels, int(atlas.Width*atlas.Height*4))

	a := font.Glyphs['A']
	require.NotNil(t, a)
	assert.Equal(t, int16(7), a.XAdvance)

	coverage := func(g int32) int {
		glyph := font.Glyphs[g]
		sum := 0
		for y := int(glyph.Y); y < int(glyph.Y+glyph.Height); y++ {
			for x := int(glyph.X); x < int(glyph.X+glyph.Width); x++ {
				sum += int(atlas.Pixels[(y*int(atlas.Width)+x)*4+3])
			}
		}
		return sum
	}
	assert.Positive(t, coverage('A'))
	assert.Zero(t, coverage(' '))
}
