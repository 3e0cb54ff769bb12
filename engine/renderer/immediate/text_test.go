package immediate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

func testFont() *metadata.FontData {
	return &metadata.FontData{
		LineHeight:  20,
		AtlasSizeX:  100,
		AtlasSizeY:  100,
		TabXAdvance: 40,
		Glyphs: map[int32]*metadata.FontGlyph{
			'A': {Codepoint: 'A', X: 0, Y: 0, Width: 10, Height: 10, XAdvance: 12},
			'V': {Codepoint: 'V', X: 10, Y: 0, Width: 10, Height: 10, XAdvance: 12, YOffset: 2},
			' ': {Codepoint: ' ', XAdvance: 5},
			'?': {Codepoint: '?', X: 20, Y: 0, Width: 10, Height: 10, XAdvance: 8},
		},
		Kernings: map[[2]int32]int16{{'A', 'V'}: -2},
		Atlas:    &metadata.Texture{ID: 3},
	}
}

func TestMeasureText(t *testing.T) {
	f := testFont()

	w, h := MeasureText(f, "AV", 1)
	assert.Equal(t, float32(22), w)
	assert.Equal(t, float32(20), h)

	w, h = MeasureText(f, "A\nA A", 2)
	assert.Equal(t, float32(58), w)
	assert.Equal(t, float32(80), h)

	// unknown glyphs advance like '?'
	w, _ = MeasureText(f, "é", 1)
	assert.Equal(t, float32(8), w)
}

func TestDrawText(t *testing.T) {
	b := &recordingBackend{}
	r := New(b, 64)
	f := testFont()

	require.NoError(t, r.DrawText(f, "A V", 10, 10, 1, math.NewVec4One(), math.NewMat4Identity()))

	// the space has no quad
	require.Len(t, b.draws, 1)
	assert.Equal(t, 12, b.draws[0].count)
	assert.Same(t, f.Atlas, b.texture)

	// second quad is V, advanced past A and the space, with its y offset
	v := b.uploaded[6]
	assert.Equal(t, math.NewVec3(27, 12, 0), v.Position)
	assert.Equal(t, math.NewVec2(0.1, 0), v.TexCoord)
}
