package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// twoRows encodes a png whose top row is red and bottom row is blue.
func twoRows(t *testing.T, width int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, 2))
	for x := 0; x < width; x++ {
		img.Set(x, 0, red)
		img.Set(x, 1, blue)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoadImage(t *testing.T) {
	img, err := LoadImage(bytes.NewReader(twoRows(t, 3)), metadata.ImageParams{})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Equal(t, metadata.FormatRGBA8Unorm, img.Format)
	require.Len(t, img.Pixels, 3*2*4)
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[:4])
	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[12:16])
}

func TestLoadImageFlipY(t *testing.T) {
	img, err := LoadImage(bytes.NewReader(twoRows(t, 3)), metadata.ImageParams{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, img.Pixels[:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pixels[12:16])
}

func TestLoadImageKeepsStraightAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := LoadImage(&buf, metadata.ImageParams{})
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 100, 50, 128}, img.Pixels)
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	_, err := LoadImage(strings.NewReader("not an image"), metadata.ImageParams{})
	assert.Error(t, err)
}

func TestMipLevels(t *testing.T) {
	assert.Equal(t, uint32(1), MipLevels(1, 1))
	assert.Equal(t, uint32(3), MipLevels(4, 2))
	assert.Equal(t, uint32(9), MipLevels(256, 3))
	assert.Equal(t, uint32(2), MipLevels(3, 3))
}

func TestMipChain(t *testing.T) {
	const w, h = 8, 4
	pixels := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		pixels = append(pixels, 200, 100, 50, 255)
	}
	chain := MipChain(&metadata.ImageData{Width: w, Height: h, Format: metadata.FormatRGBA8Unorm, Pixels: pixels})

	require.Len(t, chain, 4)
	sizes := []int{8 * 4 * 4, 4 * 2 * 4, 2 * 1 * 4, 1 * 1 * 4}
	for i, level := range chain {
		assert.Equal(t, uint32(i), level.Mip)
		assert.Len(t, level.Pixels, sizes[i])
	}
	// a flat color stays flat at every level
	last := chain[len(chain)-1].Pixels
	assert.InDelta(t, 200, last[0], 1)
	assert.InDelta(t, 100, last[1], 1)
	assert.InDelta(t, 50, last[2], 1)
	assert.InDelta(t, 255, last[3], 1)
}

func TestTextureLoader(t *testing.T) {
	fsys := fstest.MapFS{"textures/stripes.png": {Data: twoRows(t, 4)}}
	loader := &TextureLoader{FS: fsys}

	res, err := loader.Load("textures/stripes.png", nil)
	require.NoError(t, err)
	tex := res.Data.(*TextureResource)
	assert.Equal(t, uint32(4), tex.Desc.Width)
	assert.Equal(t, uint32(1), tex.Desc.MipLevels)
	assert.Equal(t, metadata.BindShaderInput, tex.Desc.Bind)
	assert.Len(t, tex.Data, 1)
	assert.Equal(t, []string{"textures/stripes.png"}, res.Dependencies)

	res, err = loader.Load("textures/stripes.png", &metadata.ImageParams{GenerateMips: true})
	require.NoError(t, err)
	tex = res.Data.(*TextureResource)
	assert.Equal(t, uint32(3), tex.Desc.MipLevels)
	assert.Len(t, tex.Data, 3)

	_, err = loader.Load("textures/stripes.png", "mips please")
	assert.Error(t, err)
	_, err = loader.Load("textures/missing.png", nil)
	assert.Error(t, err)

	require.NoError(t, loader.Unload(res))
	assert.Nil(t, res.Data)
}
