package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

// LoadImage decodes any registered format into tightly packed, non
// premultiplied RGBA8.
func LoadImage(r io.Reader, params metadata.ImageParams) (*metadata.ImageData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img := toNRGBA(src)
	if params.FlipY {
		flipRows(img)
	}
	return &metadata.ImageData{
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
		Format: metadata.FormatRGBA8Unorm,
		Pixels: img.Pix,
	}, nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if img, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && img.Stride == 4*b.Dx() {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

func flipRows(img *image.NRGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}

// MipLevels returns the length of the full chain down to 1x1.
func MipLevels(width, height uint32) uint32 {
	levels := uint32(1)
	for size := max(width, height); size > 1; size >>= 1 {
		levels++
	}
	return levels
}

// MipChain returns every level of img, the base level first. Each level is
// scaled bilinearly from the one above it.
func MipChain(img *metadata.ImageData) []metadata.TextureData {
	levels := MipLevels(img.Width, img.Height)
	chain := make([]metadata.TextureData, 0, levels)
	chain = append(chain, metadata.TextureData{Mip: 0, Pixels: img.Pixels})

	prev := &image.NRGBA{
		Pix:    img.Pixels,
		Stride: 4 * int(img.Width),
		Rect:   image.Rect(0, 0, int(img.Width), int(img.Height)),
	}
	for mip := uint32(1); mip < levels; mip++ {
		w, h := max(prev.Rect.Dx()/2, 1), max(prev.Rect.Dy()/2, 1)
		next := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(next, next.Rect, prev, prev.Rect, draw.Src, nil)
		chain = append(chain, metadata.TextureData{Mip: mip, Pixels: next.Pix})
		prev = next
	}
	return chain
}
