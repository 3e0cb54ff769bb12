package metadata

type FontGlyph struct {
	Codepoint int32
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

type BitmapFontPage struct {
	ID   int8
	Name string
}

/**
 * @brief A bitmap font laid out on an atlas texture.
 */
type FontData struct {
	Face       string
	Size       uint32
	LineHeight int32
	Baseline   int32
	AtlasSizeX int32
	AtlasSizeY int32
	Glyphs     map[int32]*FontGlyph
	Kernings   map[[2]int32]int16
	Pages      []*BitmapFontPage
	/** @brief Set by the caller once the page image is uploaded. */
	Atlas       *Texture
	TabXAdvance float32
}

// Kerning returns the advance adjustment between two codepoints.
func (f *FontData) Kerning(a, b int32) int16 {
	return f.Kernings[[2]int32{a, b}]
}
