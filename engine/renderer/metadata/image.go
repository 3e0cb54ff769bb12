package metadata

/**
 * @brief Decoded image pixels, tightly packed rows.
 */
type ImageData struct {
	Width  uint32
	Height uint32
	/** @brief Always FormatRGBA8Unorm for decoded images. */
	Format Format
	Pixels []uint8
}

/** @brief Parameters used when loading an image. */
type ImageParams struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
	/** @brief Build the full mip chain down to 1x1. */
	GenerateMips bool
}
