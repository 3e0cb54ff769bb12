package loaders

/**
 * @brief What a loader hands back. Data holds the typed payload of the loader.
 */
type Resource struct {
	Name     string
	FullPath string
	DataSize uint64
	Data     any
	/** @brief Every file that went into Data, FullPath included. */
	Dependencies []string
}
