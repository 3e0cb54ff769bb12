package engine

type ApplicationConfig struct {
	// The application name used in windowing, if applicable. Overrides the
	// configured title when set.
	Name string
	// TOML configuration file. A missing file runs with the defaults.
	ConfigPath string
	// Root of the shaders, textures and fonts directories.
	AssetsDir string
}
