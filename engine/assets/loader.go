package assets

import "github.com/spaghettifunk/anima-gpu/engine/assets/loaders"

// Loader builds one kind of asset. params is loader specific and may be nil.
type Loader interface {
	Load(path string, params any) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}
