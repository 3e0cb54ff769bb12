package loaders

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-gpu/engine/config"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

var ErrIncludeCycle = errors.New("include cycle")

/**
 * @brief A .shadercfg file. Each stage names one source per shading language;
 * the loader keeps the one matching the active backend.
 */
type ShaderConfig struct {
	Name   string                       `toml:"name"`
	Stages map[string]ShaderStageConfig `toml:"stages"`
}

type ShaderStageConfig struct {
	GLSL  string `toml:"glsl"`
	WGSL  string `toml:"wgsl"`
	Entry string `toml:"entry"`
}

func ParseShaderConfig(data []byte) (*ShaderConfig, error) {
	cfg := &ShaderConfig{}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	for name := range cfg.Stages {
		if _, ok := stageByName(name); !ok {
			return nil, fmt.Errorf("unknown shader stage %q", name)
		}
	}
	return cfg, nil
}

func stageByName(name string) (metadata.ShaderStage, bool) {
	for s := metadata.StageVertex; s < metadata.ShaderStageCount; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// ShaderLoader turns a .shadercfg into a preprocessed metadata.ShaderDesc.
type ShaderLoader struct {
	FS      fs.FS
	Backend string
}

func (sl *ShaderLoader) Load(name string, params any) (*Resource, error) {
	data, err := fs.ReadFile(sl.FS, name)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseShaderConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	desc := metadata.ShaderDesc{Name: cfg.Name}
	if desc.Name == "" {
		desc.Name = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}

	deps := []string{name}
	size := uint64(len(data))
	found := false
	for s := metadata.StageVertex; s < metadata.ShaderStageCount; s++ {
		stage, ok := cfg.Stages[s.String()]
		if !ok {
			continue
		}
		file := stage.GLSL
		if sl.Backend == config.BackendVulkan {
			file = stage.WGSL
		}
		if file == "" {
			continue
		}
		src, files, err := Preprocess(sl.FS, path.Join(path.Dir(name), file))
		if err != nil {
			return nil, fmt.Errorf("shader %s stage %s: %w", desc.Name, s, err)
		}
		desc.Stages[s] = metadata.ShaderStageSource{Source: src, EntryPoint: stage.Entry}
		deps = append(deps, files...)
		size += uint64(len(src))
		found = true
	}
	if !found {
		return nil, fmt.Errorf("shader %s has no %s stage sources", desc.Name, sl.Backend)
	}

	return &Resource{
		Name:         desc.Name,
		FullPath:     name,
		DataSize:     size,
		Data:         &desc,
		Dependencies: deps,
	}, nil
}

func (sl *ShaderLoader) Unload(resource *Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

var includePattern = regexp.MustCompile(`(?m)^[ \t]*#include[ \t]+"([^"]+)"[ \t]*$`)

// Preprocess expands #include "file" directives textually. Paths are relative
// to the including file. It returns the expanded source and every file read.
func Preprocess(fsys fs.FS, name string) (string, []string, error) {
	p := &preprocessor{fsys: fsys, seen: make(map[string]struct{})}
	var out strings.Builder
	if err := p.expand(&out, path.Clean(name), nil); err != nil {
		return "", nil, err
	}
	return out.String(), p.files, nil
}

type preprocessor struct {
	fsys  fs.FS
	files []string
	seen  map[string]struct{}
}

func (p *preprocessor) expand(out *strings.Builder, name string, stack []string) error {
	for _, open := range stack {
		if open == name {
			return fmt.Errorf("%w: %s", ErrIncludeCycle, strings.Join(append(stack, name), " -> "))
		}
	}
	data, err := fs.ReadFile(p.fsys, name)
	if err != nil {
		return err
	}
	if _, ok := p.seen[name]; !ok {
		p.seen[name] = struct{}{}
		p.files = append(p.files, name)
	}

	stack = append(stack, name)
	src := string(data)
	last := 0
	for _, m := range includePattern.FindAllStringSubmatchIndex(src, -1) {
		out.WriteString(src[last:m[0]])
		target := path.Join(path.Dir(name), src[m[2]:m[3]])
		if err := p.expand(out, target, stack); err != nil {
			return err
		}
		last = m[1]
	}
	out.WriteString(src[last:])
	return nil
}
