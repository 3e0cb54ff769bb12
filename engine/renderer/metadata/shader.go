package metadata

import (
	"regexp"
	"sync"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

/**
 * @brief A programmable pipeline stage. The order is fixed and is the order in
 * which stage identities are mixed into a program key.
 */
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StagePixel
	StageGeometry
	StageHull
	StageDomain
	StageCompute

	ShaderStageCount = 6
)

var stageNames = [ShaderStageCount]string{"vertex", "pixel", "geometry", "hull", "domain", "compute"}

func (s ShaderStage) String() string {
	if int(s) < ShaderStageCount {
		return stageNames[s]
	}
	return "invalid"
}

func (s ShaderStage) Mask() StageMask {
	return 1 << s
}

/** @brief Set of stages. Bitwise-combinable. */
type StageMask uint8

const (
	MaskVertex   StageMask = 1 << StageVertex
	MaskPixel    StageMask = 1 << StagePixel
	MaskGeometry StageMask = 1 << StageGeometry
	MaskHull     StageMask = 1 << StageHull
	MaskDomain   StageMask = 1 << StageDomain
	MaskCompute  StageMask = 1 << StageCompute

	MaskGraphics = MaskVertex | MaskPixel | MaskGeometry | MaskHull | MaskDomain
	MaskAll      = MaskGraphics | MaskCompute
)

func (m StageMask) Has(stage ShaderStage) bool {
	return m&stage.Mask() != 0
}

/**
 * @brief Decides whether a preprocessed source implements the named entry point.
 */
type EntryPointDetector func(source, entry string) bool

/**
 * @brief Already preprocessed source of one stage.
 */
type ShaderStageSource struct {
	Source string
	/** @brief Defaults to "main" when empty. */
	EntryPoint string
	/** @brief Defaults to DetectEntryPoint when nil. */
	Detect EntryPointDetector
}

func (s *ShaderStageSource) Entry() string {
	if s.EntryPoint == "" {
		return "main"
	}
	return s.EntryPoint
}

// Present reports whether the stage carries a source implementing its entry point.
func (s *ShaderStageSource) Present() bool {
	if s.Source == "" {
		return false
	}
	detect := s.Detect
	if detect == nil {
		detect = DetectEntryPoint
	}
	return detect(s.Source, s.Entry())
}

type ShaderDesc struct {
	Name   string
	Stages [ShaderStageCount]ShaderStageSource
}

// Stage returns the description with a single stage filled in.
func (d ShaderDesc) Stage(stage ShaderStage, src ShaderStageSource) ShaderDesc {
	d.Stages[stage] = src
	return d
}

/**
 * @brief A compiled shader. Mask names the stages that compiled successfully.
 */
type Shader struct {
	ID   core.ID
	Name string
	Mask StageMask
}

func (s *Shader) Handle() core.ID {
	if s == nil {
		return core.InvalidID
	}
	return s.ID
}

// Implements reports whether the shader carries a compiled object for stage.
func (s *Shader) Implements(stage ShaderStage) bool {
	return s != nil && s.Mask.Has(stage)
}

var (
	entryMu       sync.Mutex
	entryPatterns = map[string]*regexp.Regexp{}
)

// DetectEntryPoint reports whether source declares a function called entry.
func DetectEntryPoint(source, entry string) bool {
	entryMu.Lock()
	re, ok := entryPatterns[entry]
	if !ok {
		re = regexp.MustCompile(`\b` + regexp.QuoteMeta(entry) + `\s*\(`)
		entryPatterns[entry] = re
	}
	entryMu.Unlock()
	return re.MatchString(source)
}
