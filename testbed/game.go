package testbed

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/anima-gpu/engine"
	"github.com/spaghettifunk/anima-gpu/engine/assets"
	"github.com/spaghettifunk/anima-gpu/engine/assets/loaders"
	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	engine *engine.Engine

	sprite    *metadata.Shader
	layout    *metadata.InputLayout
	quad      *metadata.Buffer
	indices   *metadata.Buffer
	constants *metadata.Buffer
	texture   *metadata.Texture
	generated bool
	sampler   *metadata.SamplerState
	blend     *metadata.BlendState
	raster    *metadata.RasterizerState
	depth     *metadata.DepthStencilState

	font     *metadata.FontData
	query    *metadata.Query
	querying bool
	samples  uint64

	angle   float32
	paused  bool
	overlay bool
	reloads int
	width   uint32
	height  uint32
}

func NewTestGame(configPath string) *TestGame {
	state := &gameState{overlay: true}
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "Anima GPU testbed",
				ConfigPath: configPath,
				AssetsDir:  "assets",
			},
			State: state,
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// quad corners as position xy, texcoord uv
var quadVertices = []float32{
	-0.5, -0.5, 0, 1,
	0.5, -0.5, 1, 1,
	0.5, 0.5, 1, 0,
	-0.5, 0.5, 0, 0,
}

var quadIndices = []uint16{0, 1, 2, 2, 3, 0}

// constantsSize holds a mat4 transform followed by a vec4 tint.
const constantsSize = 16*4 + 4*4

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	s := g.state()
	s.engine = e
	s.width, s.height = e.GetFramebufferSize()
	device := e.Device()

	var err error
	if s.sprite, err = e.LoadShader("sprite"); err != nil {
		return err
	}

	if s.layout, err = device.CreateInputLayout(metadata.InputLayoutDesc{
		Name: "sprite",
		Elements: []metadata.InputElement{
			{Location: 0, Format: metadata.FormatR32Float, Components: 2},
			{Location: 1, Format: metadata.FormatR32Float, Components: 2, Offset: 8},
		},
	}); err != nil {
		return err
	}

	if s.quad, err = device.CreateBuffer(metadata.BufferDesc{
		Size:   uint64(len(quadVertices) * 4),
		Stride: 16,
		Usage:  metadata.UsageImmutable,
		Bind:   metadata.BindVertexBuffer,
		Name:   "quad vertices",
	}, float32Bytes(quadVertices)); err != nil {
		return err
	}

	indexData := make([]byte, 0, len(quadIndices)*2)
	for _, i := range quadIndices {
		indexData = binary.LittleEndian.AppendUint16(indexData, i)
	}
	if s.indices, err = device.CreateBuffer(metadata.BufferDesc{
		Size:  uint64(len(indexData)),
		Usage: metadata.UsageImmutable,
		Bind:  metadata.BindIndexBuffer,
		Name:  "quad indices",
	}, indexData); err != nil {
		return err
	}

	if s.constants, err = device.CreateBuffer(metadata.BufferDesc{
		Size:   constantsSize,
		Usage:  metadata.UsageDynamic,
		Access: metadata.AccessWrite,
		Bind:   metadata.BindConstantBuffer,
		Name:   "sprite constants",
	}, nil); err != nil {
		return err
	}

	if s.texture, s.generated, err = g.loadTexture(e); err != nil {
		return err
	}

	sampler := metadata.DefaultSamplerDesc()
	sampler.MinFilter = metadata.FilterLinear
	sampler.MagFilter = metadata.FilterNearest
	if s.sampler, err = device.CreateSamplerState(sampler); err != nil {
		return err
	}
	s.blend = device.CreateBlendState(metadata.AlphaBlendDesc())
	raster := metadata.DefaultRasterizerDesc()
	raster.CullMode = metadata.CullNone
	s.raster = device.CreateRasterizerState(raster)
	depth := metadata.DefaultDepthStencilDesc()
	depth.DepthEnable = false
	s.depth = device.CreateDepthStencilState(depth)

	if s.font, err = e.LoadFont(e.Config().Immediate.Font); err != nil {
		core.LogWarn("font %q failed to load, falling back to the built-in font: %s", e.Config().Immediate.Font, err)
		if s.font, err = e.LoadFont(""); err != nil {
			return err
		}
	}

	if s.query, err = device.CreateQuery(metadata.QueryOcclusion); err != nil {
		core.LogWarn("occlusion queries unavailable: %s", err)
	}

	e.Events().Register(core.EVENT_CODE_SHADER_CHANGED, g, func(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
		s.reloads++
		core.LogInfo("testbed picked up shader %s", data.Path)
		return false
	})
	return nil
}

// loadTexture prefers textures/checker.png and generates a checkerboard when
// the file is absent.
func (g *TestGame) loadTexture(e *engine.Engine) (*metadata.Texture, bool, error) {
	tex, err := e.LoadTexture("checker.png", &metadata.ImageParams{FlipY: true, GenerateMips: true})
	if err == nil {
		return tex, false, nil
	}
	if !errors.Is(err, assets.ErrAssetNotFound) {
		return nil, false, err
	}

	img := checkerboard(64, 8)
	chain := loaders.MipChain(img)
	tex, err = e.Device().CreateTexture(metadata.TextureDesc{
		Dimension: metadata.Texture2D,
		Format:    img.Format,
		Width:     img.Width,
		Height:    img.Height,
		MipLevels: uint32(len(chain)),
		Usage:     metadata.UsageImmutable,
		Bind:      metadata.BindShaderInput,
		Name:      "checkerboard",
	}, chain)
	return tex, err == nil, err
}

func checkerboard(size, cell int) *metadata.ImageData {
	pixels := make([]byte, 0, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				pixels = append(pixels, 230, 230, 230, 255)
			} else {
				pixels = append(pixels, 40, 90, 160, 255)
			}
		}
	}
	return &metadata.ImageData{Width: uint32(size), Height: uint32(size), Format: metadata.FormatRGBA8Unorm, Pixels: pixels}
}

// Space pauses the rotation, F1 toggles the stats overlay.
func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	input := s.engine.Input()
	if input.Pressed(core.KEY_SPACE) {
		s.paused = !s.paused
	}
	if input.Pressed(core.KEY_F1) {
		s.overlay = !s.overlay
	}
	if s.paused {
		return nil
	}
	s.angle += float32(deltaTime) * 0.8
	if s.angle > 2*gomath.Pi {
		s.angle -= 2 * gomath.Pi
	}
	return nil
}

func (g *TestGame) Render(device renderer.Device, deltaTime float64) error {
	s := g.state()
	w, h := float32(s.width), float32(s.height)
	screen := math.NewMat4Orthographic(0, w, h, 0, -1, 1)

	device.SetRenderTarget(device.Backbuffer(), &metadata.ClearDesc{
		Flags: metadata.ClearColor | metadata.ClearDepth,
		Color: [4]float32{0.08, 0.08, 0.1, 1},
		Depth: 1,
	})
	device.SetViewport(metadata.FullViewport(s.width, s.height))
	device.SetBlendState(s.blend)
	device.SetRasterizerState(s.raster)
	device.SetDepthStencilState(s.depth, 0)

	size := min(w, h) * 0.5
	transform := math.NewMat4Scale(math.NewVec3(size, size, 1)).
		Mul(math.NewMat4EulerZ(s.angle)).
		Mul(math.NewMat4Translation(math.NewVec3(w*0.5, h*0.5, 0))).
		Mul(screen)
	if err := device.UpdateBuffer(s.constants, 0, spriteConstants(transform, math.NewVec4(1, 0.9, 0.8, 1))); err != nil {
		return err
	}

	device.SetShader(s.sprite, metadata.MaskAll)
	device.SetInputLayout(s.layout)
	device.SetVertexBuffers([]*metadata.Buffer{s.quad}, nil, false)
	device.SetIndexBuffer(s.indices, metadata.FormatR16Uint)
	device.SetTexture(0, s.texture)
	device.SetSampler(0, s.sampler)
	device.SetConstantBuffer(0, s.constants)
	device.SetPrimitiveTopology(metadata.TopologyTriangleList)

	if s.query != nil && !s.querying {
		device.BeginQuery(s.query)
		device.DrawIndexed(uint32(len(quadIndices)), 0, 0)
		device.EndQuery(s.query)
		s.querying = true
	} else {
		device.DrawIndexed(uint32(len(quadIndices)), 0, 0)
	}
	if s.querying {
		if samples, ok := device.QueryResult(s.query); ok {
			s.samples = samples
			s.querying = false
		}
	}

	im := device.Immediate()
	if err := im.Begin(metadata.TopologyQuadList); err != nil {
		return err
	}
	im.SetTransform(screen)
	im.SetTexture(s.texture)
	im.Quad(math.Rect{X: w - 138, Y: 10, Width: 128, Height: 128}, math.NewVec4(0, 0, 1, 1), math.NewVec4One())
	if err := im.End(); err != nil {
		return err
	}

	if !s.overlay {
		return nil
	}
	stats := device.Stats()
	text := fmt.Sprintf("%s\n%.0f fps  %.2f ms\ndraws %d  state changes %d  elided %d\nprograms %d  bindings %d\nsamples %d  reloads %d",
		s.engine.Config().Device.Backend, stats.FPS, stats.FrameMS,
		stats.DrawCalls, stats.StateChanges, stats.RedundantSets,
		stats.ProgramLinks, stats.BindingsCreated, s.samples, s.reloads)
	return im.DrawText(s.font, text, 10, 10, 1, math.NewVec4(1, 1, 0.6, 1), screen)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width, s.height = width, height
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	if s.engine == nil {
		return nil
	}
	device := s.engine.Device()
	s.engine.Events().Unregister(core.EVENT_CODE_SHADER_CHANGED, g)
	if s.query != nil {
		device.DestroyQuery(s.query)
	}
	if s.generated {
		device.DestroyTexture(s.texture)
	}
	device.DestroyBuffer(s.constants)
	device.DestroyBuffer(s.indices)
	device.DestroyBuffer(s.quad)
	device.DestroyInputLayout(s.layout)
	return nil
}

func float32Bytes(values []float32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, gomath.Float32bits(v))
	}
	return out
}

func spriteConstants(transform math.Mat4, tint math.Vec4) []byte {
	out := float32Bytes(transform.Data[:])
	return append(out, float32Bytes([]float32{tint.X, tint.Y, tint.Z, tint.W})...)
}
