package immediate

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/anima-gpu/engine/core"
	"github.com/spaghettifunk/anima-gpu/engine/math"
	"github.com/spaghettifunk/anima-gpu/engine/renderer/metadata"
)

var (
	ErrNoVertex = errors.New("immediate: no vertex emitted")
	ErrNotBegun = errors.New("immediate: Begin was not called")
)

/**
 * @brief One vertex of the immediate stream. The layout is fixed: position at
 * 0, texcoord at 12, colour at 20.
 */
type Vertex struct {
	Position math.Vec3
	TexCoord math.Vec2
	Color    math.Vec4
}

const VertexStride = 36

/**
 * @brief Backend is what a device implements to host the immediate renderer.
 * SaveState and RestoreState must bracket every Bind and Draw so that the
 * caller's bindings survive End.
 */
type Backend interface {
	// Create builds the vertex buffer, program and layout.
	Create(capacity int) error
	// Grow replaces the vertex buffer with one holding capacity vertices.
	Grow(capacity int) error
	Upload(vertices []Vertex) error
	SaveState()
	Bind(transform math.Mat4, texture *metadata.Texture)
	Draw(topology metadata.PrimitiveTopology, count int)
	RestoreState()
}

type Renderer struct {
	backend  Backend
	initial  int
	capacity int
	created  bool
	begun    bool

	topology  metadata.PrimitiveTopology
	vertices  []Vertex
	transform math.Mat4
	texture   *metadata.Texture
}

func New(backend Backend, initialCapacity int) *Renderer {
	if initialCapacity <= 0 {
		initialCapacity = 1024
	}
	return &Renderer{
		backend:   backend,
		initial:   initialCapacity,
		transform: math.NewMat4Identity(),
	}
}

// Begin starts a new batch. The vertex buffer, program and layout are built
// on the first call.
func (r *Renderer) Begin(topology metadata.PrimitiveTopology) error {
	if !r.created {
		if err := r.backend.Create(r.initial); err != nil {
			return fmt.Errorf("failed to create immediate renderer: %w", err)
		}
		r.capacity = r.initial
		r.created = true
	}
	r.begun = true
	r.topology = topology
	r.vertices = r.vertices[:0]
	r.transform = math.NewMat4Identity()
	r.texture = nil
	return nil
}

// Emit appends a white vertex at the origin with texcoord (0,0).
func (r *Renderer) Emit() {
	r.vertices = append(r.vertices, Vertex{Color: math.NewVec4One()})
}

func (r *Renderer) last() (*Vertex, error) {
	if len(r.vertices) == 0 {
		return nil, ErrNoVertex
	}
	return &r.vertices[len(r.vertices)-1], nil
}

func (r *Renderer) Position(x, y, z float32) error {
	v, err := r.last()
	if err != nil {
		return err
	}
	v.Position = math.NewVec3(x, y, z)
	return nil
}

func (r *Renderer) TexCoord(u, v float32) error {
	vert, err := r.last()
	if err != nil {
		return err
	}
	vert.TexCoord = math.NewVec2(u, v)
	return nil
}

func (r *Renderer) Color(red, green, blue, alpha float32) error {
	v, err := r.last()
	if err != nil {
		return err
	}
	v.Color = math.NewVec4(red, green, blue, alpha)
	return nil
}

func (r *Renderer) SetTransform(transform math.Mat4) {
	r.transform = transform
}

func (r *Renderer) SetTexture(texture *metadata.Texture) {
	r.texture = texture
}

// End uploads and draws the batch. A batch without vertices draws nothing.
func (r *Renderer) End() error {
	if !r.begun {
		return ErrNotBegun
	}
	r.begun = false
	if len(r.vertices) == 0 {
		return nil
	}

	topology, vertices := r.topology, r.vertices
	if topology == metadata.TopologyQuadList {
		topology, vertices = metadata.TopologyTriangleList, expandQuads(vertices)
		if len(vertices) == 0 {
			core.LogWarn("immediate: %d vertices do not form a single quad", len(r.vertices))
			return nil
		}
	}

	if len(vertices) > r.capacity {
		capacity := math.NextPow2(len(vertices))
		if err := r.backend.Grow(capacity); err != nil {
			return fmt.Errorf("failed to grow immediate buffer to %d vertices: %w", capacity, err)
		}
		core.LogDebug("immediate buffer grown from %d to %d vertices", r.capacity, capacity)
		r.capacity = capacity
	}
	if err := r.backend.Upload(vertices); err != nil {
		return fmt.Errorf("failed to upload immediate vertices: %w", err)
	}

	r.backend.SaveState()
	defer r.backend.RestoreState()

	r.backend.Bind(r.transform, r.texture)
	r.backend.Draw(topology, len(vertices))
	return nil
}

func (r *Renderer) Capacity() int {
	return r.capacity
}

// Vertices returns the vertices emitted since Begin.
func (r *Renderer) Vertices() []Vertex {
	return r.vertices
}

// AppendVertices encodes vertices in the fixed stream layout, little endian.
func AppendVertices(dst []byte, vertices []Vertex) []byte {
	put := func(f float32) {
		dst = binary.LittleEndian.AppendUint32(dst, gomath.Float32bits(f))
	}
	for _, v := range vertices {
		put(v.Position.X)
		put(v.Position.Y)
		put(v.Position.Z)
		put(v.TexCoord.X)
		put(v.TexCoord.Y)
		put(v.Color.X)
		put(v.Color.Y)
		put(v.Color.Z)
		put(v.Color.W)
	}
	return dst
}

// expandQuads turns every four vertices into two triangles. A trailing
// partial quad is dropped.
func expandQuads(quads []Vertex) []Vertex {
	n := len(quads) / 4
	out := make([]Vertex, 0, n*6)
	for i := 0; i < n; i++ {
		q := quads[i*4 : i*4+4]
		out = append(out, q[0], q[1], q[2], q[0], q[2], q[3])
	}
	return out
}
