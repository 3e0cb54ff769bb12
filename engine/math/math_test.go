package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPow2(t *testing.T) {
	assert.Equal(t, 1, NextPow2(0))
	assert.Equal(t, 1, NextPow2(1))
	assert.Equal(t, 8, NextPow2(5))
	assert.Equal(t, uint32(1024), NextPow2(uint32(1024)))
	assert.Equal(t, uint32(2048), NextPow2(uint32(1025)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(7, 0, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
	assert.Equal(t, -1, Clamp(-4, -1, 1))
}

func TestMat4(t *testing.T) {
	p := NewVec3(1, 2, 3)
	assert.Equal(t, p, p.Transform(NewMat4Identity()))

	moved := p.Transform(NewMat4Translation(NewVec3(10, 0, 0)))
	assert.True(t, moved.Compare(NewVec3(11, 2, 3), K_FLOAT_EPSILON))

	// scale then translate
	m := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(1, 0, 0)))
	assert.True(t, p.Transform(m).Compare(NewVec3(3, 4, 6), K_FLOAT_EPSILON))

	ortho := NewMat4Orthographic(0, 100, 100, 0, -1, 1)
	corner := NewVec3(100, 100, 0).Transform(ortho)
	assert.True(t, corner.Compare(NewVec3(1, -1, 0), 1e-5))
	origin := NewVec3(0, 0, 0).Transform(ortho)
	assert.True(t, origin.Compare(NewVec3(-1, 1, 0), 1e-5))
}
