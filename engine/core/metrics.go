package core

import "github.com/spaghettifunk/anima-gpu/engine/containers"

const AVG_COUNT uint8 = 30

// DeviceStats is a snapshot of a device's counters and frame timing.
type DeviceStats struct {
	FPS       float64
	FrameMS   float64
	Frames    uint64
	DrawCalls uint64
	// StateChanges counts Set* calls that reached the native API.
	StateChanges uint64
	// RedundantSets counts Set* calls elided by the register.
	RedundantSets       uint64
	ProgramLinks        uint64
	LinkFailures        uint64
	BindingsCreated     uint64
	BindingsInvalidated uint64
}

// Metrics is owned by a single device and is not safe for concurrent use.
type Metrics struct {
	msTimes            *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64

	counters DeviceStats
}

func NewMetrics() *Metrics {
	return &Metrics{msTimes: containers.NewRingQueue[float64](int(AVG_COUNT))}
}

func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average over the last AVG_COUNT frames
	frameMS := frameElapsedTime * 1000.0
	m.msTimes.Push(frameMS)
	sum := 0.0
	m.msTimes.Each(func(ms float64) { sum += ms })
	m.msAvg = sum / float64(m.msTimes.Len())

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
	m.totalFrames++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) CountDraw()           { m.counters.DrawCalls++ }
func (m *Metrics) CountStateChange()    { m.counters.StateChanges++ }
func (m *Metrics) CountRedundant()      { m.counters.RedundantSets++ }
func (m *Metrics) CountLink()           { m.counters.ProgramLinks++ }
func (m *Metrics) CountLinkFailure()    { m.counters.LinkFailures++ }
func (m *Metrics) CountBindingCreated() { m.counters.BindingsCreated++ }
func (m *Metrics) CountBindingsInvalidated(n int) {
	m.counters.BindingsInvalidated += uint64(n)
}

func (m *Metrics) Snapshot() DeviceStats {
	s := m.counters
	s.FPS = m.fps
	s.FrameMS = m.msAvg
	s.Frames = m.totalFrames
	return s
}
