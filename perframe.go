package gx

import (
	"encoding/binary"
	"math"

	"github.com/xlab/linmath"
)

// PerFrameData is the block shaders read from the global uniform buffer.
// It is laid out with std140 rules: vec3 members take a full vec4.
type PerFrameData struct {
	View           linmath.Mat4x4
	Projection     linmath.Mat4x4
	CameraPosition linmath.Vec3
	// AmbientLight holds the ambient color in xyz and its intensity in w.
	AmbientLight linmath.Vec4
	Time         float32
	DeltaTime    float32
	Resolution   [2]float32
}

const PerFrameDataSize = 64 + 64 + 16 + 16 + 16

// PerObjectData is pushed as push constants for every draw.
type PerObjectData struct {
	Model               linmath.Mat4x4
	VertexBufferAddress uint64
	ID                  uint32
}

const PerObjectDataSize = 64 + 8 + 4 + 4

// byteWriter appends little endian values, which is what every GPU the
// native layer targets reads.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) f32(vs ...float32) {
	for _, v := range vs {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
	}
}

func (w *byteWriter) mat4(m *linmath.Mat4x4) {
	for i := range m {
		w.f32(m[i][:]...)
	}
}

func (w *byteWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// Bytes returns the std140 image of the block.
func (d *PerFrameData) Bytes() []byte {
	w := byteWriter{buf: make([]byte, 0, PerFrameDataSize)}
	w.mat4(&d.View)
	w.mat4(&d.Projection)
	w.f32(d.CameraPosition[:]...)
	w.f32(0)
	w.f32(d.AmbientLight[:]...)
	w.f32(d.Time, d.DeltaTime)
	w.f32(d.Resolution[:]...)
	return w.buf
}

func (d *PerObjectData) Bytes() []byte {
	w := byteWriter{buf: make([]byte, 0, PerObjectDataSize)}
	w.mat4(&d.Model)
	w.u64(d.VertexBufferAddress)
	w.u32(d.ID)
	w.u32(0)
	return w.buf
}

// NewPerFrameData returns data with identity view and projection matrices
// and a white ambient light.
func NewPerFrameData() PerFrameData {
	var d PerFrameData
	d.View.Identity()
	d.Projection.Identity()
	d.AmbientLight = linmath.Vec4{1, 1, 1, 0.1}
	return d
}

// UpdatePerFrame writes d into the global uniform buffer through the
// staging device.
func (g *GX) UpdatePerFrame(d PerFrameData) {
	g.Upload(g.globalBuffer, d.Bytes(), 0)
}

// GlobalBuffer is the uniform buffer bound at the global set.
func (g *GX) GlobalBuffer() BufferHandle { return g.globalBuffer }
