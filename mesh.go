package gx

import (
	"github.com/xlab/linmath"
)

// Vertex is the vertex layout shaders fetch from a storage buffer through
// its device address. The uv coordinates are split to pad the vec3s.
type Vertex struct {
	Position linmath.Vec3
	UVX      float32
	Normal   linmath.Vec3
	UVY      float32
	Color    linmath.Vec4
}

const VertexSize = 48

// MeshBuffers holds the buffers of an uploaded mesh. Indices is empty for a
// mesh drawn without an index buffer.
type MeshBuffers struct {
	Vertices      BufferHandle
	Indices       BufferHandle
	NumVertices   uint32
	NumIndices    uint32
	VertexAddress uint64
}

// Indexed reports whether the mesh was created with indices.
func (m MeshBuffers) Indexed() bool { return m.NumIndices > 0 }

func encodeVertices(vertices []Vertex) []byte {
	w := byteWriter{buf: make([]byte, 0, len(vertices)*VertexSize)}
	for i := range vertices {
		v := &vertices[i]
		w.f32(v.Position[:]...)
		w.f32(v.UVX)
		w.f32(v.Normal[:]...)
		w.f32(v.UVY)
		w.f32(v.Color[:]...)
	}
	return w.buf
}

func encodeIndices(indices []uint32) []byte {
	w := byteWriter{buf: make([]byte, 0, len(indices)*4)}
	for _, i := range indices {
		w.u32(i)
	}
	return w.buf
}

// CreateMesh uploads vertices into a device local storage buffer and, when
// there are any, indices into an index buffer.
func (g *GX) CreateMesh(vertices []Vertex, indices []uint32) MeshBuffers {
	assertf(len(vertices) > 0, "mesh without vertices")
	m := MeshBuffers{NumVertices: uint32(len(vertices)), NumIndices: uint32(len(indices))}
	m.Vertices = g.CreateBuffer(BufferSpec{
		Size:      uint64(len(vertices) * VertexSize),
		Usage:     BufferUsageStorage,
		Data:      encodeVertices(vertices),
		DebugName: "mesh vertices",
	})
	if len(indices) > 0 {
		m.Indices = g.CreateBuffer(BufferSpec{
			Size:      uint64(len(indices) * 4),
			Usage:     BufferUsageIndex,
			Data:      encodeIndices(indices),
			DebugName: "mesh indices",
		})
	}
	if m.Vertices.Valid() {
		m.VertexAddress = g.GPUAddress(m.Vertices, 0)
	}
	return m
}

// DestroyMesh releases the buffers of a mesh.
func (g *GX) DestroyMesh(m MeshBuffers) {
	g.DestroyBuffer(m.Vertices)
	if !m.Indices.Empty() {
		g.DestroyBuffer(m.Indices)
	}
}
