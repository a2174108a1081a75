package gx

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlab/linmath"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestPerFrameDataLayout(t *testing.T) {
	d := NewPerFrameData()
	d.CameraPosition = linmath.Vec3{1, 2, 3}
	d.Time = 4.5
	d.Resolution = [2]float32{640, 480}

	b := d.Bytes()
	require.Len(t, b, PerFrameDataSize)
	assert.Equal(t, float32(1), f32At(b, 0), "view[0][0]")
	assert.Equal(t, float32(1), f32At(b, 64+5*4), "projection[1][1]")
	assert.Equal(t, float32(3), f32At(b, 128+8))
	assert.Equal(t, float32(0), f32At(b, 128+12), "vec3 padding")
	assert.Equal(t, float32(0.1), f32At(b, 144+12))
	assert.Equal(t, float32(4.5), f32At(b, 160))
	assert.Equal(t, float32(480), f32At(b, 172))
}

func TestPerObjectDataLayout(t *testing.T) {
	d := PerObjectData{VertexBufferAddress: 0xdeadbeef00, ID: 42}
	d.Model.Identity()
	b := d.Bytes()
	require.Len(t, b, PerObjectDataSize)
	assert.Equal(t, float32(1), f32At(b, 15*4))
	assert.Equal(t, uint64(0xdeadbeef00), binary.LittleEndian.Uint64(b[64:]))
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(b[72:]))
}

func TestUpdatePerFrame(t *testing.T) {
	g, _ := newTestGX(t)
	d := NewPerFrameData()
	d.DeltaTime = 0.016
	g.UpdatePerFrame(d)

	out := make([]byte, PerFrameDataSize)
	g.Download(g.GlobalBuffer(), out, 0)
	assert.Equal(t, d.Bytes(), out)
}

func TestCreateMesh(t *testing.T) {
	g, _ := newTestGX(t)
	vertices := []Vertex{
		{Position: linmath.Vec3{-1, -1, 0}, UVX: 0, UVY: 0, Color: linmath.Vec4{1, 0, 0, 1}},
		{Position: linmath.Vec3{1, -1, 0}, UVX: 1, UVY: 0, Color: linmath.Vec4{0, 1, 0, 1}},
		{Position: linmath.Vec3{0, 1, 0}, UVX: 0.5, UVY: 1, Color: linmath.Vec4{0, 0, 1, 1}},
	}
	m := g.CreateMesh(vertices, []uint32{0, 1, 2})
	defer g.DestroyMesh(m)

	require.True(t, m.Vertices.Valid())
	require.True(t, m.Indices.Valid())
	assert.Equal(t, uint32(3), m.NumIndices)
	assert.Equal(t, uint32(3), m.NumVertices)
	assert.True(t, m.Indexed())
	assert.NotZero(t, m.VertexAddress)

	out := make([]byte, 3*VertexSize)
	g.Download(m.Vertices, out, 0)
	assert.Equal(t, encodeVertices(vertices), out)
	assert.Equal(t, float32(1), f32At(out, VertexSize+12), "uv x of the second vertex")

	idx := make([]byte, 12)
	g.Download(m.Indices, idx, 0)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(idx[8:]))

	assert.Panics(t, func() { g.CreateMesh(nil, []uint32{0}) })
}

func TestCreateMeshWithoutIndices(t *testing.T) {
	g, dev := newTestGX(t)
	vertices := make([]Vertex, 3)
	for i := range vertices {
		vertices[i].Color = linmath.Vec4{1, 1, 1, 1}
	}
	var m MeshBuffers
	require.NotPanics(t, func() { m = g.CreateMesh(vertices, nil) })

	require.True(t, m.Vertices.Valid())
	assert.True(t, m.Indices.Empty())
	assert.False(t, m.Indexed())
	assert.Equal(t, uint32(3), m.NumVertices)
	assert.Zero(t, m.NumIndices)
	assert.NotZero(t, m.VertexAddress)

	_, pipeline := newTestPipeline(t, g)
	target := newTestTexture(t, g, 4, 4, TextureUsageAttachment, "target")
	cmd := g.AcquireCommand()
	cmd.CmdBeginRendering(colorPass(target, nil), Dependencies{})
	cmd.CmdBindRenderPipeline(pipeline)
	cmd.CmdPushObjectData(PerObjectData{VertexBufferAddress: m.VertexAddress})
	cmd.CmdDraw(m.NumVertices, 1, 0, 0)
	cmd.CmdEndRendering()
	g.SubmitCommand(cmd, TextureHandle{})
	assert.Equal(t, 1, dev.Stats().Draws)

	g.DestroyMesh(m)
	assert.Empty(t, dev.Errors())
}
