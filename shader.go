package gx

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

// Entry points every shader module provides. One module carries both the
// vertex and the fragment stage.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

type ShaderModule struct {
	module           native.ShaderModule
	pushConstantSize uint32
	// version changes on every reload so pipelines built from an older
	// module notice and rebuild.
	version uint32
	label   string
}

func (s *ShaderModule) Native() native.ShaderModule { return s.module }
func (s *ShaderModule) PushConstantSize() uint32    { return s.pushConstantSize }
func (s *ShaderModule) Label() string               { return s.label }
func (s *ShaderModule) Version() uint32             { return s.version }

// ShaderSpec holds compiled SPIR-V. A PushConstantSize of zero means the
// shader uses PerObjectData.
type ShaderSpec struct {
	SPIRV            []byte
	PushConstantSize uint32
	DebugName        string
}

func (g *GX) CreateShader(spec ShaderSpec) ShaderHandle {
	if len(spec.SPIRV) == 0 || len(spec.SPIRV)%4 != 0 {
		log().Warn("shader SPIR-V must be a non empty multiple of 4 bytes", "name", spec.DebugName, "size", len(spec.SPIRV))
		return ShaderHandle{}
	}
	m, err := g.dev.CreateShaderModule(spec.SPIRV)
	if err != nil {
		log().Error("create shader module failed", "name", spec.DebugName, "err", err)
		return ShaderHandle{}
	}
	return g.shaders.Create(ShaderModule{
		module:           m,
		pushConstantSize: spec.PushConstantSize,
		version:          1,
		label:            spec.DebugName,
	})
}

// LoadShader reads a SPIR-V file and creates a shader from it.
func (g *GX) LoadShader(path string, pushConstantSize uint32) (ShaderHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ShaderHandle{}, errors.Wrapf(err, "read shader %s", path)
	}
	h := g.CreateShader(ShaderSpec{SPIRV: data, PushConstantSize: pushConstantSize, DebugName: path})
	if h.Empty() {
		return h, errors.Newf("create shader %s", path)
	}
	return h, nil
}

// ReloadShader swaps the module behind h for one built from spirv. Pipelines
// using the shader are rebuilt the next time they are bound.
func (g *GX) ReloadShader(h ShaderHandle, spirv []byte) error {
	s := g.shaders.Get(h)
	if s == nil {
		return errors.Newf("reload of invalid shader %s", h)
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return errors.Newf("shader %q: SPIR-V size %d is not a non empty multiple of 4", s.label, len(spirv))
	}
	m, err := g.dev.CreateShaderModule(spirv)
	if err != nil {
		return errors.Wrapf(err, "reload shader %q", s.label)
	}
	old := s.module
	g.deferTask(func() { g.dev.DestroyShaderModule(old) }, SubmitHandle{})
	s.module = m
	s.version++
	log().Info("shader reloaded", "name", s.label, "version", s.version)
	return nil
}

func (g *GX) Shader(h ShaderHandle) *ShaderModule { return g.shaders.Get(h) }

func (g *GX) DestroyShader(h ShaderHandle) {
	s := g.shaders.Get(h)
	if s == nil {
		return
	}
	m := s.module
	g.deferTask(func() { g.dev.DestroyShaderModule(m) }, SubmitHandle{})
	g.shaders.Destroy(h)
}
