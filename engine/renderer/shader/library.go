package shader

import (
	_ "embed"
	"fmt"
	"path/filepath"
)

// Keys of the shaders the deferred pipeline is built from. SPIR-V modules are looked up as <key>.spv.
const (
	KeyGeometryVertex          = "geometry.vert"
	KeyGeometryInstancedVertex = "geometry_instanced.vert"
	KeyGeometryFragment        = "geometry.frag"
	KeyLightingVertex          = "lighting.vert"
	KeyLightingFragment        = "lighting.frag"
	KeyLightingMSAAFragment    = "lighting_msaa.frag"
)

//go:embed assets/geometry.vert.wgsl
var geometryVertexWGSL string

//go:embed assets/geometry_instanced.vert.wgsl
var geometryInstancedVertexWGSL string

//go:embed assets/geometry.frag.wgsl
var geometryFragmentWGSL string

//go:embed assets/lighting.vert.wgsl
var lightingVertexWGSL string

//go:embed assets/lighting.frag.wgsl
var lightingFragmentWGSL string

//go:embed assets/lighting_msaa.frag.wgsl
var lightingMSAAFragmentWGSL string

// Library maps shader keys to shaders.
type Library map[string]Shader

// Get returns the shader registered under key.
//
// Parameters:
//   - key: the shader key
//
// Returns:
//   - Shader: the shader
//   - error: an error if no shader is registered under key
func (l Library) Get(key string) (Shader, error) {
	s, ok := l[key]
	if !ok {
		return nil, fmt.Errorf("shader %s not found in library", key)
	}
	return s, nil
}

// DefaultLibrary returns the built-in deferred shaders. The WGSL sources are embedded. When spirvDir is
// not empty, every shader's SPIR-V module is read from spirvDir/<key>.spv as well.
//
// Parameters:
//   - spirvDir: the directory holding precompiled SPIR-V modules, or "" for WGSL only
//
// Returns:
//   - Library: the shader library
//   - error: an error if a SPIR-V module is missing or malformed
func DefaultLibrary(spirvDir string) (Library, error) {
	sources := []struct {
		key  string
		kind ShaderType
		wgsl string
	}{
		{KeyGeometryVertex, ShaderTypeVertex, geometryVertexWGSL},
		{KeyGeometryInstancedVertex, ShaderTypeVertex, geometryInstancedVertexWGSL},
		{KeyGeometryFragment, ShaderTypeFragment, geometryFragmentWGSL},
		{KeyLightingVertex, ShaderTypeVertex, lightingVertexWGSL},
		{KeyLightingFragment, ShaderTypeFragment, lightingFragmentWGSL},
		{KeyLightingMSAAFragment, ShaderTypeFragment, lightingMSAAFragmentWGSL},
	}

	lib := make(Library, len(sources))
	for _, src := range sources {
		opts := []ShaderBuilderOption{WithWGSL(src.wgsl)}
		if spirvDir != "" {
			code, err := LoadSPIRV(filepath.Join(spirvDir, src.key+".spv"))
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithSPIRV(code))
		}
		lib[src.key] = NewShader(src.key, src.kind, opts...)
	}
	return lib, nil
}
