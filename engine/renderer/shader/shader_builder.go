package shader

// ShaderBuilderOption is a functional option used to configure a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithWGSL sets the WGSL source consumed by the WebGPU backend.
//
// Parameters:
//   - src: the WGSL source text
//
// Returns:
//   - ShaderBuilderOption: a function that sets the WGSL source for this shader
func WithWGSL(src string) ShaderBuilderOption {
	return func(s *shader) {
		s.wgsl = src
	}
}

// WithSPIRV sets the SPIR-V code consumed by the Vulkan backend.
//
// Parameters:
//   - code: the SPIR-V module bytes
//
// Returns:
//   - ShaderBuilderOption: a function that sets the SPIR-V code for this shader
func WithSPIRV(code []byte) ShaderBuilderOption {
	return func(s *shader) {
		s.spirv = code
	}
}

// WithEntryPoint overrides the default "main" entry point.
//
// Parameters:
//   - name: the entry point function name
//
// Returns:
//   - ShaderBuilderOption: a function that sets the entry point for this shader
func WithEntryPoint(name string) ShaderBuilderOption {
	return func(s *shader) {
		s.entryPoint = name
	}
}
