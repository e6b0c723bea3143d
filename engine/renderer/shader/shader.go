package shader

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

// ShaderType identifies the programmable stage a shader runs in.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// shader is the implementation of the Shader interface.
// It holds the precompiled code for each shading language a backend may ask for.
type shader struct {
	key        string
	shaderType ShaderType
	entryPoint string
	wgsl       string
	spirv      []byte
}

// Shader defines the interface for a precompiled shader. A shader carries WGSL text for the WebGPU backend
// and SPIR-V words for the Vulkan backend; either may be absent when only one backend is in use.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// Source returns the shader code in the requested language.
	//
	// Parameters:
	//   - lang: the shading language the backend consumes
	//
	// Returns:
	//   - gpu.ShaderSource: the labelled code and entry point
	//   - error: an error if the shader has no code for lang
	Source(lang gpu.ShaderLanguage) (gpu.ShaderSource, error)
}

var _ Shader = &shader{}

// NewShader creates a new Shader instance with all specified options applied.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage the shader runs in
//   - options: a variadic list of ShaderBuilderOption functions supplying the code
//
// Returns:
//   - Shader: a new Shader instance with the provided configuration
func NewShader(key string, shaderType ShaderType, options ...ShaderBuilderOption) Shader {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		entryPoint: "main",
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Source(lang gpu.ShaderLanguage) (gpu.ShaderSource, error) {
	src := gpu.ShaderSource{Label: s.key, Language: lang, EntryPoint: s.entryPoint}
	switch lang {
	case gpu.ShaderLanguageWGSL:
		if s.wgsl == "" {
			return gpu.ShaderSource{}, fmt.Errorf("shader %s has no WGSL source", s.key)
		}
		src.Code = []byte(s.wgsl)
	case gpu.ShaderLanguageSPIRV:
		if len(s.spirv) == 0 {
			return gpu.ShaderSource{}, fmt.Errorf("shader %s has no SPIR-V code", s.key)
		}
		src.Code = s.spirv
	default:
		return gpu.ShaderSource{}, fmt.Errorf("shader %s: unknown shading language %d", s.key, lang)
	}
	return src, nil
}

// LoadSPIRV reads a SPIR-V module from disk and checks its header.
//
// Parameters:
//   - path: the .spv file path
//
// Returns:
//   - []byte: the module words as little-endian bytes
//   - error: an error if the file cannot be read or is not SPIR-V
func LoadSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SPIR-V module %s: %w", path, err)
	}
	if err := ValidateSPIRV(code); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

// ValidateSPIRV checks that code is a whole number of words and starts with the SPIR-V magic number.
func ValidateSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return fmt.Errorf("SPIR-V module has invalid length %d", len(code))
	}
	if binary.LittleEndian.Uint32(code) != spirvMagic {
		return fmt.Errorf("SPIR-V module has bad magic %#x", binary.LittleEndian.Uint32(code))
	}
	return nil
}
