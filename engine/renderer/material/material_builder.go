package material

import "github.com/go-gl/mathgl/mgl32"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithData is an option builder that replaces all surface properties at once.
//
// Parameters:
//   - data: the material data
//
// Returns:
//   - MaterialBuilderOption: a function that applies the data option to a material
func WithData(data Data) MaterialBuilderOption {
	return func(m *material) {
		m.data = data
	}
}

// WithName is an option builder that sets the name of the material.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.data.Name = name
	}
}

// WithBaseColor is an option builder that sets the base colour factor of the material.
//
// Parameters:
//   - color: the base colour as RGBA values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the base color option to a material
func WithBaseColor(color mgl32.Vec4) MaterialBuilderOption {
	return func(m *material) {
		m.data.BaseColorFactor = color
	}
}

// WithMetallicRoughness is an option builder that sets the metallic and roughness factors.
//
// Parameters:
//   - metallic: the metallic factor (0.0 = dielectric, 1.0 = metal)
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the factors to a material
func WithMetallicRoughness(metallic, roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.data.MetallicFactor = metallic
		m.data.RoughnessFactor = roughness
	}
}

// WithTexture is an option builder that points a texture slot at an image index.
//
// Parameters:
//   - slot: the texture slot
//   - image: the image index, or NoTexture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(slot TextureSlot, image int) MaterialBuilderOption {
	return func(m *material) {
		m.data.Textures[slot] = image
	}
}

// WithDoubleSided is an option builder that sets whether back faces are drawn.
//
// Parameters:
//   - doubleSided: true to disable back-face culling
//
// Returns:
//   - MaterialBuilderOption: a function that applies the double-sided option to a material
func WithDoubleSided(doubleSided bool) MaterialBuilderOption {
	return func(m *material) {
		m.data.DoubleSided = doubleSided
	}
}
