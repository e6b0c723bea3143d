package model

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// Model is a loaded scene: a node arena with its skins, animations and materials, plus the CPU copy of
// its geometry. Nodes and skins refer to each other by index.
//
// A Model is built from a Document by NewModel. The renderer then uploads the geometry into its shared
// buffers, rebasing every primitive, and creates the GPU resources that Release destroys.
type Model struct {
	name string

	Nodes      []Node
	Skins      []Skin
	Animations []Animation
	Materials  []material.Material
	// Images are the decoded texture images, indexed by material texture slots.
	Images []Image
	// Textures are the uploaded Images, filled in by the renderer. Entries may be nil for images that
	// failed to upload.
	Textures []gpu.Image

	// Vertices and Indices are the model's geometry before upload. Primitive ranges index into them
	// until Rebase moves them into the shared buffers.
	Vertices []GPUVertex
	Indices  []uint32

	activeAnimation int
	released        bool
}

// NewModel builds a model from a scene document. Node parents are derived from the children lists,
// the hierarchy is validated and global transforms are computed once.
//
// Parameters:
//   - doc: the scene document
//   - options: variadic list of ModelBuilderOption functions to configure the model
//
// Returns:
//   - *Model: the model, with no GPU resources yet
//   - error: an error if the document is malformed
func NewModel(doc Document, options ...ModelBuilderOption) (*Model, error) {
	m := &Model{name: doc.Name()}

	if err := m.buildMaterials(doc); err != nil {
		return nil, err
	}
	if err := m.buildNodes(doc); err != nil {
		return nil, err
	}
	if err := m.buildSkins(doc); err != nil {
		return nil, err
	}
	if err := m.buildAnimations(doc); err != nil {
		return nil, err
	}
	m.Images = doc.Images()

	for _, opt := range options {
		opt(m)
	}
	if len(m.Animations) == 0 {
		m.activeAnimation = -1
	} else if m.activeAnimation < 0 || m.activeAnimation >= len(m.Animations) {
		m.activeAnimation = 0
	}

	UpdateGlobalTransforms(m.Nodes)
	return m, nil
}

func (m *Model) buildMaterials(doc Document) error {
	for _, d := range doc.Materials() {
		m.Materials = append(m.Materials, material.NewMaterial(material.WithData(d)))
	}
	return nil
}

// defaultMaterial returns the index of the default material, appending it on first use.
func (m *Model) defaultMaterial(index *int) int {
	if *index < 0 {
		*index = len(m.Materials)
		m.Materials = append(m.Materials, material.NewMaterial())
	}
	return *index
}

func (m *Model) buildNodes(doc Document) error {
	data := doc.Nodes()
	meshes := doc.Meshes()
	m.Nodes = make([]Node, len(data))
	for i, nd := range data {
		local := Transform{Translation: nd.Translation, Rotation: nd.Rotation, Scale: nd.Scale}
		if local.Rotation == (mgl32.Quat{}) {
			local.Rotation = mgl32.QuatIdent()
		}
		m.Nodes[i] = Node{
			ID:       i,
			Name:     nd.Name,
			Skin:     nd.Skin,
			Parent:   -1,
			Children: append([]int(nil), nd.Children...),
			Local:    local,
		}
	}
	for i, nd := range data {
		for _, c := range nd.Children {
			if c < 0 || c >= len(m.Nodes) {
				return fmt.Errorf("model %s: %w: node %d has child %d out of range", m.name, ErrInvalidHierarchy, i, c)
			}
			if m.Nodes[c].Parent != -1 {
				return fmt.Errorf("model %s: %w: node %d has parents %d and %d", m.name, ErrInvalidHierarchy, c, m.Nodes[c].Parent, i)
			}
			m.Nodes[c].Parent = i
		}
	}
	if err := Validate(m.Nodes); err != nil {
		return fmt.Errorf("model %s: %w", m.name, err)
	}

	defaultMat := -1
	built := make(map[int][]Primitive, len(meshes))
	for i, nd := range data {
		if nd.Mesh < 0 {
			continue
		}
		if nd.Mesh >= len(meshes) {
			return fmt.Errorf("model %s: node %d references mesh %d of %d", m.name, i, nd.Mesh, len(meshes))
		}
		prims, ok := built[nd.Mesh]
		if !ok {
			var err error
			prims, err = m.buildMesh(meshes[nd.Mesh], &defaultMat)
			if err != nil {
				return fmt.Errorf("model %s: mesh %d: %w", m.name, nd.Mesh, err)
			}
			built[nd.Mesh] = prims
		}
		m.Nodes[i].Mesh = append([]Primitive(nil), prims...)
	}
	return nil
}

func (m *Model) buildMesh(mesh MeshData, defaultMat *int) ([]Primitive, error) {
	prims := make([]Primitive, 0, len(mesh.Primitives))
	for p, pd := range mesh.Primitives {
		count := len(pd.Positions)
		prim := Primitive{
			FirstIndex:   uint32(len(m.Indices)),
			VertexOffset: int32(len(m.Vertices)),
			Material:     pd.Material,
		}
		if prim.Material < 0 || prim.Material >= len(m.Materials) {
			prim.Material = m.defaultMaterial(defaultMat)
		}

		for v := 0; v < count; v++ {
			vert := GPUVertex{Position: pd.Positions[v], Tangent: [4]float32{1, 0, 0, 1}}
			if len(pd.Normals) == count {
				vert.Normal = pd.Normals[v]
			}
			if len(pd.UVs) == count {
				vert.TexCoord = pd.UVs[v]
			}
			if len(pd.Tangents) == count {
				vert.Tangent = pd.Tangents[v]
			}
			if len(pd.Joints) == count && len(pd.Weights) == count {
				vert.Joints = pd.Joints[v]
				vert.Weights = pd.Weights[v]
			}
			m.Vertices = append(m.Vertices, vert)
		}

		if pd.Indices == nil {
			for v := 0; v < count; v++ {
				m.Indices = append(m.Indices, uint32(v))
			}
		} else {
			for _, idx := range pd.Indices {
				if int(idx) >= count {
					return nil, fmt.Errorf("primitive %d: index %d out of range of %d vertices", p, idx, count)
				}
			}
			m.Indices = append(m.Indices, pd.Indices...)
		}
		prim.IndexCount = uint32(len(m.Indices)) - prim.FirstIndex
		prim.Bounds = computeBounds(pd.Positions)
		prims = append(prims, prim)
	}
	return prims, nil
}

func computeBounds(positions []mgl32.Vec3) Bounds {
	if len(positions) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		for k := 0; k < 3; k++ {
			b.Min[k] = min(b.Min[k], p[k])
			b.Max[k] = max(b.Max[k], p[k])
		}
	}
	return b
}

func (m *Model) buildSkins(doc Document) error {
	data := doc.Skins()
	m.Skins = make([]Skin, len(data))
	for i, sd := range data {
		skin := Skin{
			Name:                sd.Name,
			Joints:              append([]int(nil), sd.Joints...),
			InverseBindMatrices: sd.InverseBindMatrices,
			SkeletonRoot:        sd.Skeleton,
			SkinnedNode:         -1,
		}
		for _, j := range skin.Joints {
			if j < 0 || j >= len(m.Nodes) {
				return fmt.Errorf("model %s: skin %d has joint node %d out of range", m.name, i, j)
			}
		}
		if skin.InverseBindMatrices == nil {
			skin.InverseBindMatrices = make([]mgl32.Mat4, len(skin.Joints))
			for k := range skin.InverseBindMatrices {
				skin.InverseBindMatrices[k] = mgl32.Ident4()
			}
		}
		if len(skin.InverseBindMatrices) != len(skin.Joints) {
			return fmt.Errorf("model %s: skin %d has %d joints but %d inverse bind matrices",
				m.name, i, len(skin.Joints), len(skin.InverseBindMatrices))
		}
		m.Skins[i] = skin
	}
	for i := range m.Nodes {
		s := m.Nodes[i].Skin
		if s < 0 {
			m.Nodes[i].Skin = -1
			continue
		}
		if s >= len(m.Skins) {
			return fmt.Errorf("model %s: node %d references skin %d of %d", m.name, i, s, len(m.Skins))
		}
		if m.Skins[s].SkinnedNode == -1 {
			m.Skins[s].SkinnedNode = i
		}
	}
	return nil
}

func (m *Model) buildAnimations(doc Document) error {
	for i, ad := range doc.Animations() {
		for _, c := range ad.Channels {
			if c.Node < 0 || c.Node >= len(m.Nodes) {
				return fmt.Errorf("model %s: animation %d targets node %d out of range", m.name, i, c.Node)
			}
			if c.Sampler < 0 || c.Sampler >= len(ad.Samplers) {
				return fmt.Errorf("model %s: animation %d uses sampler %d out of range", m.name, i, c.Sampler)
			}
			// Weights samplers hold one output per morph target per keyframe and are never sampled.
			s := ad.Samplers[c.Sampler]
			if c.Path == PathWeights || s.Interpolation == InterpolationCubicSpline {
				continue
			}
			if len(s.Inputs) != len(s.Outputs) {
				return fmt.Errorf("model %s: animation %d has a sampler with %d inputs and %d outputs",
					m.name, i, len(s.Inputs), len(s.Outputs))
			}
		}
		m.Animations = append(m.Animations, NewAnimation(ad.Name, ad.Samplers, ad.Channels))
	}
	return nil
}

// Name returns the model identifier.
func (m *Model) Name() string {
	return m.name
}

// Roots returns the indices of the nodes without a parent.
//
// Returns:
//   - []int: root node indices in arena order
func (m *Model) Roots() []int {
	var roots []int
	for i := range m.Nodes {
		if m.Nodes[i].Parent == -1 {
			roots = append(roots, i)
		}
	}
	return roots
}

// ActiveAnimation returns the animation the animator plays, or nil when the model has none.
//
// Returns:
//   - *Animation: the active animation or nil
func (m *Model) ActiveAnimation() *Animation {
	if m.activeAnimation < 0 || m.activeAnimation >= len(m.Animations) {
		return nil
	}
	return &m.Animations[m.activeAnimation]
}

// ActiveAnimationIndex returns the index of the active animation, or -1.
func (m *Model) ActiveAnimationIndex() int {
	return m.activeAnimation
}

// SetActiveAnimation selects the animation to play and rewinds it to its start.
//
// Parameters:
//   - index: the animation index
//
// Returns:
//   - error: an error if index is out of range
func (m *Model) SetActiveAnimation(index int) error {
	if index < 0 || index >= len(m.Animations) {
		return fmt.Errorf("model %s: animation %d out of range of %d", m.name, index, len(m.Animations))
	}
	m.activeAnimation = index
	m.Animations[index].CurrentTime = m.Animations[index].Start
	return nil
}

// AnimationNames returns the names of all animations in order.
func (m *Model) AnimationNames() []string {
	names := make([]string, len(m.Animations))
	for i, a := range m.Animations {
		names[i] = a.Name
	}
	return names
}

// AnimationIndex returns the index of the animation with the given name, or -1 if not found.
func (m *Model) AnimationIndex(name string) int {
	for i, a := range m.Animations {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// Bounds returns the world-space box around every primitive at the nodes' current global transforms.
//
// Returns:
//   - Bounds: the enclosing box
//   - bool: false when the model has no geometry
func (m *Model) Bounds() (Bounds, bool) {
	var out Bounds
	found := false
	for i := range m.Nodes {
		node := &m.Nodes[i]
		if len(node.Mesh) == 0 {
			continue
		}
		world := node.GlobalMatrix()
		for _, p := range node.Mesh {
			for c := 0; c < 8; c++ {
				corner := p.Bounds.Min
				if c&1 != 0 {
					corner[0] = p.Bounds.Max[0]
				}
				if c&2 != 0 {
					corner[1] = p.Bounds.Max[1]
				}
				if c&4 != 0 {
					corner[2] = p.Bounds.Max[2]
				}
				v := mgl32.TransformCoordinate(corner, world)
				if !found {
					out = Bounds{Min: v, Max: v}
					found = true
					continue
				}
				for k := 0; k < 3; k++ {
					out.Min[k] = min(out.Min[k], v[k])
					out.Max[k] = max(out.Max[k], v[k])
				}
			}
		}
	}
	return out, found
}

// Rebase moves every primitive range by the given index and vertex offsets. The renderer calls it after
// appending the model's geometry to its shared buffers.
//
// Parameters:
//   - firstIndex: the position of the model's first index in the shared index buffer
//   - vertexOffset: the position of the model's first vertex in the shared vertex buffer
func (m *Model) Rebase(firstIndex uint32, vertexOffset int32) {
	for i := range m.Nodes {
		for p := range m.Nodes[i].Mesh {
			m.Nodes[i].Mesh[p].FirstIndex += firstIndex
			m.Nodes[i].Mesh[p].VertexOffset += vertexOffset
		}
	}
}

// Released reports whether Release has run.
func (m *Model) Released() bool {
	return m.released
}

// Release destroys the model's GPU resources: material sets, skin joint buffers and uploaded textures.
// It is safe to call more than once.
func (m *Model) Release() {
	if m.released {
		return
	}
	m.released = true
	for _, mat := range m.Materials {
		mat.Release()
	}
	for i := range m.Skins {
		if m.Skins[i].Provider != nil {
			m.Skins[i].Provider.Release()
			m.Skins[i].Provider = nil
		}
	}
	for i, tex := range m.Textures {
		if tex != nil {
			tex.Release()
		}
		m.Textures[i] = nil
	}
}
