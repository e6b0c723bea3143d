package loader

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// gltfConverter maps one parsed glTF document onto model document data. Asset-shape problems are
// logged and the affected element skipped; structural problems are returned as errors.
type gltfConverter struct {
	doc    *gltf.Document
	dir    string
	logger *zap.Logger
}

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func (c *gltfConverter) nodes(meshOnly bool) []model.NodeData {
	out := make([]model.NodeData, len(c.doc.Nodes))
	for i, n := range c.doc.Nodes {
		t, r, s := nodeTransform(n)
		data := model.NodeData{
			Name:        n.Name,
			Translation: t,
			Rotation:    r,
			Scale:       s,
			Children:    append([]int(nil), n.Children...),
			Mesh:        -1,
			Skin:        -1,
		}
		if n.Mesh != nil {
			data.Mesh = *n.Mesh
		}
		if n.Skin != nil && !meshOnly {
			data.Skin = *n.Skin
		}
		out[i] = data
	}
	return out
}

// nodeTransform returns the node's TRS. A node given as a matrix is decomposed; absent rotation and
// scale take their identity values.
func nodeTransform(n *gltf.Node) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	if n.Matrix != identityMatrix && n.Matrix != [16]float64{} {
		var m mgl32.Mat4
		for i, v := range n.Matrix {
			m[i] = float32(v)
		}
		return decompose(m)
	}

	t := mgl32.Vec3{float32(n.Translation[0]), float32(n.Translation[1]), float32(n.Translation[2])}
	r := mgl32.QuatIdent()
	if n.Rotation != [4]float64{} {
		r = mgl32.Quat{
			W: float32(n.Rotation[3]),
			V: mgl32.Vec3{float32(n.Rotation[0]), float32(n.Rotation[1]), float32(n.Rotation[2])},
		}.Normalize()
	}
	s := mgl32.Vec3{1, 1, 1}
	if n.Scale != [3]float64{} {
		s = mgl32.Vec3{float32(n.Scale[0]), float32(n.Scale[1]), float32(n.Scale[2])}
	}
	return t, r, s
}

// decompose splits an affine matrix without shear into translation, rotation and scale.
func decompose(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	t := m.Col(3).Vec3()
	s := mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
	if m.Mat3().Det() < 0 {
		s[0] = -s[0]
	}
	var rot mgl32.Mat4
	for c := 0; c < 3; c++ {
		col := m.Col(c).Vec3()
		if s[c] != 0 {
			col = col.Mul(1 / s[c])
		}
		rot.SetCol(c, col.Vec4(0))
	}
	rot.SetCol(3, mgl32.Vec4{0, 0, 0, 1})
	return t, mgl32.Mat4ToQuat(rot).Normalize(), s
}

func (c *gltfConverter) meshes() []model.MeshData {
	out := make([]model.MeshData, len(c.doc.Meshes))
	for mi, mesh := range c.doc.Meshes {
		data := model.MeshData{Name: mesh.Name}
		for pi, p := range mesh.Primitives {
			prim, ok := c.primitive(mi, pi, p)
			if !ok {
				continue
			}
			data.Primitives = append(data.Primitives, prim)
		}
		out[mi] = data
	}
	return out
}

func (c *gltfConverter) primitive(meshIndex, primIndex int, p *gltf.Primitive) (model.PrimitiveData, bool) {
	log := c.logger.With(zap.Int("mesh", meshIndex), zap.Int("primitive", primIndex))
	if p.Mode != gltf.PrimitiveTriangles {
		log.Warn("skipping non-triangle primitive")
		return model.PrimitiveData{}, false
	}
	posIndex, ok := p.Attributes["POSITION"]
	if !ok {
		log.Warn("skipping primitive without positions")
		return model.PrimitiveData{}, false
	}
	positions, err := readVec3s(c.doc, posIndex)
	if err != nil {
		log.Warn("skipping primitive with unreadable positions", zap.Error(err))
		return model.PrimitiveData{}, false
	}

	prim := model.PrimitiveData{Positions: positions, Material: -1}
	if p.Material != nil {
		prim.Material = *p.Material
	}
	if p.Indices != nil {
		if prim.Indices, err = readIndices(c.doc, *p.Indices); err != nil {
			log.Warn("skipping primitive with unreadable indices", zap.Error(err))
			return model.PrimitiveData{}, false
		}
	}

	optional := func(name string, read func(index int) error) {
		index, ok := p.Attributes[name]
		if !ok {
			return
		}
		if err := read(index); err != nil {
			log.Warn("ignoring vertex stream", zap.String("attribute", name), zap.Error(err))
		}
	}
	optional("NORMAL", func(i int) (err error) { prim.Normals, err = readVec3s(c.doc, i); return })
	optional("TEXCOORD_0", func(i int) (err error) { prim.UVs, err = readVec2s(c.doc, i); return })
	optional("TANGENT", func(i int) (err error) { prim.Tangents, err = readVec4s(c.doc, i); return })
	optional("JOINTS_0", func(i int) (err error) { prim.Joints, err = readJoints(c.doc, i); return })
	optional("WEIGHTS_0", func(i int) (err error) { prim.Weights, err = readVec4s(c.doc, i); return })
	return prim, true
}

func (c *gltfConverter) materials() []material.Data {
	out := make([]material.Data, len(c.doc.Materials))
	for i, m := range c.doc.Materials {
		d := material.DefaultData()
		d.Name = m.Name
		d.DoubleSided = m.DoubleSided
		d.EmissiveFactor = mgl32.Vec3{float32(m.EmissiveFactor[0]), float32(m.EmissiveFactor[1]), float32(m.EmissiveFactor[2])}
		if m.AlphaCutoff != nil {
			d.AlphaCutoff = float32(*m.AlphaCutoff)
		}
		switch m.AlphaMode {
		case gltf.AlphaMask:
			d.AlphaMode = material.AlphaMask
		case gltf.AlphaBlend:
			d.AlphaMode = material.AlphaBlend
		default:
			d.AlphaMode = material.AlphaOpaque
		}

		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if f := pbr.BaseColorFactor; f != nil {
				d.BaseColorFactor = mgl32.Vec4{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
			}
			if pbr.MetallicFactor != nil {
				d.MetallicFactor = float32(*pbr.MetallicFactor)
			}
			if pbr.RoughnessFactor != nil {
				d.RoughnessFactor = float32(*pbr.RoughnessFactor)
			}
			if pbr.BaseColorTexture != nil {
				d.Textures[material.SlotBaseColor] = c.textureImage(pbr.BaseColorTexture.Index)
			}
			if pbr.MetallicRoughnessTexture != nil {
				d.Textures[material.SlotMetallicRoughness] = c.textureImage(pbr.MetallicRoughnessTexture.Index)
			}
		}
		if m.NormalTexture != nil && m.NormalTexture.Index != nil {
			d.Textures[material.SlotNormal] = c.textureImage(*m.NormalTexture.Index)
		}
		if m.OcclusionTexture != nil && m.OcclusionTexture.Index != nil {
			d.Textures[material.SlotOcclusion] = c.textureImage(*m.OcclusionTexture.Index)
		}
		if m.EmissiveTexture != nil {
			d.Textures[material.SlotEmissive] = c.textureImage(m.EmissiveTexture.Index)
		}
		out[i] = d
	}
	return out
}

// textureImage resolves a texture index to the index of its source image, or NoTexture.
func (c *gltfConverter) textureImage(texture int) int {
	if texture < 0 || texture >= len(c.doc.Textures) {
		c.logger.Warn("material references a missing texture", zap.Int("texture", texture))
		return material.NoTexture
	}
	src := c.doc.Textures[texture].Source
	if src == nil || *src < 0 || *src >= len(c.doc.Images) {
		c.logger.Warn("texture has no usable image source", zap.Int("texture", texture))
		return material.NoTexture
	}
	return *src
}

func (c *gltfConverter) skins() ([]model.SkinData, error) {
	out := make([]model.SkinData, len(c.doc.Skins))
	for i, s := range c.doc.Skins {
		for _, j := range s.Joints {
			if j < 0 || j >= len(c.doc.Nodes) {
				return nil, fmt.Errorf("skin %d: joint node %d out of range", i, j)
			}
		}
		data := model.SkinData{
			Name:     s.Name,
			Joints:   append([]int(nil), s.Joints...),
			Skeleton: -1,
		}
		if s.Skeleton != nil {
			data.Skeleton = *s.Skeleton
		}
		if s.InverseBindMatrices != nil {
			mats, err := readMat4s(c.doc, *s.InverseBindMatrices)
			if err != nil {
				return nil, fmt.Errorf("skin %d inverse bind matrices: %w", i, err)
			}
			if len(mats) < len(s.Joints) {
				return nil, fmt.Errorf("skin %d: %d inverse bind matrices for %d joints", i, len(mats), len(s.Joints))
			}
			data.InverseBindMatrices = mats[:len(s.Joints)]
		}
		out[i] = data
	}
	return out, nil
}

func (c *gltfConverter) animations() []model.AnimationData {
	out := make([]model.AnimationData, 0, len(c.doc.Animations))
	for ai, a := range c.doc.Animations {
		log := c.logger.With(zap.Int("animation", ai), zap.String("name", a.Name))
		data := model.AnimationData{Name: a.Name}

		// Sampler indices must survive skipping, so unreadable samplers stay as empty entries.
		for si, s := range a.Samplers {
			sampler := model.AnimationSampler{Interpolation: interpolation(s.Interpolation)}
			inputs, err := readFloats(c.doc, s.Input)
			if err == nil {
				sampler.Outputs, err = readKeyframes(c.doc, s.Output)
			}
			if err != nil {
				log.Warn("skipping unreadable animation sampler", zap.Int("sampler", si), zap.Error(err))
				sampler.Outputs = nil
			} else {
				sampler.Inputs = inputs
			}
			data.Samplers = append(data.Samplers, sampler)
		}

		for ci, ch := range a.Channels {
			if ch.Target.Node == nil {
				log.Warn("skipping channel without a target node", zap.Int("channel", ci))
				continue
			}
			sampler := int(ch.Sampler)
			if sampler < 0 || sampler >= len(data.Samplers) || len(data.Samplers[sampler].Inputs) == 0 {
				log.Warn("skipping channel with an unusable sampler", zap.Int("channel", ci))
				continue
			}
			data.Channels = append(data.Channels, model.AnimationChannel{
				Node:    *ch.Target.Node,
				Path:    path(ch.Target.Path),
				Sampler: sampler,
			})
		}
		out = append(out, data)
	}
	return out
}

func interpolation(i gltf.Interpolation) model.Interpolation {
	switch i {
	case gltf.InterpolationStep:
		return model.InterpolationStep
	case gltf.InterpolationCubicSpline:
		return model.InterpolationCubicSpline
	default:
		return model.InterpolationLinear
	}
}

func path(p gltf.TRSProperty) model.Path {
	switch p {
	case gltf.TRSRotation:
		return model.PathRotation
	case gltf.TRSScale:
		return model.PathScale
	case gltf.TRSWeights:
		return model.PathWeights
	default:
		return model.PathTranslation
	}
}
