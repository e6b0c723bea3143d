package model

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// Image is a decoded RGBA8 texture image.
type Image = common.ImageData

// NodeData is one node as read from a scene document.
type NodeData struct {
	Name        string
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
	Children    []int
	// Mesh indexes Document.Meshes, or -1.
	Mesh int
	// Skin indexes Document.Skins, or -1.
	Skin int
}

// MeshData is a list of primitives sharing one node transform.
type MeshData struct {
	Name       string
	Primitives []PrimitiveData
}

// PrimitiveData holds the vertex streams of one primitive. Positions define the vertex count; any
// other stream whose length differs is ignored.
type PrimitiveData struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Tangents  []mgl32.Vec4
	Joints    [][4]uint32
	Weights   []mgl32.Vec4
	// Indices are relative to the primitive's first vertex. Nil means sequential.
	Indices []uint32
	// Material indexes Document.Materials, or -1 for the default material.
	Material int
}

// SkinData is one skin as read from a scene document.
type SkinData struct {
	Name   string
	Joints []int
	// InverseBindMatrices holds one matrix per joint. Nil means identity for every joint.
	InverseBindMatrices []mgl32.Mat4
	// Skeleton is the common root node, or -1.
	Skeleton int
}

// AnimationData is one animation as read from a scene document.
type AnimationData struct {
	Name     string
	Samplers []AnimationSampler
	Channels []AnimationChannel
}

// Document is the scene-document reader a model is built from. Indices in the returned data refer to
// the slices returned by the same document.
type Document interface {
	// Name returns the document name used for the model.
	Name() string
	// Nodes returns the node list.
	Nodes() []NodeData
	// Meshes returns the mesh list.
	Meshes() []MeshData
	// Materials returns the material list.
	Materials() []material.Data
	// Images returns the decoded images referenced by material texture slots.
	Images() []Image
	// Skins returns the skin list.
	Skins() []SkinData
	// Animations returns the animation list.
	Animations() []AnimationData
}

// DocumentData is an in-memory Document, used for procedural scenes.
type DocumentData struct {
	Title         string
	NodeList      []NodeData
	MeshList      []MeshData
	MaterialList  []material.Data
	ImageList     []Image
	SkinList      []SkinData
	AnimationList []AnimationData
}

var _ Document = &DocumentData{}

func (d *DocumentData) Name() string { return d.Title }

func (d *DocumentData) Nodes() []NodeData { return d.NodeList }

func (d *DocumentData) Meshes() []MeshData { return d.MeshList }

func (d *DocumentData) Materials() []material.Data { return d.MaterialList }

func (d *DocumentData) Images() []Image { return d.ImageList }

func (d *DocumentData) Skins() []SkinData { return d.SkinList }

func (d *DocumentData) Animations() []AnimationData { return d.AnimationList }
