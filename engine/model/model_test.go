package model

import (
	"strings"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

func triangle(materialIndex int) PrimitiveData {
	return PrimitiveData{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 2, -1}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Indices:   []uint32{0, 1, 2},
		Material:  materialIndex,
	}
}

func sampleDocument() *DocumentData {
	return &DocumentData{
		Title: "sample",
		NodeList: []NodeData{
			{Name: "root", Children: []int{1, 2}, Mesh: 0, Skin: -1, Scale: mgl32.Vec3{1, 1, 1}},
			{Name: "a", Mesh: 0, Skin: 0, Scale: mgl32.Vec3{1, 1, 1}, Translation: mgl32.Vec3{1, 0, 0}},
			{Name: "joint", Mesh: -1, Skin: -1, Scale: mgl32.Vec3{1, 1, 1}},
		},
		MeshList: []MeshData{{Name: "tri", Primitives: []PrimitiveData{triangle(0), triangle(-1)}}},
		MaterialList: []material.Data{
			material.DefaultData(),
		},
		SkinList: []SkinData{{Name: "skin", Joints: []int{2}, Skeleton: 2}},
		AnimationList: []AnimationData{{
			Name: "slide",
			Samplers: []AnimationSampler{{
				Inputs:  []float32{0.5, 2},
				Outputs: []mgl32.Vec4{{0, 0, 0, 0}, {1, 0, 0, 0}},
			}},
			Channels: []AnimationChannel{{Node: 1, Path: PathTranslation, Sampler: 0}},
		}},
	}
}

func TestNewModelFromDocument(t *testing.T) {
	m, err := NewModel(sampleDocument())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	if m.Name() != "sample" {
		t.Errorf("name = %q", m.Name())
	}
	if m.Nodes[1].Parent != 0 || m.Nodes[2].Parent != 0 || m.Nodes[0].Parent != -1 {
		t.Errorf("parents = %d %d %d", m.Nodes[0].Parent, m.Nodes[1].Parent, m.Nodes[2].Parent)
	}
	if len(m.Vertices) != 6 || len(m.Indices) != 6 {
		t.Fatalf("shared mesh geometry built %d vertices and %d indices, want 6 and 6", len(m.Vertices), len(m.Indices))
	}
	if len(m.Materials) != 2 {
		t.Fatalf("materials = %d, want the document material plus one default", len(m.Materials))
	}
	second := m.Nodes[0].Mesh[1]
	if second.FirstIndex != 3 || second.VertexOffset != 3 || second.IndexCount != 3 || second.Material != 1 {
		t.Errorf("second primitive = %+v", second)
	}
	if want := (Bounds{Min: mgl32.Vec3{0, 0, -1}, Max: mgl32.Vec3{1, 2, 0}}); second.Bounds != want {
		t.Errorf("bounds = %+v, want %+v", second.Bounds, want)
	}
	if m.Nodes[0].Local.Rotation != mgl32.QuatIdent() {
		t.Errorf("zero rotation was not replaced by the identity")
	}
	if m.Nodes[1].Global.Translation != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("global transforms not computed at construction")
	}

	if m.Skins[0].SkinnedNode != 1 {
		t.Errorf("skinned node = %d, want 1", m.Skins[0].SkinnedNode)
	}
	if len(m.Skins[0].InverseBindMatrices) != 1 || m.Skins[0].InverseBindMatrices[0] != mgl32.Ident4() {
		t.Errorf("missing inverse bind matrices should default to identity")
	}

	anim := m.ActiveAnimation()
	if anim == nil {
		t.Fatal("expected an active animation")
	}
	if anim.Start != 0.5 || anim.End != 2 || anim.CurrentTime != 0.5 || !anim.Playing {
		t.Errorf("animation = start %v end %v current %v playing %v", anim.Start, anim.End, anim.CurrentTime, anim.Playing)
	}
}

func TestModelRebaseKeepsSharedMeshesIndependent(t *testing.T) {
	m, err := NewModel(sampleDocument())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	m.Rebase(100, 40)
	for _, n := range []int{0, 1} {
		p := m.Nodes[n].Mesh[0]
		if p.FirstIndex != 100 || p.VertexOffset != 40 {
			t.Errorf("node %d first primitive = %+v after rebase", n, p)
		}
	}
}

func TestModelAnimationSelection(t *testing.T) {
	doc := sampleDocument()
	doc.AnimationList = append(doc.AnimationList, AnimationData{Name: "idle"})
	m, err := NewModel(doc, WithActiveAnimation(1), WithName("renamed"))
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if m.Name() != "renamed" {
		t.Errorf("name = %q", m.Name())
	}
	if m.ActiveAnimationIndex() != 1 || m.AnimationIndex("slide") != 0 || m.AnimationIndex("missing") != -1 {
		t.Errorf("active %d", m.ActiveAnimationIndex())
	}
	m.Animations[0].CurrentTime = 1.7
	if err := m.SetActiveAnimation(0); err != nil {
		t.Fatalf("SetActiveAnimation: %v", err)
	}
	if m.ActiveAnimation().CurrentTime != 0.5 {
		t.Errorf("SetActiveAnimation did not rewind to Start")
	}
	if err := m.SetActiveAnimation(5); err == nil {
		t.Error("expected an error for an out-of-range animation")
	}
	if got := strings.Join(m.AnimationNames(), ","); got != "slide,idle" {
		t.Errorf("names = %q", got)
	}
}

func TestNewModelRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *DocumentData)
	}{
		{"child out of range", func(d *DocumentData) { d.NodeList[0].Children = []int{9} }},
		{"two parents", func(d *DocumentData) { d.NodeList[1].Children = []int{2} }},
		{"mesh out of range", func(d *DocumentData) { d.NodeList[2].Mesh = 4 }},
		{"skin out of range", func(d *DocumentData) { d.NodeList[2].Skin = 3 }},
		{"joint out of range", func(d *DocumentData) { d.SkinList[0].Joints = []int{7} }},
		{"index out of range", func(d *DocumentData) { d.MeshList[0].Primitives[0].Indices = []uint32{0, 1, 3} }},
		{"channel node out of range", func(d *DocumentData) { d.AnimationList[0].Channels[0].Node = 8 }},
		{"sampler length mismatch", func(d *DocumentData) {
			d.AnimationList[0].Samplers[0].Outputs = d.AnimationList[0].Samplers[0].Outputs[:1]
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := sampleDocument()
			tc.mutate(doc)
			if _, err := NewModel(doc); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewModelAcceptsMorphWeightsAnimation(t *testing.T) {
	doc := sampleDocument()
	// Two morph targets over two keyframes give four scalar outputs.
	doc.AnimationList = append(doc.AnimationList, AnimationData{
		Name: "blink",
		Samplers: []AnimationSampler{{
			Interpolation: InterpolationLinear,
			Inputs:        []float32{0, 1},
			Outputs:       []mgl32.Vec4{{0}, {0}, {1}, {1}},
		}},
		Channels: []AnimationChannel{{Node: 1, Path: PathWeights, Sampler: 0}},
	})
	m, err := NewModel(doc)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if len(m.Animations) != 2 || m.Animations[1].Name != "blink" {
		t.Errorf("animations = %d", len(m.Animations))
	}
}

func TestModelReleaseIsIdempotent(t *testing.T) {
	m, err := NewModel(sampleDocument())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	m.Release()
	m.Release()
	if !m.Released() {
		t.Error("Released() = false after Release")
	}
}

func TestBoundsCoverAllNodes(t *testing.T) {
	m, err := NewModel(sampleDocument())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	b, ok := m.Bounds()
	if !ok {
		t.Fatal("model with geometry reported no bounds")
	}
	if !b.Min.ApproxEqual(mgl32.Vec3{0, 0, -1}) || !b.Max.ApproxEqual(mgl32.Vec3{2, 2, 0}) {
		t.Errorf("bounds = %v..%v", b.Min, b.Max)
	}

	empty := &Model{Nodes: []Node{{Skin: -1, Parent: -1}}}
	if _, ok := empty.Bounds(); ok {
		t.Error("model without geometry reported bounds")
	}
}
