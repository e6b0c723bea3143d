package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// triangleGLTF is one red triangle under a translated root with a one-second translation channel and a
// texture whose image data is not a decodable image.
const triangleGLTF = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"name": "triangle", "nodes": [0]}],
  "nodes": [
    {"name": "root", "children": [1], "translation": [0, 2, 0]},
    {"name": "tri", "mesh": 0, "rotation": [0, 0, 0, 1]}
  ],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]}],
  "materials": [{
    "name": "red",
    "pbrMetallicRoughness": {"baseColorFactor": [1, 0, 0, 1], "metallicFactor": 0.2, "baseColorTexture": {"index": 0}},
    "doubleSided": true,
    "alphaMode": "MASK",
    "alphaCutoff": 0.3
  }],
  "textures": [{"source": 0}],
  "images": [{"name": "broken", "uri": "data:image/png;base64,AAAA"}],
  "animations": [{
    "name": "slide",
    "samplers": [{"input": 2, "output": 3, "interpolation": "LINEAR"}],
    "channels": [{"sampler": 0, "target": {"node": 1, "path": "translation"}}]
  }],
  "buffers": [{"byteLength": 76, "uri": "data:application/octet-stream;base64,AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAAAAABAAIAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAAAAAAAA=="}],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6},
    {"buffer": 0, "byteOffset": 44, "byteLength": 8},
    {"buffer": 0, "byteOffset": 52, "byteLength": 24}
  ],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"},
    {"bufferView": 2, "componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [1]},
    {"bufferView": 3, "componentType": 5126, "count": 2, "type": "VEC3"}
  ]
}`

func newTestLoader() Loader {
	return NewLoader(BackendTypeGLTF, WithLogger(zap.NewNop()), WithDecodeWorkers(2))
}

func writeTriangle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triangle.gltf")
	if err := os.WriteFile(path, []byte(triangleGLTF), 0o644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

func TestLoadReaderConvertsDocument(t *testing.T) {
	doc, err := newTestLoader().LoadReader("tri", strings.NewReader(triangleGLTF), "")
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	if doc.Name() != "tri" {
		t.Errorf("name = %q", doc.Name())
	}

	nodes := doc.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("%d nodes, want 2", len(nodes))
	}
	if nodes[0].Translation != (mgl32.Vec3{0, 2, 0}) || nodes[0].Mesh != -1 || nodes[0].Skin != -1 {
		t.Errorf("root = %+v", nodes[0])
	}
	if nodes[0].Scale != (mgl32.Vec3{1, 1, 1}) || nodes[0].Rotation != mgl32.QuatIdent() {
		t.Errorf("root defaults = scale %v rotation %v", nodes[0].Scale, nodes[0].Rotation)
	}
	if len(nodes[0].Children) != 1 || nodes[0].Children[0] != 1 || nodes[1].Mesh != 0 {
		t.Errorf("hierarchy = %+v / %+v", nodes[0], nodes[1])
	}

	meshes := doc.Meshes()
	if len(meshes) != 1 || len(meshes[0].Primitives) != 1 {
		t.Fatalf("meshes = %+v", meshes)
	}
	prim := meshes[0].Primitives[0]
	if len(prim.Positions) != 3 || prim.Positions[1] != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("positions = %v", prim.Positions)
	}
	if len(prim.Indices) != 3 || prim.Indices[2] != 2 || prim.Material != 0 {
		t.Errorf("indices %v material %d", prim.Indices, prim.Material)
	}

	mats := doc.Materials()
	if len(mats) != 1 {
		t.Fatalf("%d materials", len(mats))
	}
	m := mats[0]
	if m.BaseColorFactor != (mgl32.Vec4{1, 0, 0, 1}) || !mgl32.FloatEqual(m.MetallicFactor, 0.2) || m.RoughnessFactor != 1 {
		t.Errorf("factors = %v %v %v", m.BaseColorFactor, m.MetallicFactor, m.RoughnessFactor)
	}
	if !m.DoubleSided || m.AlphaMode != material.AlphaMask || !mgl32.FloatEqual(m.AlphaCutoff, 0.3) {
		t.Errorf("alpha = %v %v double sided %v", m.AlphaMode, m.AlphaCutoff, m.DoubleSided)
	}
	if m.Textures[material.SlotBaseColor] != 0 || m.Textures[material.SlotNormal] != material.NoTexture {
		t.Errorf("texture slots = %v", m.Textures)
	}
}

func TestUndecodableImageFallsBackToWhitePixel(t *testing.T) {
	doc, err := newTestLoader().LoadReader("tri", strings.NewReader(triangleGLTF), "")
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	images := doc.Images()
	if len(images) != 1 {
		t.Fatalf("%d images, want 1", len(images))
	}
	if images[0].Width != 1 || images[0].Height != 1 || string(images[0].Pixels) != "\xff\xff\xff\xff" {
		t.Errorf("fallback image = %dx%d %v", images[0].Width, images[0].Height, images[0].Pixels)
	}
}

func TestLoadReaderAnimation(t *testing.T) {
	doc, err := newTestLoader().LoadReader("tri", strings.NewReader(triangleGLTF), "")
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	anims := doc.Animations()
	if len(anims) != 1 || anims[0].Name != "slide" {
		t.Fatalf("animations = %+v", anims)
	}
	a := anims[0]
	if len(a.Channels) != 1 || a.Channels[0].Node != 1 || a.Channels[0].Path != model.PathTranslation {
		t.Errorf("channels = %+v", a.Channels)
	}
	s := a.Samplers[0]
	if s.Interpolation != model.InterpolationLinear || len(s.Inputs) != 2 || s.Inputs[1] != 1 {
		t.Errorf("sampler = %+v", s)
	}
	if len(s.Outputs) != 2 || s.Outputs[1] != (mgl32.Vec4{1, 0, 0, 0}) {
		t.Errorf("outputs = %v", s.Outputs)
	}
}

func TestLoadCachesByPath(t *testing.T) {
	l := newTestLoader()
	path := writeTriangle(t)

	first, err := l.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.Name() != "triangle" {
		t.Errorf("name = %q, want the scene name", first.Name())
	}
	second, err := l.Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Error("second Load did not return the cached document")
	}
	if l.Get(path) != first || len(l.Documents()) != 1 {
		t.Errorf("cache = %v", l.Documents())
	}
}

func TestLoadMeshOnlyDropsAnimation(t *testing.T) {
	l := newTestLoader()
	path := writeTriangle(t)

	doc, err := l.LoadMeshOnly(path)
	if err != nil {
		t.Fatalf("LoadMeshOnly: %v", err)
	}
	if len(doc.Animations()) != 0 || len(doc.Skins()) != 0 {
		t.Errorf("mesh-only document has %d animations and %d skins", len(doc.Animations()), len(doc.Skins()))
	}
	if len(doc.Meshes()) != 1 {
		t.Errorf("mesh-only document lost its mesh")
	}
}

func TestLoadedDocumentBuildsModel(t *testing.T) {
	doc, err := newTestLoader().LoadReader("tri", strings.NewReader(triangleGLTF), "")
	if err != nil {
		t.Fatalf("LoadReader: %v", err)
	}
	m, err := model.NewModel(doc)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	if m.Nodes[1].Parent != 0 {
		t.Errorf("tri parent = %d, want 0", m.Nodes[1].Parent)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	_, err := newTestLoader().Load("scene.obj")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecompose(t *testing.T) {
	want := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	m := mgl32.Translate3D(1, 2, 3).Mul4(want.Mat4()).Mul4(mgl32.Scale3D(2, 3, 4))

	tr, r, s := decompose(m)
	if !tr.ApproxEqual(mgl32.Vec3{1, 2, 3}) {
		t.Errorf("translation = %v", tr)
	}
	if !s.ApproxEqualThreshold(mgl32.Vec3{2, 3, 4}, 1e-5) {
		t.Errorf("scale = %v", s)
	}
	if !r.ApproxEqualThreshold(want, 1e-5) && !r.ApproxEqualThreshold(want.Scale(-1), 1e-5) {
		t.Errorf("rotation = %v, want %v", r, want)
	}
}
