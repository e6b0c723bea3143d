package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/light"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/frame"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu/gputest"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (*gputest.Device, *renderer) {
	t.Helper()
	dev := gputest.NewDevice(gpu.Extent{Width: 800, Height: 600}, 2)
	r, err := NewRenderer(dev, options...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return dev, r.(*renderer)
}

func triangle() model.PrimitiveData {
	return model.PrimitiveData{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:   []uint32{0, 1, 2},
		Material:  0,
	}
}

// slidingDocument is one node with a translation channel from (0,0,0) at t=0 to (1,0,0) at t=1.
func slidingDocument() *model.DocumentData {
	return &model.DocumentData{
		Title:        "slider",
		NodeList:     []model.NodeData{{Name: "mover", Mesh: 0, Skin: -1, Scale: mgl32.Vec3{1, 1, 1}}},
		MeshList:     []model.MeshData{{Name: "tri", Primitives: []model.PrimitiveData{triangle()}}},
		MaterialList: []material.Data{material.DefaultData()},
		AnimationList: []model.AnimationData{{
			Name: "slide",
			Samplers: []model.AnimationSampler{{
				Interpolation: model.InterpolationLinear,
				Inputs:        []float32{0, 1},
				Outputs:       []mgl32.Vec4{{0, 0, 0, 0}, {1, 0, 0, 0}},
			}},
			Channels: []model.AnimationChannel{{Node: 0, Path: model.PathTranslation, Sampler: 0}},
		}},
	}
}

// skinnedSlidingDocument is a skinned body whose single joint slides from (0,0,0) at t=0 to (1,0,0) at t=1.
func skinnedSlidingDocument() *model.DocumentData {
	doc := slidingDocument()
	doc.NodeList = []model.NodeData{
		{Name: "body", Children: []int{1}, Mesh: 0, Skin: 0, Scale: mgl32.Vec3{1, 1, 1}},
		{Name: "mover", Mesh: -1, Skin: -1, Scale: mgl32.Vec3{1, 1, 1}},
	}
	doc.SkinList = []model.SkinData{{
		Name:                "rig",
		Joints:              []int{1},
		InverseBindMatrices: []mgl32.Mat4{mgl32.Ident4()},
		Skeleton:            1,
	}}
	doc.AnimationList[0].Channels[0].Node = 1
	return doc
}

func jointMatrix(buf *gputest.Buffer, joint int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf.Data[(joint*16+i)*4:]))
	}
	return m
}

func TestUpdateAnimationMovesNodeHalfway(t *testing.T) {
	_, r := newTestRenderer(t)
	defer r.Release()

	m, err := r.LoadModel(skinnedSlidingDocument())
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	buf := m.Skins[0].Provider.Buffer(0).(*gputest.Buffer)
	loaded := buf.Writes

	r.UpdateAnimation(m, 0.5)

	node := m.Nodes[1]
	if node.Local.Translation.X() != 0.5 {
		t.Errorf("local x = %v, want 0.5", node.Local.Translation.X())
	}
	if node.Global.Translation.X() != 0.5 {
		t.Errorf("global x = %v, want 0.5", node.Global.Translation.X())
	}
	if buf.Writes != loaded {
		t.Errorf("joint buffer written before the frame: %d writes, want %d", buf.Writes, loaded)
	}

	ok, err := r.StartRender()
	if err != nil || !ok {
		t.Fatalf("StartRender = %v, %v", ok, err)
	}
	if buf.Writes != loaded+1 {
		t.Errorf("joint buffer writes = %d, want %d", buf.Writes, loaded+1)
	}
	if got := jointMatrix(buf, 0); !got.ApproxEqual(mgl32.Translate3D(0.5, 0, 0)) {
		t.Errorf("joint matrix = %v, want a translation of (0.5, 0, 0)", got)
	}
	if err := r.EndRender(); err != nil {
		t.Fatalf("EndRender: %v", err)
	}
}

func TestFrameRecordsDeferredPass(t *testing.T) {
	dev, r := newTestRenderer(t)
	defer r.Release()
	m, err := r.LoadModel(slidingDocument())
	if err != nil {
		t.Fatal(err)
	}

	ok, err := r.StartRender()
	if err != nil || !ok {
		t.Fatalf("StartRender = %v, %v", ok, err)
	}
	cb := r.scheduler.CurrentCommandBuffer().(*gputest.CommandBuffer)
	if err := r.DrawModel(m); err != nil {
		t.Fatalf("DrawModel: %v", err)
	}
	if err := r.EndRender(); err != nil {
		t.Fatalf("EndRender: %v", err)
	}

	names := cb.Names()
	index := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}
	begin, draw, next, light, end := index("begin-pass"), index("draw-indexed"), index("next-subpass"), index("draw"), index("end-pass")
	if !(begin == 0 && begin < draw && draw < next && next < light && light < end && end == len(names)-1) {
		t.Errorf("command order = %v", names)
	}
	if len(dev.Submits()) != 1 || len(dev.Presents()) != 1 {
		t.Errorf("submits %d presents %d", len(dev.Submits()), len(dev.Presents()))
	}
}

func TestDrawOutsideFrame(t *testing.T) {
	_, r := newTestRenderer(t)
	defer r.Release()
	m, _ := r.LoadModel(slidingDocument())
	if err := r.DrawModel(m); !errors.Is(err, ErrNotRendering) {
		t.Errorf("DrawModel = %v", err)
	}
	if err := r.EndRender(); !errors.Is(err, ErrNotRendering) {
		t.Errorf("EndRender = %v", err)
	}
}

func TestLoadModelAppendsToSharedBuffers(t *testing.T) {
	_, r := newTestRenderer(t)
	defer r.Release()

	first, err := r.LoadModel(slidingDocument())
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.LoadModel(slidingDocument())
	if err != nil {
		t.Fatal(err)
	}
	if p := first.Nodes[0].Mesh[0]; p.FirstIndex != 0 || p.VertexOffset != 0 {
		t.Errorf("first model primitive = %+v", p)
	}
	if p := second.Nodes[0].Mesh[0]; p.FirstIndex != 3 || p.VertexOffset != 3 {
		t.Errorf("second model primitive = %+v", p)
	}

	vertices := r.vertices.buf.(*gputest.Buffer)
	want := append(model.MarshalVertices(first.Vertices), model.MarshalVertices(second.Vertices)...)
	if !bytes.Equal(vertices.Data[:len(want)], want) {
		t.Error("vertex buffer does not hold both models back to back")
	}
	indices := r.indices.buf.(*gputest.Buffer)
	if !bytes.Equal(indices.Data[:24], append(model.MarshalIndices(first.Indices), model.MarshalIndices(second.Indices)...)) {
		t.Error("index buffer does not hold both models back to back")
	}
	if len(r.Models()) != 2 {
		t.Errorf("models = %d", len(r.Models()))
	}
}

func bigDocument(vertices int) *model.DocumentData {
	doc := slidingDocument()
	positions := make([]mgl32.Vec3, vertices)
	for i := range positions {
		positions[i] = mgl32.Vec3{float32(i), 0, 0}
	}
	doc.MeshList[0].Primitives[0] = model.PrimitiveData{Positions: positions, Material: 0}
	return doc
}

func TestGeometryBufferGrowsAndKeepsContents(t *testing.T) {
	dev, r := newTestRenderer(t)
	defer r.Release()

	first, err := r.LoadModel(bigDocument(900))
	if err != nil {
		t.Fatal(err)
	}
	idles := dev.WaitIdles()
	if _, err := r.LoadModel(bigDocument(900)); err != nil {
		t.Fatal(err)
	}
	if dev.WaitIdles() <= idles {
		t.Error("growing a buffer in use did not wait for the device")
	}
	vertices := r.vertices.buf.(*gputest.Buffer)
	if vertices.Size() < 1800*80 {
		t.Fatalf("vertex buffer size = %d", vertices.Size())
	}
	prefix := model.MarshalVertices(first.Vertices)
	if !bytes.Equal(vertices.Data[:len(prefix)], prefix) {
		t.Error("grown vertex buffer lost the first model")
	}
}

func TestSkinJointsUploadedAtLoad(t *testing.T) {
	_, r := newTestRenderer(t)
	defer r.Release()

	doc := slidingDocument()
	doc.AnimationList = nil
	doc.NodeList = []model.NodeData{
		{Name: "body", Children: []int{1}, Mesh: 0, Skin: 0, Scale: mgl32.Vec3{1, 1, 1}},
		{Name: "bone", Mesh: -1, Skin: -1, Scale: mgl32.Vec3{1, 1, 1}, Translation: mgl32.Vec3{1, 0, 0}},
	}
	doc.SkinList = []model.SkinData{{Name: "rig", Joints: []int{1}, Skeleton: 1}}

	m, err := r.LoadModel(doc)
	if err != nil {
		t.Fatal(err)
	}
	got := jointMatrix(m.Skins[0].Provider.Buffer(0).(*gputest.Buffer), 0)
	if !got.ApproxEqual(mgl32.Translate3D(1, 0, 0)) {
		t.Errorf("joint matrix = %v, want a translation of (1, 0, 0)", got)
	}
}

func TestFailedFrameStillRecordsRenderPass(t *testing.T) {
	dev, r := newTestRenderer(t)
	defer r.Release()
	if _, err := r.LoadModel(slidingDocument()); err != nil {
		t.Fatal(err)
	}

	cb := r.scheduler.CurrentCommandBuffer().(*gputest.CommandBuffer)
	dev.WriteError = errors.New("write failed")
	ok, err := r.StartRender()
	if ok || !errors.Is(err, frame.ErrFatal) {
		t.Fatalf("StartRender = %v, %v", ok, err)
	}

	names := cb.Names()
	want := []string{"begin-pass", "next-subpass", "end-pass"}
	if len(names) != len(want) {
		t.Fatalf("commands = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("commands = %v, want %v", names, want)
			break
		}
	}
	if len(dev.Presents()) != 1 {
		t.Errorf("presents = %d, want 1", len(dev.Presents()))
	}
	if r.scheduler.InFrame() {
		t.Error("scheduler still in a frame after the failed start")
	}
}

func TestBadImageFallsBackToDummy(t *testing.T) {
	_, r := newTestRenderer(t)
	defer r.Release()

	doc := slidingDocument()
	doc.ImageList = []model.Image{
		{Name: "good", Pixels: make([]byte, 16), Width: 2, Height: 2},
		{Name: "truncated", Pixels: make([]byte, 3), Width: 2, Height: 2},
	}
	m, err := r.LoadModel(doc)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if m.Textures[0] == nil || m.Textures[1] != nil {
		t.Errorf("textures = %v", m.Textures)
	}
}

func TestResizeRecreatesAtNextFrame(t *testing.T) {
	dev, r := newTestRenderer(t)
	defer r.Release()

	r.Resize(1024, 768)
	if len(dev.Recreations()) != 0 {
		t.Fatal("Resize recreated the swapchain immediately")
	}
	ok, err := r.StartRender()
	if err != nil || !ok {
		t.Fatalf("StartRender = %v, %v", ok, err)
	}
	if err := r.EndRender(); err != nil {
		t.Fatal(err)
	}
	if got := dev.Recreations(); len(got) != 1 || got[0] != (gpu.Extent{Width: 1024, Height: 768}) {
		t.Errorf("recreations = %v", got)
	}
	if r.gbuffer.Extent() != (gpu.Extent{Width: 1024, Height: 768}) {
		t.Errorf("gbuffer extent = %+v", r.gbuffer.Extent())
	}
}

func TestOutOfDateDropsFrame(t *testing.T) {
	dev, r := newTestRenderer(t)
	defer r.Release()
	dev.AcquireErrors = []error{gpu.ErrOutOfDate}

	if ok, err := r.StartRender(); ok || err != nil {
		t.Fatalf("StartRender = %v, %v, want a dropped frame", ok, err)
	}
	if ok, err := r.StartRender(); !ok || err != nil {
		t.Fatalf("StartRender after recreation = %v, %v", ok, err)
	}
	if err := r.EndRender(); err != nil {
		t.Fatal(err)
	}
}

func TestReleaseFreesEverything(t *testing.T) {
	dev, r := newTestRenderer(t, WithMSAA(MSAA4x), WithFramesInFlight(3))
	if _, err := r.LoadModel(slidingDocument()); err != nil {
		t.Fatal(err)
	}
	ok, _ := r.StartRender()
	if !ok {
		t.Fatal("no frame")
	}
	_ = r.EndRender()
	r.Release()
	r.Release()

	for _, object := range []string{"image", "sampler", "buffer", "renderpass", "framebuffer", "layout", "descriptorset", "pipeline", "semaphore", "commandbuffer"} {
		if n := dev.Live(object); n != 0 {
			t.Errorf("%d %s objects still live", n, object)
		}
	}
}

func TestSetLightsSkipsInvalidLights(t *testing.T) {
	_, r := newTestRenderer(t)
	defer r.Release()

	sun := light.Directional(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 1, 1}, 2)
	broken := light.Point(mgl32.Vec3{1, 1, 1}, mgl32.Vec3{1, 1, 1}, 1, 0)
	lamp := light.Point(mgl32.Vec3{0, 2, 0}, mgl32.Vec3{1, 0, 0}, 5, 10)
	r.SetLights([]light.Light{sun, broken, lamp}, [3]float32{0.1, 0.1, 0.1})

	if got := r.lightsUniform.Count[0]; got != 2 {
		t.Fatalf("light count = %d, want 2", got)
	}
	if r.lightsUniform.Lights[1].Position != [4]float32{0, 2, 0, 1} {
		t.Errorf("second packed light = %+v", r.lightsUniform.Lights[1])
	}
}
