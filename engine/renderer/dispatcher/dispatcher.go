package dispatcher

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gbuffer"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/pipeline"
	"go.uber.org/zap"
)

// ErrNoGeometry is returned when drawing before SetGeometry provided the global vertex and index buffers.
var ErrNoGeometry = errors.New("dispatcher has no geometry buffers")

// instanceBatch is the instance payload staged for one model during a frame.
type instanceBatch struct {
	model     *model.Model
	instances []model.GPUInstance
}

// dispatcher is the implementation of the Dispatcher interface.
type dispatcher struct {
	device  gpu.Device
	gbuffer gbuffer.GBuffer
	logger  *zap.Logger

	vertices gpu.Buffer
	indices  gpu.Buffer
	camera   gpu.DescriptorSet
	noSkin   gpu.DescriptorSet

	// per-frame instance buffers, grown on demand
	instanceBuffers []gpu.Buffer
	batches         []*instanceBatch
	batchIndex      map[*model.Model]int

	// bound state inside the current geometry subpass
	bound      string
	modelBytes []byte
	skin       gpu.DescriptorSet
}

// Dispatcher records the geometry subpass: it walks a model's node tree and issues one indexed draw per
// primitive against the shared global vertex and index buffers.
//
// Set 0 holds the camera, set 1 the joint matrices of the node's skin (or the identity dummy) and set 2
// the primitive's material. The node's global matrix travels as a 64 byte push constant.
type Dispatcher interface {
	// SetGeometry sets the global vertex and index buffers every model's primitives index into.
	//
	// Parameters:
	//   - vertices: the vertex buffer bound at vertex binding 0
	//   - indices: the uint32 index buffer
	SetGeometry(vertices, indices gpu.Buffer)

	// SetGlobals sets the descriptor sets shared by every draw.
	//
	// Parameters:
	//   - camera: the camera set bound at set 0
	//   - noSkin: the dummy joint set bound at set 1 for nodes without a skin
	SetGlobals(camera, noSkin gpu.DescriptorSet)

	// Begin prepares cb for geometry draws. It must be called inside subpass 0 of the G-buffer render pass.
	//
	// Parameters:
	//   - cb: the command buffer being recorded
	//
	// Returns:
	//   - error: ErrNoGeometry if SetGeometry has not provided buffers
	Begin(cb gpu.CommandBuffer) error

	// DrawModel draws every node of m that carries primitives, depth-first from each root.
	//
	// Parameters:
	//   - cb: the command buffer being recorded
	//   - m: the model to draw
	DrawModel(cb gpu.CommandBuffer, m *model.Model)

	// DrawMesh draws a single node of m without descending into its children.
	//
	// Parameters:
	//   - cb: the command buffer being recorded
	//   - m: the model holding the node
	//   - nodeIndex: the node to draw
	//
	// Returns:
	//   - error: an error if nodeIndex is out of range
	DrawMesh(cb gpu.CommandBuffer, m *model.Model, nodeIndex int) error

	// DrawInstanced stages one instance of m for the next FlushInstanced.
	//
	// Parameters:
	//   - m: the model to draw
	//   - instance: the per-instance payload
	DrawInstanced(m *model.Model, instance model.GPUInstance)

	// FlushInstanced uploads the staged instances into the frame's instance buffer, issues one
	// instanced draw per primitive of each staged model and clears the staging.
	//
	// Parameters:
	//   - cb: the command buffer being recorded
	//   - frame: the frame-in-flight slot the instance buffer belongs to
	//
	// Returns:
	//   - error: an error if the instance buffer could not be grown or written
	FlushInstanced(cb gpu.CommandBuffer, frame int) error

	// Staged returns the number of instances waiting for FlushInstanced.
	Staged() int

	// Release frees the instance buffers.
	Release()
}

var _ Dispatcher = &dispatcher{}

// NewDispatcher creates a Dispatcher drawing with the pipelines of g.
//
// Parameters:
//   - device: the device instance buffers are created on
//   - g: the G-buffer providing the geometry pipelines
//   - framesInFlight: the number of per-frame instance buffers
//   - options: builder options
//
// Returns:
//   - Dispatcher: the dispatcher
func NewDispatcher(device gpu.Device, g gbuffer.GBuffer, framesInFlight int, options ...DispatcherBuilderOption) Dispatcher {
	d := &dispatcher{
		device:          device,
		gbuffer:         g,
		logger:          zap.NewNop(),
		instanceBuffers: make([]gpu.Buffer, max(1, framesInFlight)),
		batchIndex:      make(map[*model.Model]int),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *dispatcher) SetGeometry(vertices, indices gpu.Buffer) {
	d.vertices = vertices
	d.indices = indices
}

func (d *dispatcher) SetGlobals(camera, noSkin gpu.DescriptorSet) {
	d.camera = camera
	d.noSkin = noSkin
}

func (d *dispatcher) Begin(cb gpu.CommandBuffer) error {
	if d.vertices == nil || d.indices == nil {
		return ErrNoGeometry
	}
	d.bound = ""
	d.modelBytes = nil
	d.skin = nil
	cb.BindVertexBuffer(0, d.vertices, 0)
	cb.BindIndexBuffer(d.indices, 0)
	d.bindPipeline(cb, pipeline.KeyGeometryCullBack)
	return nil
}

// bindPipeline switches to the pipeline under key. After a switch the camera set, the node's push
// constants and the node's skin set are bound again.
func (d *dispatcher) bindPipeline(cb gpu.CommandBuffer, key string) bool {
	if d.bound == key {
		return true
	}
	p := d.gbuffer.Pipeline(key)
	if p == nil || p.GPU() == nil {
		d.logger.Warn("pipeline not available", zap.String("pipeline", key))
		return false
	}
	cb.BindPipeline(p.GPU())
	d.bound = key
	if d.camera != nil {
		cb.BindDescriptorSet(gbuffer.SetCamera, d.camera)
	}
	if d.modelBytes != nil {
		cb.PushConstants(gpu.ShaderStageVertex, 0, d.modelBytes)
	}
	if d.skin != nil {
		cb.BindDescriptorSet(gbuffer.SetSkin, d.skin)
	}
	return true
}

func (d *dispatcher) skinSet(m *model.Model, node *model.Node) gpu.DescriptorSet {
	if node.Skin >= 0 && node.Skin < len(m.Skins) {
		if p := m.Skins[node.Skin].Provider; p != nil && p.Set() != nil {
			return p.Set()
		}
	}
	return d.noSkin
}

// bindNode pushes the node's global matrix and binds its skin set.
func (d *dispatcher) bindNode(cb gpu.CommandBuffer, m *model.Model, node *model.Node) {
	d.modelBytes = common.Mat4Bytes(node.GlobalMatrix())
	d.skin = d.skinSet(m, node)
	cb.PushConstants(gpu.ShaderStageVertex, 0, d.modelBytes)
	if d.skin != nil {
		cb.BindDescriptorSet(gbuffer.SetSkin, d.skin)
	}
}

// drawNode issues the draws of one node. A zero fixedPipeline means each primitive selects the
// pipeline of its material.
func (d *dispatcher) drawNode(cb gpu.CommandBuffer, m *model.Model, node *model.Node, instances, firstInstance uint32, fixedPipeline string) {
	if len(node.Mesh) == 0 {
		return
	}
	d.bindNode(cb, m, node)
	for _, prim := range node.Mesh {
		if prim.IndexCount == 0 {
			continue
		}
		if prim.Material < 0 || prim.Material >= len(m.Materials) {
			continue
		}
		mat := m.Materials[prim.Material]
		set := mat.Set()
		if set == nil {
			continue
		}
		key := fixedPipeline
		if key == "" {
			key = mat.Pipeline()
		}
		if !d.bindPipeline(cb, key) {
			continue
		}
		cb.BindDescriptorSet(gbuffer.SetMaterial, set)
		cb.DrawIndexed(prim.IndexCount, instances, prim.FirstIndex, prim.VertexOffset, firstInstance)
	}
}

func (d *dispatcher) walk(cb gpu.CommandBuffer, m *model.Model, index int, instances, firstInstance uint32, fixedPipeline string) {
	node := &m.Nodes[index]
	d.drawNode(cb, m, node, instances, firstInstance, fixedPipeline)
	for _, child := range node.Children {
		d.walk(cb, m, child, instances, firstInstance, fixedPipeline)
	}
}

func (d *dispatcher) DrawModel(cb gpu.CommandBuffer, m *model.Model) {
	if m == nil || m.Released() {
		return
	}
	for _, root := range m.Roots() {
		d.walk(cb, m, root, 1, 0, "")
	}
}

func (d *dispatcher) DrawMesh(cb gpu.CommandBuffer, m *model.Model, nodeIndex int) error {
	if m == nil || nodeIndex < 0 || nodeIndex >= len(m.Nodes) {
		return fmt.Errorf("node %d out of range", nodeIndex)
	}
	d.drawNode(cb, m, &m.Nodes[nodeIndex], 1, 0, "")
	return nil
}

func (d *dispatcher) DrawInstanced(m *model.Model, instance model.GPUInstance) {
	if m == nil {
		return
	}
	i, ok := d.batchIndex[m]
	if !ok {
		i = len(d.batches)
		d.batchIndex[m] = i
		d.batches = append(d.batches, &instanceBatch{model: m})
	}
	d.batches[i].instances = append(d.batches[i].instances, instance)
}

func (d *dispatcher) Staged() int {
	n := 0
	for _, b := range d.batches {
		n += len(b.instances)
	}
	return n
}

// instanceBuffer returns the frame's instance buffer, recreating it when it is smaller than size.
func (d *dispatcher) instanceBuffer(frame int, size uint64) (gpu.Buffer, error) {
	frame %= len(d.instanceBuffers)
	buf := d.instanceBuffers[frame]
	if buf != nil && buf.Size() >= size {
		return buf, nil
	}
	if buf != nil {
		buf.Release()
		d.instanceBuffers[frame] = nil
	}
	capacity := uint64(64 * (&model.GPUInstance{}).Size())
	for capacity < size {
		capacity *= 2
	}
	buf, err := d.device.CreateBuffer(gpu.BufferDescriptor{
		Label: fmt.Sprintf("instances %d", frame),
		Size:  capacity,
		Usage: gpu.BufferUsageVertex | gpu.BufferUsageTransferDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create instance buffer: %w", err)
	}
	d.instanceBuffers[frame] = buf
	return buf, nil
}

func (d *dispatcher) FlushInstanced(cb gpu.CommandBuffer, frame int) error {
	defer d.clearStaging()

	total := d.Staged()
	if total == 0 {
		return nil
	}
	stride := uint64((&model.GPUInstance{}).Size())
	buf, err := d.instanceBuffer(frame, uint64(total)*stride)
	if err != nil {
		return err
	}

	var first uint32
	for _, batch := range d.batches {
		m := batch.model
		count := uint32(len(batch.instances))
		if m.Released() || count == 0 {
			continue
		}
		offset := uint64(first) * stride
		if err := d.device.WriteBuffer(buf, offset, model.MarshalInstances(batch.instances)); err != nil {
			return fmt.Errorf("failed to write instances of %s: %w", m.Name(), err)
		}
		cb.BindVertexBuffer(1, buf, offset)
		for _, root := range m.Roots() {
			d.walk(cb, m, root, count, 0, pipeline.KeyGeometryInstanced)
		}
		first += count
	}
	return nil
}

func (d *dispatcher) clearStaging() {
	d.batches = d.batches[:0]
	clear(d.batchIndex)
}

func (d *dispatcher) Release() {
	for i, buf := range d.instanceBuffers {
		if buf != nil {
			buf.Release()
			d.instanceBuffers[i] = nil
		}
	}
	d.clearStaging()
}
