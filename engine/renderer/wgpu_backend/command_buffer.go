package wgpu_backend

import (
	"errors"
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// pushSlotSize is the stride of one push constant update, the minimum uniform offset alignment.
	pushSlotSize = 256
	// pushChunkSlots is the number of push constant updates one uniform buffer holds.
	pushChunkSlots = 1024
)

// pushChunk is one uniform buffer of push constant slots with the bind group addressing it.
type pushChunk struct {
	buffer  *wgpu.Buffer
	group   *wgpu.BindGroup
	staging []byte
	used    int
}

func (c *pushChunk) release() {
	if c.group != nil {
		c.group.Release()
	}
	if c.buffer != nil {
		c.buffer.Release()
	}
}

type commandBuffer struct {
	device *device
	label  string

	encoder  *wgpu.CommandEncoder
	finished *wgpu.CommandBuffer
	pass     *wgpu.RenderPassEncoder

	renderPass  *renderPass
	framebuffer *framebuffer
	clear       []gpu.ClearValue
	subpass     int
	pipeline    *pipeline

	push []*pushChunk
	// err holds the first failure seen while recording. End returns it.
	err error
}

var _ gpu.CommandBuffer = &commandBuffer{}

func (c *commandBuffer) Label() string {
	return c.label
}

// Reset drops the previous recording. WebGPU queues keep submissions in order, so nothing needs to wait.
func (c *commandBuffer) Reset() error {
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	if c.finished != nil {
		c.finished.Release()
		c.finished = nil
	}
	c.pass = nil
	c.pipeline = nil
	c.err = nil
	for _, chunk := range c.push {
		chunk.used = 0
	}
	return nil
}

func (c *commandBuffer) Begin() error {
	if c.encoder != nil {
		return fmt.Errorf("command buffer %s is already recording", c.label)
	}
	encoder, err := c.device.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder for %s: %w", c.label, err)
	}
	c.encoder = encoder
	return nil
}

// End uploads the push constant slots used by the recording and finishes the encoder. The uploads are
// queued before the submission, so the recorded draws see them.
func (c *commandBuffer) End() error {
	if c.encoder == nil {
		return fmt.Errorf("command buffer %s is not recording", c.label)
	}
	defer func() {
		c.encoder.Release()
		c.encoder = nil
	}()
	if c.pass != nil {
		return fmt.Errorf("command buffer %s ended inside a render pass", c.label)
	}
	if c.err != nil {
		return c.err
	}
	for _, chunk := range c.push {
		if chunk.used > 0 {
			c.device.queue.WriteBuffer(chunk.buffer, 0, chunk.staging[:chunk.used*pushSlotSize])
		}
	}
	finished, err := c.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish command buffer %s: %w", c.label, err)
	}
	c.finished = finished
	return nil
}

func (c *commandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) {
	rp, ok := info.RenderPass.(*renderPass)
	fb, fbOK := info.Framebuffer.(*framebuffer)
	if !ok || !fbOK {
		c.fail(errors.New("render pass or framebuffer was not created by this device"))
		return
	}
	c.renderPass = rp
	c.framebuffer = fb
	c.clear = info.ClearValues
	c.subpass = 0
	c.beginSubpass()
}

// beginSubpass starts the WebGPU render pass standing in for the current subpass.
func (c *commandBuffer) beginSubpass() {
	desc := c.renderPass.desc
	sp := desc.Subpasses[c.subpass]
	uses := c.renderPass.uses

	colors := make([]wgpu.RenderPassColorAttachment, 0, len(sp.ColorAttachments))
	for i, index := range sp.ColorAttachments {
		load, store := uses.ops(desc, index, c.subpass)
		attachment := wgpu.RenderPassColorAttachment{
			View:    textureView(c.framebuffer.attachments[index]),
			LoadOp:  load,
			StoreOp: store,
		}
		if index < len(c.clear) {
			v := c.clear[index].Color
			attachment.ClearValue = wgpu.Color{R: float64(v[0]), G: float64(v[1]), B: float64(v[2]), A: float64(v[3])}
		}
		if i < len(sp.ResolveAttachments) && sp.ResolveAttachments[i] != gpu.AttachmentUnused {
			attachment.ResolveTarget = textureView(c.framebuffer.attachments[sp.ResolveAttachments[i]])
		}
		if attachment.View == nil {
			c.fail(fmt.Errorf("attachment %d of %s has no view", index, desc.Label))
			return
		}
		colors = append(colors, attachment)
	}

	passDesc := &wgpu.RenderPassDescriptor{ColorAttachments: colors}
	if sp.DepthAttachment != gpu.AttachmentUnused {
		load, store := uses.ops(desc, sp.DepthAttachment, c.subpass)
		depth := &wgpu.RenderPassDepthStencilAttachment{
			View:            textureView(c.framebuffer.attachments[sp.DepthAttachment]),
			DepthLoadOp:     load,
			DepthStoreOp:    store,
			DepthClearValue: 1.0,
		}
		if sp.DepthAttachment < len(c.clear) {
			depth.DepthClearValue = c.clear[sp.DepthAttachment].Depth
		}
		passDesc.DepthStencilAttachment = depth
	}
	c.pass = c.encoder.BeginRenderPass(passDesc)
	c.pipeline = nil
}

func (c *commandBuffer) NextSubpass() {
	if c.pass == nil {
		return
	}
	c.pass.End()
	c.pass = nil
	if c.subpass+1 >= len(c.renderPass.desc.Subpasses) {
		c.fail(fmt.Errorf("render pass %s has no subpass %d", c.renderPass.desc.Label, c.subpass+1))
		return
	}
	c.subpass++
	c.beginSubpass()
}

func (c *commandBuffer) EndRenderPass() {
	if c.pass == nil {
		return
	}
	c.pass.End()
	c.pass = nil
	c.renderPass = nil
	c.framebuffer = nil
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	pp, ok := p.(*pipeline)
	if c.pass == nil || !ok {
		return
	}
	c.pass.SetPipeline(pp.pipeline)
	c.pipeline = pp
}

func (c *commandBuffer) BindDescriptorSet(index uint32, set gpu.DescriptorSet) {
	s, ok := set.(*descriptorSet)
	if c.pass == nil || !ok {
		return
	}
	c.pass.SetBindGroup(index, s.group, nil)
}

func (c *commandBuffer) BindVertexBuffer(binding uint32, buf gpu.Buffer, offset uint64) {
	b, ok := buf.(*buffer)
	if c.pass == nil || !ok {
		return
	}
	c.pass.SetVertexBuffer(binding, b.buffer, offset, wgpu.WholeSize)
}

func (c *commandBuffer) BindIndexBuffer(buf gpu.Buffer, offset uint64) {
	b, ok := buf.(*buffer)
	if c.pass == nil || !ok {
		return
	}
	c.pass.SetIndexBuffer(b.buffer, wgpu.IndexFormatUint32, offset, wgpu.WholeSize)
}

// PushConstants copies data into the next free push constant slot and binds the slot by dynamic offset
// at the bound pipeline's push constant group.
func (c *commandBuffer) PushConstants(stages gpu.ShaderStage, offset uint32, data []byte) {
	if c.pass == nil || c.pipeline == nil || c.pipeline.pushGroup < 0 {
		return
	}
	if int(offset)+len(data) > pushSlotSize {
		c.fail(fmt.Errorf("push constant update of %d bytes at %d exceeds %d", len(data), offset, pushSlotSize))
		return
	}
	chunk, err := c.freeChunk()
	if err != nil {
		c.fail(err)
		return
	}
	slot := chunk.used * pushSlotSize
	copy(chunk.staging[slot+int(offset):], data)
	chunk.used++
	c.pass.SetBindGroup(uint32(c.pipeline.pushGroup), chunk.group, []uint32{uint32(slot)})
}

// freeChunk returns a chunk with an unused slot, allocating a new one when every chunk is full.
func (c *commandBuffer) freeChunk() (*pushChunk, error) {
	for _, chunk := range c.push {
		if chunk.used < pushChunkSlots {
			return chunk, nil
		}
	}

	d := c.device
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("%s push constants %d", c.label, len(c.push)),
		Size:  pushSlotSize * pushChunkSlots,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create push constant buffer: %w", err)
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  fmt.Sprintf("%s push constants %d", c.label, len(c.push)),
		Layout: d.pushLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    pushSlotSize,
		}},
	})
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("failed to create push constant bind group: %w", err)
	}
	chunk := &pushChunk{buffer: buf, group: group, staging: make([]byte, pushSlotSize*pushChunkSlots)}
	c.push = append(c.push, chunk)
	return chunk, nil
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if c.pass == nil {
		return
	}
	c.pass.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if c.pass == nil {
		return
	}
	c.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *commandBuffer) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *commandBuffer) Release() {
	_ = c.Reset()
	for _, chunk := range c.push {
		chunk.release()
	}
	c.push = nil
}
