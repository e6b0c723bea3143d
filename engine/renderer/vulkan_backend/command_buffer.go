package vulkan_backend

import (
	"errors"
	"math"
	"unsafe"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
	vk "github.com/goki/vulkan"
)

type commandBuffer struct {
	device *device
	label  string
	handle vk.CommandBuffer
	// fence is signalled when the last submission of this buffer finishes. It starts signalled.
	fence vk.Fence

	pipeline *pipeline
	err      error
}

var _ gpu.CommandBuffer = &commandBuffer{}

func (c *commandBuffer) Label() string {
	return c.label
}

// Reset waits for the previous submission of the buffer and discards its commands.
func (c *commandBuffer) Reset() error {
	if err := result(vk.WaitForFences(c.device.device, 1, []vk.Fence{c.fence}, vk.True, math.MaxUint64), "failed to wait for "+c.label); err != nil {
		return err
	}
	c.pipeline = nil
	c.err = nil
	return result(vk.ResetCommandBuffer(c.handle, 0), "failed to reset "+c.label)
}

func (c *commandBuffer) Begin() error {
	info := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return result(vk.BeginCommandBuffer(c.handle, info), "failed to begin "+c.label)
}

// End finishes recording. Errors hit while recording, such as foreign objects, are reported here.
func (c *commandBuffer) End() error {
	if err := result(vk.EndCommandBuffer(c.handle), "failed to end "+c.label); err != nil {
		return err
	}
	return c.err
}

func (c *commandBuffer) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// BeginRenderPass begins the pass and sets a viewport and scissor covering the whole extent.
func (c *commandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) {
	rp, ok := info.RenderPass.(*renderPass)
	if !ok {
		c.fail(errors.New("render pass was not created by this device"))
		return
	}
	fb, ok := info.Framebuffer.(*framebuffer)
	if !ok {
		c.fail(errors.New("framebuffer was not created by this device"))
		return
	}

	clears := make([]vk.ClearValue, 0, len(rp.desc.Attachments))
	for i, a := range rp.desc.Attachments {
		var value gpu.ClearValue
		if i < len(info.ClearValues) {
			value = info.ClearValues[i]
		}
		if a.Format.IsDepth() {
			clears = append(clears, vk.NewClearDepthStencil(value.Depth, 0))
		} else {
			clears = append(clears, vk.NewClearValue(value.Color[:]))
		}
	}

	extent := vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height}
	begin := &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      rp.handle,
		Framebuffer:     fb.handle,
		RenderArea:      vk.Rect2D{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: extent},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(c.handle, begin, vk.SubpassContentsInline)

	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		Width:    float32(info.Extent.Width),
		Height:   float32(info.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{Offset: vk.Offset2D{X: 0, Y: 0}, Extent: extent}})
}

func (c *commandBuffer) NextSubpass() {
	vk.CmdNextSubpass(c.handle, vk.SubpassContentsInline)
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	pl, ok := p.(*pipeline)
	if !ok {
		c.fail(errors.New("pipeline was not created by this device"))
		return
	}
	c.pipeline = pl
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, pl.handle)
}

func (c *commandBuffer) BindDescriptorSet(index uint32, set gpu.DescriptorSet) {
	s, ok := set.(*descriptorSet)
	if !ok {
		c.fail(errors.New("descriptor set was not created by this device"))
		return
	}
	if c.pipeline == nil {
		c.fail(errors.New("descriptor set bound before a pipeline"))
		return
	}
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, c.pipeline.layout, index, 1, []vk.DescriptorSet{s.handle}, 0, nil)
}

func (c *commandBuffer) BindVertexBuffer(binding uint32, buf gpu.Buffer, offset uint64) {
	b, ok := buf.(*buffer)
	if !ok {
		c.fail(errors.New("vertex buffer was not created by this device"))
		return
	}
	vk.CmdBindVertexBuffers(c.handle, binding, 1, []vk.Buffer{b.handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *commandBuffer) BindIndexBuffer(buf gpu.Buffer, offset uint64) {
	b, ok := buf.(*buffer)
	if !ok {
		c.fail(errors.New("index buffer was not created by this device"))
		return
	}
	vk.CmdBindIndexBuffer(c.handle, b.handle, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (c *commandBuffer) PushConstants(stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	if c.pipeline == nil {
		c.fail(errors.New("push constants set before a pipeline"))
		return
	}
	vk.CmdPushConstants(c.handle, c.pipeline.layout, shaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

// Release waits for the buffer's last submission before freeing it.
func (c *commandBuffer) Release() {
	if c.fence == vk.NullFence {
		return
	}
	vk.WaitForFences(c.device.device, 1, []vk.Fence{c.fence}, vk.True, math.MaxUint64)
	vk.DestroyFence(c.device.device, c.fence, nil)
	c.fence = vk.NullFence
	vk.FreeCommandBuffers(c.device.device, c.device.commandPool, 1, []vk.CommandBuffer{c.handle})
	c.handle = nil
}
