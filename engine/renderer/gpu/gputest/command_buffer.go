package gputest

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

// Command is one recorded command.
type Command struct {
	// Name is the command name, such as "draw-indexed" or "bind-set".
	Name string
	// Label is the label of the bound object, when the command binds one.
	Label string
	// Index is the set index or vertex binding for bind commands.
	Index uint32

	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	// Data is a copy of the push constant bytes.
	Data []byte
}

// CommandBuffer is a recording implementation of gpu.CommandBuffer.
type CommandBuffer struct {
	object
	recording bool
	// Commands holds the commands recorded since the last Reset.
	Commands []Command
	// Resets counts Reset calls.
	Resets int
	// Submitted counts submissions of this buffer.
	Submitted int
}

var _ gpu.CommandBuffer = &CommandBuffer{}

// Names returns the names of the recorded commands in order.
func (c *CommandBuffer) Names() []string {
	names := make([]string, len(c.Commands))
	for i, cmd := range c.Commands {
		names[i] = cmd.Name
	}
	return names
}

// Recording reports whether Begin was called without a matching End.
func (c *CommandBuffer) Recording() bool {
	return c.recording
}

func (c *CommandBuffer) add(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) Reset() error {
	c.Commands = nil
	c.recording = false
	c.Resets++
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return fmt.Errorf("gputest: command buffer %s already recording", c.label)
	}
	c.recording = true
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return fmt.Errorf("gputest: command buffer %s not recording", c.label)
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) BeginRenderPass(info gpu.RenderPassBeginInfo) {
	label := ""
	if info.RenderPass != nil {
		label = info.RenderPass.Label()
	}
	c.add(Command{Name: "begin-pass", Label: label})
}

func (c *CommandBuffer) NextSubpass() {
	c.add(Command{Name: "next-subpass"})
}

func (c *CommandBuffer) EndRenderPass() {
	c.add(Command{Name: "end-pass"})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	c.add(Command{Name: "bind-pipeline", Label: p.Label()})
}

func (c *CommandBuffer) BindDescriptorSet(index uint32, set gpu.DescriptorSet) {
	c.add(Command{Name: "bind-set", Label: set.Label(), Index: index})
}

func (c *CommandBuffer) BindVertexBuffer(binding uint32, buf gpu.Buffer, offset uint64) {
	c.add(Command{Name: "bind-vertex", Label: buf.Label(), Index: binding})
}

func (c *CommandBuffer) BindIndexBuffer(buf gpu.Buffer, offset uint64) {
	c.add(Command{Name: "bind-index", Label: buf.Label()})
}

func (c *CommandBuffer) PushConstants(stages gpu.ShaderStage, offset uint32, data []byte) {
	c.add(Command{Name: "push-constants", Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.add(Command{
		Name:          "draw-indexed",
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
	})
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.add(Command{Name: "draw", IndexCount: vertexCount, InstanceCount: instanceCount})
}
