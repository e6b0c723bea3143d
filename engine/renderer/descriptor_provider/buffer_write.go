package descriptor_provider

import (
	"fmt"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/renderer/gpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a Provider at a given byte offset.
type BufferWrite struct {
	Provider Provider
	Binding  int
	Offset   uint64
	Data     []byte
}

// WriteBuffers writes all staged buffer writes through the device. Writes whose provider has no
// buffer at the target binding are skipped.
//
// Parameters:
//   - device: the device to write through
//   - writes: the staged writes, applied in order
//
// Returns:
//   - error: the first write error, wrapped with the provider label
func WriteBuffers(device gpu.Device, writes []BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		if err := device.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("failed to write %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}
