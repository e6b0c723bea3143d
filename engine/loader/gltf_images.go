package loader

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Owlkaline/Maat-Graphics-sub000/common"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// images decodes every document image to RGBA8 on a worker pool. An image that cannot be read or
// decoded is replaced by the white pixel so material indices stay valid.
//
// Parameters:
//   - workers: the maximum number of parallel decodes
//   - maxSize: the largest decoded side, or 0
//
// Returns:
//   - []model.Image: one decoded image per document image
func (c *gltfConverter) images(workers int, maxSize uint32) []model.Image {
	out := make([]model.Image, len(c.doc.Images))
	if len(out) == 0 {
		return out
	}

	pool := worker.NewDynamicWorkerPool(min(max(workers, 1), len(out)), len(out), 1*time.Second)
	defer pool.Stop()

	// The pool's own Wait blocks until workers idle out, so a WaitGroup marks the end of the batch.
	var wg sync.WaitGroup
	for i, img := range c.doc.Images {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				name := img.Name
				if name == "" {
					name = fmt.Sprintf("image %d", i)
				}
				decoded, err := c.decodeImage(name, img, maxSize)
				if err != nil {
					c.logger.Warn("using white pixel for undecodable image",
						zap.Int("image", i), zap.String("mime", img.MimeType), zap.Error(err))
					decoded = common.WhitePixel()
				}
				out[i] = decoded
				return nil, nil
			},
		})
	}
	wg.Wait()
	return out
}

func (c *gltfConverter) decodeImage(name string, img *gltf.Image, maxSize uint32) (model.Image, error) {
	data, err := c.imageBytes(img)
	if err != nil {
		return model.Image{}, err
	}
	return common.DecodeImageBytes(name, data, maxSize)
}

// imageBytes returns the encoded bytes of an image stored in a buffer view, a data URI or a file
// next to the document.
func (c *gltfConverter) imageBytes(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		index := *img.BufferView
		if index < 0 || index >= len(c.doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", index)
		}
		view := c.doc.BufferViews[index]
		if view.Buffer < 0 || view.Buffer >= len(c.doc.Buffers) {
			return nil, fmt.Errorf("buffer %d out of range", view.Buffer)
		}
		data := c.doc.Buffers[view.Buffer].Data
		if view.ByteOffset+view.ByteLength > len(data) {
			return nil, fmt.Errorf("buffer view %d exceeds its buffer", index)
		}
		return data[view.ByteOffset : view.ByteOffset+view.ByteLength], nil
	}
	if img.IsEmbeddedResource() {
		return img.MarshalData()
	}
	if img.URI == "" {
		return nil, fmt.Errorf("image has neither a buffer view nor a URI")
	}
	if c.dir == "" {
		return nil, fmt.Errorf("external image %q without a base directory", img.URI)
	}
	uri, err := url.PathUnescape(img.URI)
	if err != nil {
		uri = img.URI
	}
	return os.ReadFile(filepath.Join(c.dir, filepath.FromSlash(uri)))
}
