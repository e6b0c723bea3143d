package loader

import (
	"errors"
	"io"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
)

// ErrUnsupportedFormat is returned for model files no backend reads.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// loaderBackend defines the generic interface for loading scene documents from files or streams.
// Concrete implementations (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load performs a full import from the given file path: nodes, meshes, materials, images, skins
	// and animations.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *model.DocumentData: the imported document
	//   - error: error if loading fails
	Load(path string) (*model.DocumentData, error)

	// LoadMeshOnly imports the document without skins and animations.
	LoadMeshOnly(path string) (*model.DocumentData, error)

	// LoadReader imports a document from a stream. External resources resolve against dir.
	//
	// Parameters:
	//   - name: the document name
	//   - r: the reader providing model data
	//   - dir: the directory external resources are resolved against, or empty
	//
	// Returns:
	//   - *model.DocumentData: the imported document
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, dir string) (*model.DocumentData, error)
}
