package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/logger"
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"go.uber.org/zap"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger *zap.Logger

	// decodeWorkers bounds the number of images decoded in parallel.
	decodeWorkers int

	// maxTextureSize scales larger images down on decode, 0 keeps the source size.
	maxTextureSize uint32

	documentCache map[string]model.Document

	backend loaderBackend
}

// Loader reads scene documents from model files and caches them by path. The returned documents are
// handed to Renderer.LoadModel, which may be called any number of times per document.
type Loader interface {
	// Load imports a model file and caches the result.
	// If the document is already cached (by file path), the cached version is returned.
	// The backend is selected based on the file extension (.gltf/.glb → glTF backend).
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Document: the loaded and cached document
	//   - error: error if loading fails
	Load(path string) (model.Document, error)

	// LoadMeshOnly imports nodes, meshes, materials and images, skipping skins and animations.
	// The result is cached separately from Load.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Document: the static document
	//   - error: error if loading fails
	LoadMeshOnly(path string) (model.Document, error)

	// LoadReader imports a glTF JSON or GLB stream and caches it under name. Buffers and images must be
	// embedded, or relative to dir when dir is not empty.
	//
	// Parameters:
	//   - name: the cache key and document name
	//   - r: the reader providing model data
	//   - dir: the directory external resources are resolved against
	//
	// Returns:
	//   - model.Document: the loaded document
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, dir string) (model.Document, error)

	// Get retrieves a cached document by name. Returns nil if not found.
	Get(name string) model.Document

	// Documents returns a copy of the document cache.
	//
	// Returns:
	//   - map[string]model.Document: all cached documents keyed by name
	Documents() map[string]model.Document
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		logger:        logger.Named("loader"),
		decodeWorkers: 4,
		documentCache: make(map[string]model.Document),
	}
	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend(l.logger, l.decodeWorkers, l.maxTextureSize)
	}
	return l
}

func (l *loader) Load(path string) (model.Document, error) {
	return l.load(path, path, false)
}

func (l *loader) LoadMeshOnly(path string) (model.Document, error) {
	return l.load(path+"#mesh", path, true)
}

func (l *loader) load(key, path string, meshOnly bool) (model.Document, error) {
	if cached := l.Get(key); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	var doc *model.DocumentData
	if meshOnly {
		doc, err = backend.LoadMeshOnly(path)
	} else {
		doc, err = backend.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	l.logger.Info("loaded model",
		zap.String("path", path),
		zap.Int("nodes", len(doc.NodeList)),
		zap.Int("meshes", len(doc.MeshList)),
		zap.Int("images", len(doc.ImageList)),
		zap.Int("animations", len(doc.AnimationList)),
	)

	l.mu.Lock()
	l.documentCache[key] = doc
	l.mu.Unlock()
	return doc, nil
}

func (l *loader) LoadReader(name string, r io.Reader, dir string) (model.Document, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	doc, err := l.backend.LoadReader(name, r, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}

	l.mu.Lock()
	l.documentCache[name] = doc
	l.mu.Unlock()
	return doc, nil
}

func (l *loader) Get(name string) model.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.documentCache[name]
}

func (l *loader) Documents() map[string]model.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]model.Document, len(l.documentCache))
	for k, v := range l.documentCache {
		result[k] = v
	}
	return result
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
