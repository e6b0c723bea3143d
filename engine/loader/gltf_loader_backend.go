package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// gltfLoaderBackendImpl is the implementation of gltfLoaderBackend.
type gltfLoaderBackendImpl struct {
	logger         *zap.Logger
	decodeWorkers  int
	maxTextureSize uint32
}

// gltfLoaderBackend is a loaderBackend implementation for glTF/GLB files.
// Parsing and accessor decoding are done by qmuntal/gltf; this backend maps the result onto model data.
type gltfLoaderBackend interface {
	loaderBackend
}

var _ gltfLoaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a new glTF loader backend.
//
// Parameters:
//   - logger: receives warnings for skipped asset data
//   - decodeWorkers: the parallel image decode limit
//   - maxTextureSize: the largest decoded image side, or 0
//
// Returns:
//   - gltfLoaderBackend: the loader backend for glTF/GLB files
func newGLTFLoaderBackend(logger *zap.Logger, decodeWorkers int, maxTextureSize uint32) gltfLoaderBackend {
	return &gltfLoaderBackendImpl{
		logger:         logger,
		decodeWorkers:  decodeWorkers,
		maxTextureSize: maxTextureSize,
	}
}

func (b *gltfLoaderBackendImpl) Load(path string) (*model.DocumentData, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return b.convert(documentName(doc, path), doc, filepath.Dir(path), false)
}

func (b *gltfLoaderBackendImpl) LoadMeshOnly(path string) (*model.DocumentData, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return b.convert(documentName(doc, path), doc, filepath.Dir(path), true)
}

func (b *gltfLoaderBackendImpl) LoadReader(name string, r io.Reader, dir string) (*model.DocumentData, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return b.convert(name, doc, dir, false)
}

func (b *gltfLoaderBackendImpl) convert(name string, doc *gltf.Document, dir string, meshOnly bool) (*model.DocumentData, error) {
	c := &gltfConverter{
		doc:    doc,
		dir:    dir,
		logger: b.logger.With(zap.String("model", name)),
	}

	out := &model.DocumentData{
		Title:        name,
		NodeList:     c.nodes(meshOnly),
		MeshList:     c.meshes(),
		MaterialList: c.materials(),
		ImageList:    c.images(b.decodeWorkers, b.maxTextureSize),
	}
	if meshOnly {
		return out, nil
	}

	skins, err := c.skins()
	if err != nil {
		return nil, err
	}
	out.SkinList = skins
	out.AnimationList = c.animations()
	return out, nil
}

// documentName prefers the name of the default scene and falls back to the file name.
func documentName(doc *gltf.Document, path string) string {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) && doc.Scenes[*doc.Scene].Name != "" {
		return doc.Scenes[*doc.Scene].Name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
