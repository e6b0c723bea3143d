package loader

import (
	"github.com/Owlkaline/Maat-Graphics-sub000/engine/model"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger sets the logger used for load summaries and skipped asset data.
//
// Parameters:
//   - logger: the zap logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *loader) {
		l.logger = logger
	}
}

// WithDecodeWorkers sets how many images are decoded in parallel.
//
// Parameters:
//   - n: the worker count, values below 1 decode on a single worker
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker option to a loader
func WithDecodeWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.decodeWorkers = max(n, 1)
	}
}

// WithMaxTextureSize scales decoded images down so neither side exceeds size.
func WithMaxTextureSize(size uint32) LoaderBuilderOption {
	return func(l *loader) {
		l.maxTextureSize = size
	}
}

// WithDocument is an option builder that pre-populates the document cache.
//
// Parameters:
//   - key: the cache key for the document
//   - doc: the document to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the document option to a loader
func WithDocument(key string, doc model.Document) LoaderBuilderOption {
	return func(l *loader) {
		l.documentCache[key] = doc
	}
}
