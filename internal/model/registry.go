package model

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultModel is the name models resolve to when the caller does not pick
// one.
const DefaultModel = "default"

// LoaderFunc deserializes a model artifact on disk into a Predictor.
type LoaderFunc func(path string) (Predictor, error)

// Registry owns every loaded model and its extraction scratch directory,
// keyed by model name. Loading is lazy: the first Get for a name extracts
// and deserializes the artifact, later Gets return the cached handle. A
// mutex guards the load path, so when requests race on first use exactly
// one of them performs the load and the rest block until it finishes.
type Registry struct {
	mu       sync.Mutex
	archives map[string]string // model name -> bundle path
	models   map[string]Predictor
	scratch  map[string]string // model name -> extraction dir
	load     LoaderFunc
	logger   *zap.Logger
}

// NewRegistry builds a registry whose default model is backed by the bundle
// at defaultArchive and loaded through the ONNX runtime.
func NewRegistry(defaultArchive string, logger *zap.Logger) *Registry {
	return NewRegistryWithLoader(defaultArchive, func(path string) (Predictor, error) {
		return NewSession(path)
	}, logger)
}

// NewRegistryWithLoader is NewRegistry with the artifact loader swapped out,
// so tests can exercise the registry without the ONNX runtime library.
func NewRegistryWithLoader(defaultArchive string, load LoaderFunc, logger *zap.Logger) *Registry {
	return &Registry{
		archives: map[string]string{DefaultModel: defaultArchive},
		models:   make(map[string]Predictor),
		scratch:  make(map[string]string),
		load:     load,
		logger:   logger,
	}
}

// Get returns the loaded model for name, loading it on first use. Names
// without a registered bundle resolve to a path of the same name. A failed
// load releases the model's scratch state and is retried on the next call.
func (r *Registry) Get(name string) (Predictor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[name]; ok {
		return m, nil
	}

	archive, ok := r.archives[name]
	if !ok {
		archive = name
	}

	path := archive
	if strings.HasSuffix(archive, ".zip") {
		extracted, err := r.extractLocked(name, archive)
		if err != nil {
			r.cleanupLocked(name)
			r.logger.Error("model bundle extraction failed",
				zap.String("model", name), zap.String("archive", archive), zap.Error(err))
			return nil, &ModelUnavailableError{Name: name, Cause: err}
		}
		path = extracted
	}

	m, err := r.load(path)
	if err != nil {
		r.cleanupLocked(name)
		r.logger.Error("model load failed",
			zap.String("model", name), zap.String("path", path), zap.Error(err))
		return nil, &ModelUnavailableError{Name: name, Cause: err}
	}

	r.models[name] = m
	r.logger.Info("model loaded", zap.String("model", name), zap.String("path", path))
	return m, nil
}

// extractLocked unzips the bundle into a scratch directory and returns the
// path of the .onnx artifact inside. The scratch directory is kept for the
// process lifetime so the runtime can keep the file mapped; Close removes it.
func (r *Registry) extractLocked(name, archive string) (string, error) {
	dir := r.scratch[name]
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", name+"_model")
		if err != nil {
			return "", errors.Wrap(err, "creating scratch directory")
		}
		r.scratch[name] = dir
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", errors.Wrapf(err, "opening model bundle %s", archive)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := extractFile(f, dir); err != nil {
			return "", err
		}
	}

	var found string
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".onnx") {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return "", walkErr
	}
	if found == "" {
		return "", errors.Newf("no .onnx model file found in %s", archive)
	}
	return found, nil
}

func extractFile(f *zip.File, dir string) error {
	dest := filepath.Join(dir, filepath.Clean(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return errors.Newf("bundle member %q escapes scratch directory", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

// cleanupLocked removes the scratch directory for one model name.
func (r *Registry) cleanupLocked(name string) {
	if dir := r.scratch[name]; dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("could not remove scratch directory",
				zap.String("model", name), zap.String("dir", dir), zap.Error(err))
		}
		delete(r.scratch, name)
	}
}

// Close releases every loaded model and scratch directory. Intended for
// process shutdown or test teardown, not per-request use.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, m := range r.models {
		if err := m.Close(); err != nil {
			r.logger.Warn("closing model", zap.String("model", name), zap.Error(err))
		}
		delete(r.models, name)
	}
	for name := range r.scratch {
		r.cleanupLocked(name)
	}
}
