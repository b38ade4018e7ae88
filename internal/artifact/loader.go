package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/memory-registry/internal/wasm"
)

// Loader handles loading artifacts from disk.
type Loader struct {
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new artifact loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "artifact-loader")),
	}
}

// LoadArtifact loads a single artifact from a directory.
func (l *Loader) LoadArtifact(ctx context.Context, dir string) (*Artifact, error) {
	l.logger.Debug("Loading artifact", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading artifact",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("kind", string(manifest.Kind)),
	)

	// Compile Wasm module (uses internal caching)
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.WasmPath())
	if err != nil {
		return nil, &LoadError{
			ArtifactName: manifest.Name,
			Err:          err,
		}
	}

	if budget := int64(manifest.Wasm.Size) * 1024; budget > 0 && compiled.SizeBytes > budget {
		l.logger.Warn("Artifact exceeds its size budget",
			zap.String("name", manifest.Name),
			zap.Int64("size_bytes", compiled.SizeBytes),
			zap.Int64("budget_bytes", budget),
		)
	}

	artifact := &Artifact{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Artifact loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.String("sha256", compiled.Digest),
	)

	return artifact, nil
}

// DiscoverArtifacts scans directories for artifacts.
func (l *Loader) DiscoverArtifacts(ctx context.Context, paths []string) ([]*Artifact, error) {
	var artifacts []*Artifact
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning artifact directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Artifact path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as an artifact
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(basePath, entry.Name())

			artifact, err := l.LoadArtifact(ctx, dir)
			if err != nil {
				l.logger.Error("Failed to load artifact",
					zap.String("dir", dir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			artifacts = append(artifacts, artifact)
		}
	}

	if len(artifacts) > 0 && len(errs) > 0 {
		l.logger.Warn("Some artifacts failed to load",
			zap.Int("loaded", len(artifacts)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(artifacts) == 0 {
		return nil, &NoArtifactsFoundError{Paths: paths}
	}

	return artifacts, nil
}
