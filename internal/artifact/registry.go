package artifact

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry indexes loaded artifacts by name and kind.
type Registry struct {
	sync.RWMutex
	artifacts map[string]*Artifact // name -> artifact
	byKind    map[Kind][]*Artifact // kind -> artifacts, registration order
	logger    *zap.Logger
}

// NewRegistry creates a new artifact registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		artifacts: make(map[string]*Artifact),
		byKind:    make(map[Kind][]*Artifact),
		logger:    logger.With(zap.String("component", "artifact-registry")),
	}
}

// Register adds an artifact to the registry.
func (r *Registry) Register(artifact *Artifact) error {
	r.Lock()
	defer r.Unlock()

	name := artifact.Name()

	if _, exists := r.artifacts[name]; exists {
		return &AlreadyRegisteredError{ArtifactName: name}
	}

	r.artifacts[name] = artifact

	kind := artifact.Kind()
	r.byKind[kind] = append(r.byKind[kind], artifact)

	r.logger.Info("Artifact registered",
		zap.String("name", name),
		zap.String("kind", string(kind)),
	)

	return nil
}

// Get retrieves an artifact by name.
func (r *Registry) Get(name string) (*Artifact, bool) {
	r.RLock()
	defer r.RUnlock()

	artifact, ok := r.artifacts[name]
	return artifact, ok
}

// LookupByKind finds artifacts of a kind.
func (r *Registry) LookupByKind(kind Kind) []*Artifact {
	r.RLock()
	defer r.RUnlock()

	artifacts := r.byKind[kind]
	result := make([]*Artifact, len(artifacts))
	copy(result, artifacts)
	return result
}

// List returns all registered artifacts sorted by name.
func (r *Registry) List() []*Artifact {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Artifact, 0, len(r.artifacts))
	for _, artifact := range r.artifacts {
		result = append(result, artifact)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Unregister removes an artifact from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	artifact, ok := r.artifacts[name]
	if !ok {
		return
	}

	kind := artifact.Kind()
	artifacts := r.byKind[kind]
	for i, a := range artifacts {
		if a.Name() == name {
			r.byKind[kind] = append(artifacts[:i:i], artifacts[i+1:]...)
			break
		}
	}

	delete(r.artifacts, name)

	r.logger.Info("Artifact unregistered", zap.String("name", name))
}

// Count returns the number of registered artifacts.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.artifacts)
}
