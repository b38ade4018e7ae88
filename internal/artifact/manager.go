package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/memory-registry/internal/client"
	"github.com/woxQAQ/memory-registry/internal/config"
	"github.com/woxQAQ/memory-registry/internal/wasm"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

// Check is one verification step.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report is the verification result for one artifact.
type Report struct {
	Artifact string
	Kind     Kind
	Digest   string
	Checks   []Check
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, ok bool, detail string) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: detail})
}

// Manager manages artifact lifecycle.
type Manager struct {
	cfg         *config.Config
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new artifact manager.
func NewManager(cfg *config.Config, runtime *wasm.Runtime, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, logger),
		logger:      logger.With(zap.String("component", "artifact-manager")),
	}
}

// LoadAll discovers and loads all artifacts from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("artifacts already loaded")
	}

	m.logger.Info("Loading artifacts",
		zap.Strings("paths", m.cfg.ArtifactPaths),
	)

	artifacts, err := m.loader.DiscoverArtifacts(ctx, m.cfg.ArtifactPaths)
	if err != nil {
		var none *NoArtifactsFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No artifacts found in configured paths",
				zap.Strings("paths", m.cfg.ArtifactPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, artifact := range artifacts {
		if err := m.registry.Register(artifact); err != nil {
			m.logger.Error("Failed to register artifact",
				zap.String("name", artifact.Name()),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Artifacts loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// Get retrieves an artifact by name.
func (m *Manager) Get(name string) (*Artifact, error) {
	artifact, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{ArtifactName: name}
	}
	return artifact, nil
}

// FindByKind returns the first registered artifact of a kind.
func (m *Manager) FindByKind(kind Kind) (*Artifact, error) {
	artifacts := m.registry.LookupByKind(kind)
	if len(artifacts) == 0 {
		return nil, &NoArtifactForKindError{Kind: kind}
	}
	return artifacts[0], nil
}

// Instantiate creates a new instance of an artifact.
func (m *Manager) Instantiate(ctx context.Context, name string) (*wasm.Instance, error) {
	artifact, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	return m.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: artifact.Compiled.Name,
	})
}

// Verify instantiates an artifact and checks its export surface and
// behavior. Check failures are reported, not returned as errors.
func (m *Manager) Verify(ctx context.Context, name string) (*Report, error) {
	artifact, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Artifact: artifact.Name(),
		Kind:     artifact.Kind(),
		Digest:   artifact.Compiled.Digest,
	}

	if missing := artifact.MissingExports(); len(missing) > 0 {
		report.add("exports", false, fmt.Sprintf("missing %v", missing))
		return report, nil
	}
	report.add("exports", true, fmt.Sprintf("%d present", len(artifact.Manifest.RequiredExports())))

	instance, err := m.Instantiate(ctx, name)
	if err != nil {
		report.add("instantiate", false, err.Error())
		return report, nil
	}
	defer instance.Close(ctx)

	switch artifact.Kind() {
	case KindRegistry:
		m.verifyRegistry(ctx, instance, report)
	case KindAdder:
		m.verifyAdder(ctx, instance, report)
	}

	m.logger.Info("Artifact verified",
		zap.String("name", name),
		zap.Bool("ok", report.OK()),
	)
	return report, nil
}

func (m *Manager) verifyRegistry(ctx context.Context, instance *wasm.Instance, report *Report) {
	reg := client.NewRegistry(instance, m.logger, m.clientOptions())

	ping, err := reg.Ping(ctx)
	switch {
	case err != nil:
		report.add("ping", false, err.Error())
	default:
		report.add("ping", ping == protocol.PingMagic, fmt.Sprintf("0x%X", ping))
	}

	version, err := reg.Version(ctx)
	switch {
	case err != nil:
		report.add("version", false, err.Error())
	default:
		report.add("version", version == protocol.InterfaceVersion, fmt.Sprintf("%d", version))
	}

	// Round trip on the fresh instance; its store starts empty.
	const sample = "verify"
	if _, err := reg.Submit(ctx, sample); err != nil {
		report.add("submit", false, err.Error())
		return
	}
	got, err := reg.Get(ctx, 0)
	switch {
	case err != nil:
		report.add("read", false, err.Error())
	default:
		report.add("read", got == sample, fmt.Sprintf("%q", got))
	}
}

func (m *Manager) verifyAdder(ctx context.Context, instance *wasm.Instance, report *Report) {
	sum, err := client.NewAdder(instance).Add(ctx, 2, 3)
	if err != nil {
		report.add("add", false, err.Error())
		return
	}
	report.add("add", sum == 5, fmt.Sprintf("add(2, 3) = %d", sum))
}

// VerifyAll verifies every registered artifact in name order.
func (m *Manager) VerifyAll(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	for _, artifact := range m.registry.List() {
		report, err := m.Verify(ctx, artifact.Name())
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (m *Manager) clientOptions() client.Options {
	if m.cfg == nil {
		return client.DefaultOptions()
	}
	return m.cfg.ClientOptions()
}

// Shutdown gracefully shuts down all artifacts.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down artifact manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Artifact manager shutdown complete")
	return nil
}

// Registry returns the artifact registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether artifacts have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
