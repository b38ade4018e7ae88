package artifact

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/memory-registry/internal/config"
	"github.com/woxQAQ/memory-registry/internal/wasm/wasmtest"
)

func newLoadedManager(t *testing.T) *Manager {
	t.Helper()

	root := t.TempDir()
	writeArtifact(t, root, "add", adderManifest, "add.wasm", wasmtest.AddPing)
	writeArtifact(t, root, "registry", registryManifest, "registry.wasm", wasmtest.Allocator)

	cfg := &config.Config{ArtifactPaths: []string{root}}
	manager := NewManager(cfg, newTestRuntime(t), zaptest.NewLogger(t))
	if err := manager.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	return manager
}

func TestManager_NewManager(t *testing.T) {
	manager := NewManager(&config.Config{}, newTestRuntime(t), zaptest.NewLogger(t))

	if manager.IsLoaded() {
		t.Error("Manager should not be loaded initially")
	}
}

func TestManager_LoadAll(t *testing.T) {
	manager := newLoadedManager(t)

	if !manager.IsLoaded() {
		t.Error("Manager should be loaded")
	}
	if manager.Registry().Count() != 2 {
		t.Errorf("expected 2 artifacts, got %d", manager.Registry().Count())
	}
	if err := manager.LoadAll(context.Background()); err == nil {
		t.Error("second LoadAll() should fail")
	}
}

func TestManager_LoadAll_Empty(t *testing.T) {
	cfg := &config.Config{ArtifactPaths: []string{t.TempDir()}}
	manager := NewManager(cfg, newTestRuntime(t), zaptest.NewLogger(t))

	if err := manager.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll() with no artifacts should not fail: %v", err)
	}
	if !manager.IsLoaded() {
		t.Error("Manager should be loaded")
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(&config.Config{}, newTestRuntime(t), zaptest.NewLogger(t))

	_, err := manager.Get("nonexistent")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %T", err)
	}
}

func TestManager_FindByKind(t *testing.T) {
	manager := newLoadedManager(t)

	adder, err := manager.FindByKind(KindAdder)
	if err != nil {
		t.Fatalf("FindByKind(adder) failed: %v", err)
	}
	if adder.Name() != "stylus-add" {
		t.Errorf("expected 'stylus-add', got '%s'", adder.Name())
	}

	_, err = manager.FindByKind("other")
	var noKind *NoArtifactForKindError
	if !errors.As(err, &noKind) {
		t.Errorf("expected NoArtifactForKindError, got %T", err)
	}
}

func TestManager_Instantiate(t *testing.T) {
	ctx := context.Background()
	manager := newLoadedManager(t)

	instance, err := manager.Instantiate(ctx, "stylus-add")
	if err != nil {
		t.Fatalf("Instantiate() failed: %v", err)
	}
	defer instance.Close(ctx)

	if instance.Name != manager.Registry().List()[1].Compiled.Name {
		t.Errorf("instance bound to unexpected module %s", instance.Name)
	}
}

func TestManager_VerifyAdder(t *testing.T) {
	manager := newLoadedManager(t)

	report, err := manager.Verify(context.Background(), "stylus-add")
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if !report.OK() {
		t.Errorf("adder report should pass: %+v", report.Checks)
	}
	if len(report.Digest) != 64 {
		t.Errorf("report digest = %q", report.Digest)
	}
}

func TestManager_VerifyRegistryMissingExports(t *testing.T) {
	manager := newLoadedManager(t)

	report, err := manager.Verify(context.Background(), "memory-registry")
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if report.OK() {
		t.Fatal("registry report should fail for a module without registry exports")
	}
	if report.Checks[0].Name != "exports" || report.Checks[0].OK {
		t.Errorf("expected failing exports check, got %+v", report.Checks[0])
	}
}

func TestManager_VerifyAll(t *testing.T) {
	manager := newLoadedManager(t)

	reports, err := manager.VerifyAll(context.Background())
	if err != nil {
		t.Fatalf("VerifyAll() failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	// Name order: memory-registry, stylus-add.
	if reports[0].OK() || !reports[1].OK() {
		t.Errorf("unexpected results: %v, %v", reports[0].OK(), reports[1].OK())
	}
}
