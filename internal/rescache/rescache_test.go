package rescache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/engine"
)

// fakeEngine counts closes and configuration pushes; everything else is
// inert.
type fakeEngine struct {
	closed  atomic.Bool
	configs atomic.Int32
}

func (f *fakeEngine) RenderForPreview(context.Context, string, engine.PreviewOptions) (*engine.RenderResult, error) {
	return &engine.RenderResult{}, nil
}

func (f *fakeEngine) RenderFullTemplate(context.Context, string, engine.TemplateOptions) (string, error) {
	return "", nil
}

func (f *fakeEngine) Export(context.Context, engine.ExportFormat, string) (string, error) {
	return "", nil
}

func (f *fakeEngine) RunCodeChunk(context.Context, string) error { return nil }
func (f *fakeEngine) RunAllCodeChunks(context.Context) error     { return nil }
func (f *fakeEngine) CacheCodeChunkResult(string, string)        {}
func (f *fakeEngine) ClearCaches()                               {}
func (f *fakeEngine) UpdateConfiguration(map[string]any) {
	f.configs.Add(1)
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func countingFactory(constructed *int) engine.Factory {
	return func(engine.Params) (engine.Engine, error) {
		*constructed++
		return &fakeEngine{}, nil
	}
}

func TestEngineForIdempotent(t *testing.T) {
	constructed := 0
	c := New(countingFactory(&constructed))

	id := document.Identity("/tmp/doc.md")
	params := engine.Params{DocumentPath: "/tmp/doc.md"}

	first, err := c.EngineFor(id, params)
	if err != nil {
		t.Fatalf("EngineFor() error = %v", err)
	}
	second, err := c.EngineFor(id, params)
	if err != nil {
		t.Fatalf("EngineFor() error = %v", err)
	}

	if first != second {
		t.Error("expected the same engine instance on repeat access")
	}
	if constructed != 1 {
		t.Errorf("expected 1 construction, got %d", constructed)
	}
}

func TestEngineForDistinctDocuments(t *testing.T) {
	constructed := 0
	c := New(countingFactory(&constructed))

	a, _ := c.EngineFor(document.Identity("/tmp/a.md"), engine.Params{})
	b, _ := c.EngineFor(document.Identity("/tmp/b.md"), engine.Params{})

	if a == b {
		t.Error("expected distinct engines per document")
	}
	if constructed != 2 {
		t.Errorf("expected 2 constructions, got %d", constructed)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cached engines, got %d", c.Len())
	}
}

func TestEngineForFactoryError(t *testing.T) {
	wantErr := errors.New("spawn failed")
	c := New(func(engine.Params) (engine.Engine, error) {
		return nil, wantErr
	})

	_, err := c.EngineFor(document.Identity("/tmp/doc.md"), engine.Params{})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped factory error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed construction must not be cached")
	}
}

func TestOutputPathForStable(t *testing.T) {
	c := New(countingFactory(new(int)), WithTempDir(t.TempDir()))

	id := document.Identity("/tmp/doc.md")
	first, err := c.OutputPathFor(id)
	if err != nil {
		t.Fatalf("OutputPathFor() error = %v", err)
	}
	second, err := c.OutputPathFor(id)
	if err != nil {
		t.Fatalf("OutputPathFor() error = %v", err)
	}

	if first != second {
		t.Errorf("expected stable path, got %q then %q", first, second)
	}
	if first == "" {
		t.Error("expected a non-empty path")
	}
}

func TestOutputPathForFailsLoudly(t *testing.T) {
	c := New(countingFactory(new(int)), WithTempDir("/nonexistent/markview-test"))

	_, err := c.OutputPathFor(document.Identity("/tmp/doc.md"))
	if err == nil {
		t.Fatal("expected allocation error, got nil")
	}
}

func TestInvalidateAll(t *testing.T) {
	constructed := 0
	c := New(countingFactory(&constructed), WithTempDir(t.TempDir()))

	id := document.Identity("/tmp/doc.md")
	eng, _ := c.EngineFor(id, engine.Params{})
	path1, _ := c.OutputPathFor(id)

	c.InvalidateAll()

	if !eng.(*fakeEngine).closed.Load() {
		t.Error("expected cached engine to be closed on invalidation")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d engines", c.Len())
	}

	// Next access reconstructs.
	c.EngineFor(id, engine.Params{})
	path2, _ := c.OutputPathFor(id)
	if constructed != 2 {
		t.Errorf("expected reconstruction after invalidation, constructions = %d", constructed)
	}
	if path1 == path2 {
		t.Error("expected a fresh output path after invalidation")
	}
}

func TestUpdateConfigurationReachesEngines(t *testing.T) {
	c := New(countingFactory(new(int)))

	a, _ := c.EngineFor(document.Identity("/tmp/a.md"), engine.Params{})
	b, _ := c.EngineFor(document.Identity("/tmp/b.md"), engine.Params{})

	c.UpdateConfiguration(map[string]any{"zoomLevel": 1.5})

	if got := a.(*fakeEngine).configs.Load(); got != 1 {
		t.Errorf("expected 1 configuration push, got %d", got)
	}
	if got := b.(*fakeEngine).configs.Load(); got != 1 {
		t.Errorf("expected 1 configuration push, got %d", got)
	}
}

func TestRemove(t *testing.T) {
	c := New(countingFactory(new(int)), WithTempDir(t.TempDir()))

	keep := document.Identity("/tmp/keep.md")
	drop := document.Identity("/tmp/drop.md")
	c.EngineFor(keep, engine.Params{})
	dropped, _ := c.EngineFor(drop, engine.Params{})

	c.Remove(drop)

	if !dropped.(*fakeEngine).closed.Load() {
		t.Error("expected removed engine to be closed")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 remaining engine, got %d", c.Len())
	}

	// Removing an absent entry is a no-op.
	c.Remove(document.Identity("/tmp/never.md"))
}
