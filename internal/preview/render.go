package preview

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/engine"
	"github.com/dshills/markview/internal/surface"
)

// Trigger names what provoked a render request.
type Trigger int

const (
	// TriggerSettle is a debounced text change.
	TriggerSettle Trigger = iota

	// TriggerSave is an explicit document save.
	TriggerSave

	// TriggerRefresh is an explicit refresh, a configuration change, or a
	// completed code chunk.
	TriggerRefresh
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerSettle:
		return "settle"
	case TriggerSave:
		return "save"
	case TriggerRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

// Render runs one render decision cycle: invoke the engine, diff the
// dependency set, then either patch the surface in place or regenerate
// the full artifact and reload. Each request takes a fresh generation;
// results superseded by a newer request are discarded, never applied.
func (s *Session) Render(trigger Trigger) {
	s.mu.Lock()
	if s.closed || s.doc == nil {
		s.mu.Unlock()
		return
	}
	doc := s.doc
	s.state = StateRendering
	s.mu.Unlock()

	gen := s.gen.Add(1)
	text := doc.Text()

	eng, err := s.engine(doc)
	if err != nil {
		s.renderFailed(gen, err)
		return
	}

	s.post(surface.OutStartParsing, nil)

	res, err := eng.RenderForPreview(context.Background(), text, engine.PreviewOptions{
		IsForPreview:        true,
		UseRelativeFilePath: true,
		HideFrontMatter:     true,
		TriggeredBySave:     trigger == TriggerSave,
	})
	if err != nil {
		s.renderFailed(gen, err)
		return
	}

	s.finishRender(gen, doc, eng, text, res)
}

// finishRender applies a completed render, unless a newer request has
// superseded it.
func (s *Session) finishRender(gen int64, doc document.Document, eng engine.Engine, text string, res *engine.RenderResult) {
	s.mu.Lock()
	if s.closed || gen != s.gen.Load() {
		s.mu.Unlock()
		s.log.Debug("discarding superseded render")
		return
	}

	// A presentation layout is structurally different from the inline
	// preview, so a session already presenting reloads without diffing.
	reload := s.presentation ||
		!s.rendered ||
		res.FrontMatter.Presentation ||
		!engine.DepsEqual(s.deps, res.Dependencies)

	s.rendered = true
	s.deps = res.Dependencies
	s.presentation = res.FrontMatter.Presentation
	zoom := s.zoom
	if reload {
		s.state = StateAwaitingReload
	} else {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if reload {
		s.reload(gen, doc, eng, text, zoom)
		return
	}
	s.patch(doc, res)
}

// patch pushes new content into the already-loaded surface.
func (s *Session) patch(doc document.Document, res *engine.RenderResult) {
	s.post(surface.OutUpdateHTML, UpdatePayload{
		HTML:       res.HTML,
		TOCHTML:    res.TOCHTML,
		TotalLines: doc.LineCount(),
		Source:     doc.ID().String(),
		ID:         res.FrontMatter.ID,
		Class:      res.FrontMatter.Class,
	})
}

// reload regenerates the full artifact and points the surface at it.
func (s *Session) reload(gen int64, doc document.Document, eng engine.Engine, text string, zoom float64) {
	html, err := eng.RenderFullTemplate(context.Background(), text, engine.TemplateOptions{
		SourcePath:  doc.ID().String(),
		InitialLine: doc.Viewport().FirstLine,
		ZoomLevel:   zoom,
	})
	if err != nil {
		s.renderFailed(gen, err)
		return
	}
	// The template render is a suspension point: a newer request may have
	// finished in the meantime.
	if gen != s.gen.Load() {
		s.log.Debug("discarding superseded reload")
		return
	}

	path, err := s.mgr.cache.OutputPathFor(doc.ID())
	if err != nil {
		s.renderFailed(gen, err)
		return
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		s.renderFailed(gen, fmt.Errorf("write artifact: %w", err))
		return
	}

	// Checked again right before instructing the surface: the artifact
	// write may also have been overtaken.
	s.mu.Lock()
	if s.closed || gen != s.gen.Load() {
		s.mu.Unlock()
		s.log.Debug("discarding superseded reload")
		return
	}
	same := s.loadedPath == path
	s.loadedPath = path
	s.mu.Unlock()

	if same {
		err = s.surface.Reload()
	} else {
		err = s.surface.Load(path)
	}
	if err != nil {
		s.log.WithField("error", err).Debug("surface load failed")
	}
}

// renderFailed reports a failure of the latest render and resets to idle;
// failures of superseded renders are only logged.
func (s *Session) renderFailed(gen int64, err error) {
	if gen != s.gen.Load() {
		s.log.WithField("error", err).Debug("superseded render failed")
		return
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	s.mgr.notifier.Error(fmt.Sprintf("render failed: %v", err))
}

// engine returns the cached engine for the bound document.
func (s *Session) engine(doc document.Document) (engine.Engine, error) {
	return s.mgr.cache.EngineFor(doc.ID(), engine.Params{
		DocumentPath: doc.ID().String(),
		ProjectRoot:  s.mgr.projectRoot,
		Config:       engineConfig(s.mgr.settings()),
	})
}
