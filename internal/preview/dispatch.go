package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/engine"
	"github.com/dshills/markview/internal/scrollsync"
	"github.com/dshills/markview/internal/surface"
	"github.com/dshills/markview/internal/uploader"
)

// exportFormats maps export commands to engine formats.
var exportFormats = map[surface.Command]engine.ExportFormat{
	surface.CmdExportHTML:     engine.ExportHTML,
	surface.CmdExportPDF:      engine.ExportPDF,
	surface.CmdExportPrince:   engine.ExportPrince,
	surface.CmdExportEbook:    engine.ExportEbook,
	surface.CmdExportPandoc:   engine.ExportPandoc,
	surface.CmdExportMarkdown: engine.ExportMarkdown,
}

// HandleEnvelope dispatches one inbound surface command. Commands this
// build does not recognize are logged and dropped so newer surfaces keep
// working against older sessions.
func (s *Session) HandleEnvelope(env *surface.Envelope) {
	if env == nil {
		return
	}

	switch env.Command {
	case surface.CmdWebviewFinishedLoading:
		s.handleFinishedLoading()
	case surface.CmdRefresh:
		s.handleRefresh()
	case surface.CmdRevealLine:
		s.handleRevealLine(env)
	case surface.CmdInsertImageURL:
		s.handleInsertImageURL(env)
	case surface.CmdPasteImageFile:
		s.handlePasteImage(env)
	case surface.CmdUploadImageFile:
		s.handleUploadImage(env)
	case surface.CmdOpenInBrowser:
		s.handleOpenInBrowser()
	case surface.CmdExportHTML, surface.CmdExportPDF, surface.CmdExportPrince,
		surface.CmdExportEbook, surface.CmdExportPandoc, surface.CmdExportMarkdown:
		s.handleExport(env.Command)
	case surface.CmdCacheCodeChunkResult:
		s.handleCacheChunk(env)
	case surface.CmdRunCodeChunk:
		s.handleRunChunk(env)
	case surface.CmdRunAllCodeChunks:
		s.handleRunAllChunks()
	case surface.CmdAnchorClick:
		s.handleAnchorClick(env)
	case surface.CmdTaskCheckboxToggle:
		s.handleCheckboxToggle(env)
	case surface.CmdZoomLevelChange:
		s.handleZoomChange(env)
	case surface.CmdConsoleLog:
		s.handleConsoleLog(env)
	default:
		s.log.WithField("command", env.Command.String()).Debug("ignoring unrecognized command")
	}
}

func (s *Session) handleFinishedLoading() {
	s.mu.Lock()
	if s.state == StateAwaitingReload {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// handleRefresh drops engine caches and forces the next decision to a
// full reload.
func (s *Session) handleRefresh() {
	doc := s.Document()
	if doc == nil {
		return
	}

	if eng, err := s.engine(doc); err == nil {
		eng.ClearCaches()
	}

	s.mu.Lock()
	s.rendered = false
	s.deps = nil
	s.mu.Unlock()

	s.Render(TriggerRefresh)
}

func (s *Session) handleRevealLine(env *surface.Envelope) {
	line, err := env.IntArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad reveal-line arguments")
		return
	}
	if !s.mgr.settings().ScrollSync {
		return
	}
	doc := s.Document()
	if doc == nil {
		return
	}

	ratio := scrollsync.RevealRatio(line, doc.LineCount())
	s.animator.Center(doc, line, ratio)
}

func (s *Session) handleInsertImageURL(env *surface.Envelope) {
	url, err := env.StringArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad insert-image-url arguments")
		return
	}
	doc := s.Document()
	if doc == nil {
		return
	}

	ref := fmt.Sprintf("![enter image description here](%s)", url)
	if err := doc.InsertAt(doc.Cursor(), ref); err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("insert image: %v", err))
	}
}

// handlePasteImage copies a pasted file into the configured image folder
// through the hint flow: placeholder now, final reference when the copy
// lands.
func (s *Session) handlePasteImage(env *surface.Envelope) {
	path, err := env.StringArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad paste-image-file arguments")
		return
	}

	up, err := s.mgr.uploaderFor("local")
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("paste image: %v", err))
		return
	}
	s.startUpload(path, up)
}

func (s *Session) handleUploadImage(env *surface.Envelope) {
	path, err := env.StringArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad upload-image-file arguments")
		return
	}

	up, err := s.mgr.uploaderFor(s.mgr.settings().ImageUploader)
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("upload image: %v", err))
		return
	}
	s.startUpload(path, up)
}

// startUpload inserts a placeholder at the cursor and hands the transfer
// to the background; the resolver patches the placeholder in when the
// transfer finishes.
func (s *Session) startUpload(sourcePath string, up uploader.Uploader) {
	doc := s.Document()
	if doc == nil {
		return
	}

	name := filepath.Base(sourcePath)
	hint := uploader.NewHint(doc.ID(), doc.Cursor().Line, name)
	if err := doc.InsertAt(doc.Cursor(), hint.Token); err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("upload %s: %v", name, err))
		return
	}

	go s.resolveUpload(doc, hint, up, sourcePath, name)
}

// resolveUpload finishes the transfer and swaps the placeholder for the
// final reference. A failed transfer leaves the placeholder in place for
// the user to clean up.
func (s *Session) resolveUpload(doc document.Document, hint uploader.Hint, up uploader.Uploader, sourcePath, name string) {
	res, err := up.Upload(context.Background(), sourcePath, doc.ID().Dir())
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("upload %s: %v", name, err))
		return
	}
	if !uploader.Resolve(doc, hint, res) {
		s.log.WithField("token", hint.Token).Debug("upload placeholder no longer present")
	}
}

func (s *Session) handleOpenInBrowser() {
	doc := s.Document()
	if doc == nil {
		return
	}
	if err := s.openInBrowser(doc); err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("open in browser: %v", err))
	}
}

// openInBrowser writes a standalone artifact and opens it natively.
func (s *Session) openInBrowser(doc document.Document) error {
	eng, err := s.engine(doc)
	if err != nil {
		return err
	}
	html, err := eng.RenderFullTemplate(context.Background(), doc.Text(), engine.TemplateOptions{
		SourcePath: doc.ID().String(),
		ZoomLevel:  s.Zoom(),
	})
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "markview-browser-*.html")
	if err != nil {
		return err
	}
	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.mgr.opener.Open(f.Name())
}

// handleExport runs one export and reports the outcome either way.
func (s *Session) handleExport(cmd surface.Command) {
	format := exportFormats[cmd]
	doc := s.Document()
	if doc == nil {
		return
	}

	eng, err := s.engine(doc)
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("export %s: %v", format, err))
		return
	}

	path, err := eng.Export(context.Background(), format, doc.Text())
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("export %s: %v", format, err))
		return
	}
	s.mgr.notifier.Info(fmt.Sprintf("exported %s to %s", format, path))
}

func (s *Session) handleCacheChunk(env *surface.Envelope) {
	id, err := env.StringArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad cache-code-chunk-result arguments")
		return
	}
	result, err := env.StringArg(1)
	if err != nil {
		s.log.WithField("error", err).Debug("bad cache-code-chunk-result arguments")
		return
	}
	doc := s.Document()
	if doc == nil {
		return
	}

	eng, err := s.engine(doc)
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("cache code chunk: %v", err))
		return
	}
	eng.CacheCodeChunkResult(id, result)
	s.Render(TriggerRefresh)
}

func (s *Session) handleRunChunk(env *surface.Envelope) {
	id, err := env.StringArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad run-code-chunk arguments")
		return
	}
	doc := s.Document()
	if doc == nil {
		return
	}

	eng, err := s.engine(doc)
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("run code chunk: %v", err))
		return
	}
	if err := eng.RunCodeChunk(context.Background(), id); err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("run code chunk %s: %v", id, err))
		return
	}
	s.Render(TriggerRefresh)
}

func (s *Session) handleRunAllChunks() {
	doc := s.Document()
	if doc == nil {
		return
	}

	eng, err := s.engine(doc)
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("run code chunks: %v", err))
		return
	}
	if err := eng.RunAllCodeChunks(context.Background()); err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("run code chunks: %v", err))
		return
	}
	s.Render(TriggerRefresh)
}

func (s *Session) handleAnchorClick(env *surface.Envelope) {
	href, err := env.StringArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad anchor-click arguments")
		return
	}

	action, target := surface.RouteAnchor(href)
	switch action {
	case surface.AnchorOpenDocument:
		if s.mgr.host != nil {
			err = s.mgr.host.OpenDocument(target)
		} else {
			err = s.mgr.opener.Open(target)
		}
	default:
		err = s.mgr.opener.Open(target)
	}
	if err != nil {
		s.mgr.notifier.Error(fmt.Sprintf("open %s: %v", target, err))
	}
}

// handleCheckboxToggle flips the task marker on one line in place.
func (s *Session) handleCheckboxToggle(env *surface.Envelope) {
	line, err := env.IntArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad task-checkbox-toggle arguments")
		return
	}
	doc := s.Document()
	if doc == nil {
		return
	}

	text, ok := doc.Line(line)
	if !ok {
		return
	}
	toggled, changed := surface.ToggleCheckbox(text)
	if !changed {
		return
	}
	if err := doc.ReplaceLineRange(line, line+1, toggled); err != nil {
		s.log.WithField("error", err).Debug("checkbox replace failed")
	}
}

// handleZoomChange stores the factor; it rides along on the next full
// reload's template options.
func (s *Session) handleZoomChange(env *surface.Envelope) {
	zoom, err := env.FloatArg(0)
	if err != nil {
		s.log.WithField("error", err).Debug("bad zoom-level-change arguments")
		return
	}

	s.mu.Lock()
	s.zoom = zoom
	s.mu.Unlock()
}

func (s *Session) handleConsoleLog(env *surface.Envelope) {
	msg, err := env.StringArg(0)
	if err != nil {
		return
	}
	s.log.WithField("message", msg).Debug("surface console")
}
