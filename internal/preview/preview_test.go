package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/markview/internal/config"
	"github.com/dshills/markview/internal/document"
	"github.com/dshills/markview/internal/engine"
	"github.com/dshills/markview/internal/rescache"
	"github.com/dshills/markview/internal/surface"
)

// fakeEngine records every call and answers with canned results.
type fakeEngine struct {
	mu          sync.Mutex
	result      *engine.RenderResult
	renderErr   error
	templateErr error
	exportErr   error
	chunkErr    error
	gate        func(call int)
	tgate       func(call int)

	previews  []engine.PreviewOptions
	templates []engine.TemplateOptions
	exports   []engine.ExportFormat
	chunks    []string
	cached    [][2]string
	configs   []map[string]any
	allRuns   int
	clears    int
	closed    bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		result: &engine.RenderResult{
			HTML:    "<p>body</p>",
			TOCHTML: "<ul><li>body</li></ul>",
		},
	}
}

func (f *fakeEngine) RenderForPreview(_ context.Context, _ string, opts engine.PreviewOptions) (*engine.RenderResult, error) {
	f.mu.Lock()
	f.previews = append(f.previews, opts)
	call := len(f.previews)
	res, err := f.result, f.renderErr
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		gate(call)
	}
	if err != nil {
		return nil, err
	}
	cp := *res
	return &cp, nil
}

func (f *fakeEngine) RenderFullTemplate(_ context.Context, _ string, opts engine.TemplateOptions) (string, error) {
	f.mu.Lock()
	f.templates = append(f.templates, opts)
	call := len(f.templates)
	err := f.templateErr
	gate := f.tgate
	f.mu.Unlock()

	if gate != nil {
		gate(call)
	}
	if err != nil {
		return "", err
	}
	return "<html><body>artifact</body></html>", nil
}

func (f *fakeEngine) Export(_ context.Context, format engine.ExportFormat, _ string) (string, error) {
	f.mu.Lock()
	f.exports = append(f.exports, format)
	err := f.exportErr
	f.mu.Unlock()

	if err != nil {
		return "", err
	}
	return "/tmp/out." + string(format), nil
}

func (f *fakeEngine) RunCodeChunk(_ context.Context, chunkID string) error {
	f.mu.Lock()
	f.chunks = append(f.chunks, chunkID)
	err := f.chunkErr
	f.mu.Unlock()
	return err
}

func (f *fakeEngine) RunAllCodeChunks(_ context.Context) error {
	f.mu.Lock()
	f.allRuns++
	err := f.chunkErr
	f.mu.Unlock()
	return err
}

func (f *fakeEngine) CacheCodeChunkResult(chunkID, result string) {
	f.mu.Lock()
	f.cached = append(f.cached, [2]string{chunkID, result})
	f.mu.Unlock()
}

func (f *fakeEngine) ClearCaches() {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
}

func (f *fakeEngine) UpdateConfiguration(cfg map[string]any) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) setResult(res *engine.RenderResult) {
	f.mu.Lock()
	f.result = res
	f.mu.Unlock()
}

func (f *fakeEngine) setRenderErr(err error) {
	f.mu.Lock()
	f.renderErr = err
	f.mu.Unlock()
}

func (f *fakeEngine) setTemplateErr(err error) {
	f.mu.Lock()
	f.templateErr = err
	f.mu.Unlock()
}

func (f *fakeEngine) setExportErr(err error) {
	f.mu.Lock()
	f.exportErr = err
	f.mu.Unlock()
}

func (f *fakeEngine) setChunkErr(err error) {
	f.mu.Lock()
	f.chunkErr = err
	f.mu.Unlock()
}

func (f *fakeEngine) setGate(fn func(call int)) {
	f.mu.Lock()
	f.gate = fn
	f.mu.Unlock()
}

func (f *fakeEngine) setTemplateGate(fn func(call int)) {
	f.mu.Lock()
	f.tgate = fn
	f.mu.Unlock()
}

func (f *fakeEngine) previewCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.previews)
}

func (f *fakeEngine) lastPreview() engine.PreviewOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previews[len(f.previews)-1]
}

func (f *fakeEngine) templateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.templates)
}

func (f *fakeEngine) lastTemplate() engine.TemplateOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.templates[len(f.templates)-1]
}

func (f *fakeEngine) exported() []engine.ExportFormat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.ExportFormat(nil), f.exports...)
}

func (f *fakeEngine) chunkRuns() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chunks...)
}

func (f *fakeEngine) allChunkRuns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allRuns
}

func (f *fakeEngine) cachedChunks() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.cached...)
}

func (f *fakeEngine) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func (f *fakeEngine) lastConfig() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.configs) == 0 {
		return nil
	}
	return f.configs[len(f.configs)-1]
}

func (f *fakeEngine) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeSurface records loads, reloads, and posted envelopes.
type fakeSurface struct {
	mu      sync.Mutex
	loads   []string
	reloads int
	posts   []*surface.Envelope
	closes  int
}

func (f *fakeSurface) Load(path string) error {
	f.mu.Lock()
	f.loads = append(f.loads, path)
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) Reload() error {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) Post(env *surface.Envelope) error {
	f.mu.Lock()
	f.posts = append(f.posts, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeSurface) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeSurface) lastLoad() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

func (f *fakeSurface) reloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

func (f *fakeSurface) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeSurface) byCommand(cmd surface.Command) []*surface.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*surface.Envelope
	for _, env := range f.posts {
		if env.Command == cmd {
			out = append(out, env)
		}
	}
	return out
}

// fakeNotifier collects user-visible messages.
type fakeNotifier struct {
	mu    sync.Mutex
	infos []string
	errs  []string
}

func (f *fakeNotifier) Info(msg string) {
	f.mu.Lock()
	f.infos = append(f.infos, msg)
	f.mu.Unlock()
}

func (f *fakeNotifier) Error(msg string) {
	f.mu.Lock()
	f.errs = append(f.errs, msg)
	f.mu.Unlock()
}

func (f *fakeNotifier) infoMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.infos...)
}

func (f *fakeNotifier) errorMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errs...)
}

// fakeOpener records native open targets.
type fakeOpener struct {
	mu      sync.Mutex
	targets []string
}

func (f *fakeOpener) Open(target string) error {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()
	return nil
}

func (f *fakeOpener) opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...)
}

// fakeHost records documents opened in the editor.
type fakeHost struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeHost) OpenDocument(path string) error {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	return nil
}

func (f *fakeHost) openedDocs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// testEnv assembles a manager over fake collaborators. Engines are
// created per document path so tests can prime results before the first
// render.
type testEnv struct {
	t        *testing.T
	dir      string
	cfg      *config.Manager
	mgr      *Manager
	notifier *fakeNotifier
	opener   *fakeOpener

	mu          sync.Mutex
	engines     map[string]*fakeEngine
	constructed int
	docs        int
}

func newTestEnv(t *testing.T, settingsBody string, opts ...Option) *testEnv {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := os.WriteFile(path, []byte(settingsBody), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	cfg := config.NewManager(config.WithPath(path))
	if err := cfg.Load(); err != nil {
		t.Fatalf("load settings: %v", err)
	}

	env := &testEnv{
		t:        t,
		dir:      dir,
		cfg:      cfg,
		notifier: &fakeNotifier{},
		opener:   &fakeOpener{},
		engines:  make(map[string]*fakeEngine),
	}

	factory := func(p engine.Params) (engine.Engine, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.constructed++
		eng, ok := env.engines[p.DocumentPath]
		if !ok {
			eng = newFakeEngine()
			env.engines[p.DocumentPath] = eng
		}
		return eng, nil
	}
	cache := rescache.New(factory, rescache.WithTempDir(dir))

	base := []Option{
		WithNotifier(env.notifier),
		WithOpener(env.opener),
		WithProjectRoot(dir),
	}
	env.mgr = NewManager(cache, cfg, append(base, opts...)...)
	t.Cleanup(func() { env.mgr.CloseAll() })
	return env
}

// open creates a buffer-backed document with its own surface and opens a
// session on it. The fake engine exists before the first render so tests
// can prime it.
func (e *testEnv) open(text string) (*document.Buffer, *Session, *fakeSurface) {
	e.t.Helper()

	e.mu.Lock()
	e.docs++
	path := filepath.Join(e.dir, fmt.Sprintf("doc%d.md", e.docs))
	e.mu.Unlock()

	id := document.FromPath(path)
	e.mu.Lock()
	if _, ok := e.engines[id.String()]; !ok {
		e.engines[id.String()] = newFakeEngine()
	}
	e.mu.Unlock()

	doc := document.NewBuffer(id, text)
	surf := &fakeSurface{}
	s, err := e.mgr.Open(doc, surf)
	if err != nil {
		e.t.Fatalf("Open() error = %v", err)
	}
	return doc, s, surf
}

// buffer creates a standalone buffer with a primed engine, without
// opening a session on it.
func (e *testEnv) buffer(name, text string) *document.Buffer {
	e.t.Helper()

	id := document.FromPath(filepath.Join(e.dir, name))
	e.mu.Lock()
	if _, ok := e.engines[id.String()]; !ok {
		e.engines[id.String()] = newFakeEngine()
	}
	e.mu.Unlock()
	return document.NewBuffer(id, text)
}

func (e *testEnv) engineFor(doc document.Document) *fakeEngine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engines[doc.ID().String()]
}

func (e *testEnv) constructedEngines() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.constructed
}

// reloadSettings rewrites the settings file and reloads it, firing the
// change observers synchronously.
func (e *testEnv) reloadSettings(body string) {
	e.t.Helper()
	if err := os.WriteFile(e.cfg.Path(), []byte(body), 0o644); err != nil {
		e.t.Fatalf("write settings: %v", err)
	}
	if err := e.cfg.Load(); err != nil {
		e.t.Fatalf("reload settings: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatal(msg)
	}
}

// inboundEnvelope builds an inbound envelope with JSON-encoded args.
func inboundEnvelope(t *testing.T, cmd surface.Command, args ...any) *surface.Envelope {
	t.Helper()

	env := &surface.Envelope{Command: cmd}
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("marshal arg: %v", err)
		}
		env.Args = append(env.Args, raw)
	}
	return env
}
