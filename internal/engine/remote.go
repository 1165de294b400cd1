package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/logger"
	"github.com/dshills/markview/internal/wire"
)

// defaultCallTimeout bounds individual remote calls.
const defaultCallTimeout = 30 * time.Second

// RemoteConfig defines how to start a remote engine process.
type RemoteConfig struct {
	// Command is the engine executable.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// Timeout bounds individual calls (default 30s).
	Timeout time.Duration
}

// Remote is an Engine backed by an external process speaking framed JSON-RPC
// over stdio.
type Remote struct {
	mu sync.Mutex

	config RemoteConfig
	params Params

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	reader *wire.Reader
	writer *wire.Writer

	nextID  atomic.Int64
	pending map[int64]chan *rpcResponse

	closed atomic.Bool
	done   chan struct{}

	log *logrus.Entry
}

// rpcRequest is a JSON-RPC request or notification.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

// RemoteError is an error returned by the engine process.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("engine: remote error %d: %s", e.Code, e.Message)
}

// NewRemote creates a remote engine client (not yet started).
func NewRemote(config RemoteConfig, params Params) *Remote {
	if config.Timeout == 0 {
		config.Timeout = defaultCallTimeout
	}
	return &Remote{
		config:  config,
		params:  params,
		pending: make(map[int64]chan *rpcResponse),
		done:    make(chan struct{}),
		log:     logger.WithComponent("engine.remote"),
	}
}

// RemoteFactory returns a Factory that starts one engine process per
// document using the given command line.
func RemoteFactory(command string, args ...string) Factory {
	return func(params Params) (Engine, error) {
		r := NewRemote(RemoteConfig{Command: command, Args: args}, params)
		if err := r.Start(context.Background()); err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Start launches the engine process and performs the construction handshake.
func (r *Remote) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cmd != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}

	cmd := exec.Command(r.config.Command, r.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range r.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if r.params.ProjectRoot != "" {
		cmd.Dir = r.params.ProjectRoot
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("engine: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		r.mu.Unlock()
		return fmt.Errorf("engine: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		r.mu.Unlock()
		return fmt.Errorf("engine: start process: %w", err)
	}

	r.cmd = cmd
	r.stdin = stdin
	r.stdout = stdout
	r.reader = wire.NewReader(stdout)
	r.writer = wire.NewWriter(stdin)
	r.mu.Unlock()

	go r.readLoop()

	// Construction handshake carries the document binding.
	err = r.call(ctx, "construct", map[string]any{
		"documentPath": r.params.DocumentPath,
		"projectRoot":  r.params.ProjectRoot,
		"config":       r.params.Config,
	}, nil)
	if err != nil {
		r.shutdown()
		return fmt.Errorf("engine: construct: %w", err)
	}

	r.log.WithField("command", r.config.Command).Debug("engine process started")
	return nil
}

// readLoop reads responses from the engine process.
func (r *Remote) readLoop() {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		frame, err := r.reader.ReadFrame()
		if err != nil {
			if !r.closed.Load() && err != io.EOF {
				r.log.WithField("error", err).Debug("engine read loop ended")
			}
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			continue // Not a response; engines send nothing else we consume.
		}
		r.deliver(&resp)
	}
}

// deliver routes a response to its waiting caller.
func (r *Remote) deliver(resp *rpcResponse) {
	r.mu.Lock()
	ch, ok := r.pending[resp.ID]
	if ok {
		delete(r.pending, resp.ID)
	}
	r.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// call sends a request and waits for its response.
func (r *Remote) call(ctx context.Context, method string, params any, result any) error {
	if r.closed.Load() {
		return ErrEngineClosed
	}

	id := r.nextID.Add(1)
	ch := make(chan *rpcResponse, 1)

	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	req := &rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := r.writer.WriteFrame(req); err != nil {
		return fmt.Errorf("engine: send %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrEngineClosed
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("engine: unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// notify sends a request with no response expected.
func (r *Remote) notify(method string, params any) {
	if r.closed.Load() {
		return
	}
	req := &rpcRequest{JSONRPC: "2.0", Method: method, Params: params}
	if err := r.writer.WriteFrame(req); err != nil {
		r.log.WithField("error", err).Debug("engine notify failed")
	}
}

// remoteRenderResult is the wire form of a preview render.
type remoteRenderResult struct {
	HTML         string   `json:"html"`
	TOCHTML      string   `json:"tocHTML"`
	Dependencies []string `json:"dependencies"`
	FrontMatter  struct {
		Presentation bool           `json:"presentation"`
		ID           string         `json:"id"`
		Class        string         `json:"class"`
		Raw          map[string]any `json:"raw"`
	} `json:"frontMatter"`
}

// RenderForPreview renders text for the live preview.
func (r *Remote) RenderForPreview(ctx context.Context, text string, opts PreviewOptions) (*RenderResult, error) {
	var out remoteRenderResult
	err := r.call(ctx, "render", map[string]any{
		"text": text,
		"options": map[string]any{
			"isForPreview":        opts.IsForPreview,
			"useRelativeFilePath": opts.UseRelativeFilePath,
			"hideFrontMatter":     opts.HideFrontMatter,
			"triggeredBySave":     opts.TriggeredBySave,
		},
	}, &out)
	if err != nil {
		return nil, err
	}

	return &RenderResult{
		HTML:         out.HTML,
		TOCHTML:      out.TOCHTML,
		Dependencies: out.Dependencies,
		FrontMatter: FrontMatter{
			Presentation: out.FrontMatter.Presentation,
			ID:           out.FrontMatter.ID,
			Class:        out.FrontMatter.Class,
			Raw:          out.FrontMatter.Raw,
		},
	}, nil
}

// RenderFullTemplate renders a complete standalone artifact.
func (r *Remote) RenderFullTemplate(ctx context.Context, text string, opts TemplateOptions) (string, error) {
	var out struct {
		HTML string `json:"html"`
	}
	err := r.call(ctx, "renderFullTemplate", map[string]any{
		"text": text,
		"options": map[string]any{
			"sourcePath":  opts.SourcePath,
			"initialLine": opts.InitialLine,
			"zoomLevel":   opts.ZoomLevel,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.HTML, nil
}

// Export produces a document in the given format.
func (r *Remote) Export(ctx context.Context, format ExportFormat, text string) (string, error) {
	var out struct {
		Destination string `json:"destination"`
	}
	err := r.call(ctx, "export", map[string]any{
		"format": string(format),
		"text":   text,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Destination, nil
}

// RunCodeChunk executes one code chunk.
func (r *Remote) RunCodeChunk(ctx context.Context, chunkID string) error {
	return r.call(ctx, "runCodeChunk", map[string]any{"id": chunkID}, nil)
}

// RunAllCodeChunks executes every code chunk.
func (r *Remote) RunAllCodeChunks(ctx context.Context) error {
	return r.call(ctx, "runAllCodeChunks", nil, nil)
}

// CacheCodeChunkResult stores a chunk result produced by the surface.
func (r *Remote) CacheCodeChunkResult(chunkID, result string) {
	r.notify("cacheCodeChunkResult", map[string]any{"id": chunkID, "result": result})
}

// ClearCaches drops engine-internal caches.
func (r *Remote) ClearCaches() {
	r.notify("clearCaches", nil)
}

// UpdateConfiguration applies a new configuration snapshot.
func (r *Remote) UpdateConfiguration(cfg map[string]any) {
	r.notify("updateConfiguration", map[string]any{"config": cfg})
}

// Close shuts the engine process down.
func (r *Remote) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.notifyShutdown()
	r.shutdown()
	return nil
}

// notifyShutdown asks the process to exit cleanly; best effort.
func (r *Remote) notifyShutdown() {
	if r.writer == nil {
		return
	}
	req := &rpcRequest{JSONRPC: "2.0", Method: "shutdown"}
	_ = r.writer.WriteFrame(req)
}

// shutdown tears down the process and wakes all waiters.
func (r *Remote) shutdown() {
	r.closed.Store(true)

	select {
	case <-r.done:
	default:
		close(r.done)
	}

	r.mu.Lock()
	r.pending = make(map[int64]chan *rpcResponse)
	cmd := r.cmd
	stdin := r.stdin
	stdout := r.stdout
	r.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}
	if stdout != nil {
		stdout.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}
