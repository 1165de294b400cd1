package uploader

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultScriptTimeout bounds a single scripted upload.
const DefaultScriptTimeout = 30 * time.Second

// httpTimeout bounds one HTTP request made from script code.
const httpTimeout = 30 * time.Second

// Script runs a user-provided Lua uploader. The script must define
// upload(path, name) returning a URL string, or nil plus an error
// message. Each call runs in a fresh sandboxed state, so a timed-out or
// crashed script cannot poison later uploads.
type Script struct {
	path    string
	timeout time.Duration
}

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithScriptTimeout sets the per-upload wall-clock limit.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(s *Script) {
		s.timeout = d
	}
}

// NewScript loads and validates the script at path.
func NewScript(path string, opts ...ScriptOption) (*Script, error) {
	s := &Script{path: path, timeout: DefaultScriptTimeout}
	for _, opt := range opts {
		opt(s)
	}

	L, err := s.newState()
	if err != nil {
		return nil, err
	}
	L.Close()
	return s, nil
}

// Name returns the selector for scripted uploads.
func (s *Script) Name() string {
	return "script"
}

// Upload hands the file to the script's upload function.
func (s *Script) Upload(ctx context.Context, sourcePath, docDir string) (*Result, error) {
	L, err := s.newState()
	if err != nil {
		return nil, err
	}
	defer L.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	L.SetContext(ctx)

	base := filepath.Base(sourcePath)
	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal("upload"),
		NRet:    2,
		Protect: true,
	}, lua.LString(sourcePath), lua.LString(base))
	if err != nil {
		return nil, fmt.Errorf("uploader: script: %w", err)
	}

	errVal := L.Get(-1)
	urlVal := L.Get(-2)
	L.Pop(2)

	if url, ok := urlVal.(lua.LString); ok && url != "" {
		return &Result{
			Target:      string(url),
			Description: strings.TrimSuffix(base, filepath.Ext(base)),
		}, nil
	}
	if msg, ok := errVal.(lua.LString); ok && msg != "" {
		return nil, fmt.Errorf("uploader: script: %s", string(msg))
	}
	return nil, errors.New("uploader: script returned no url")
}

// newState builds a sandboxed state with the script loaded. io, os,
// debug and package stay closed; effectful capabilities come only from
// the markview module.
func (s *Script) newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	registerScriptModule(L)

	// Top-level script code runs under the timeout as well.
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoFile(s.path); err != nil {
		L.Close()
		return nil, fmt.Errorf("uploader: load script: %w", err)
	}
	if fn := L.GetGlobal("upload"); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, ErrNoUploadFunction
	}
	return L, nil
}

// registerScriptModule exposes the capabilities an upload script needs.
func registerScriptModule(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"readfile":  luaReadFile,
		"http_post": luaHTTPPost,
		"base64":    luaBase64,
	})
	L.SetGlobal("markview", mod)
}

// luaReadFile reads a file: readfile(path) -> data | nil, err.
func luaReadFile(L *lua.LState) int {
	data, err := os.ReadFile(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(string(data)))
	return 1
}

// luaHTTPPost posts a body: http_post(url, contentType, body) ->
// status, responseBody. Transport failure reports status 0.
func luaHTTPPost(L *lua.LState) int {
	url := L.CheckString(1)
	contentType := L.CheckString(2)
	body := L.CheckString(3)

	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		L.Push(lua.LNumber(0))
		L.Push(lua.LString(err.Error()))
		return 2
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		L.Push(lua.LNumber(0))
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LNumber(resp.StatusCode))
	L.Push(lua.LString(string(data)))
	return 2
}

// luaBase64 encodes a string: base64(data) -> encoded.
func luaBase64(L *lua.LState) int {
	L.Push(lua.LString(base64.StdEncoding.EncodeToString([]byte(L.CheckString(1)))))
	return 1
}
