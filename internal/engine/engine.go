// Package engine defines the render engine collaborator: the external
// component that turns raw markdown text into structured render output.
// Markview never parses markdown itself; it drives an Engine and routes the
// results.
package engine

import (
	"context"
	"sort"
)

// Params carries engine construction inputs.
type Params struct {
	// DocumentPath is the absolute path of the document the engine serves.
	DocumentPath string

	// ProjectRoot is the workspace root used to resolve relative resources.
	ProjectRoot string

	// Config is the engine configuration snapshot.
	Config map[string]any
}

// PreviewOptions controls a preview render.
type PreviewOptions struct {
	// IsForPreview selects preview output over export output.
	IsForPreview bool

	// UseRelativeFilePath resolves image and link targets relative to the
	// document instead of absolute paths.
	UseRelativeFilePath bool

	// HideFrontMatter strips front matter from the rendered output.
	HideFrontMatter bool

	// TriggeredBySave marks renders caused by an explicit save.
	TriggeredBySave bool
}

// TemplateOptions controls a full-template render for reload artifacts.
type TemplateOptions struct {
	// SourcePath is the document path embedded into the artifact so the
	// surface can attribute messages.
	SourcePath string

	// InitialLine is the line the surface scrolls to after loading.
	InitialLine int

	// ZoomLevel is the zoom factor baked into the artifact.
	ZoomLevel float64
}

// FrontMatter is the parsed front matter of a render.
type FrontMatter struct {
	// Presentation is true when the document declares presentation mode.
	Presentation bool

	// ID and Class are per-document identifier/class metadata applied to
	// the preview container.
	ID    string
	Class string

	// Raw holds the full parsed front matter mapping.
	Raw map[string]any
}

// RenderResult is the structured output of a preview render.
type RenderResult struct {
	// HTML is the rendered document body.
	HTML string

	// TOCHTML is the table-of-contents fragment.
	TOCHTML string

	// Dependencies lists the external script/style resources the output
	// requires. Compared set-wise between renders to decide reloads.
	Dependencies []string

	// FrontMatter is the parsed front matter.
	FrontMatter FrontMatter
}

// ExportFormat names an export operation.
type ExportFormat string

// Export formats.
const (
	ExportHTML     ExportFormat = "html"
	ExportPDF      ExportFormat = "pdf"
	ExportPrince   ExportFormat = "prince"
	ExportEbook    ExportFormat = "ebook"
	ExportPandoc   ExportFormat = "pandoc"
	ExportMarkdown ExportFormat = "markdown"
)

// Engine renders markdown for one document. Implementations may be remote
// processes; all rendering calls accept a context and may fail.
type Engine interface {
	// RenderForPreview renders text for the live preview.
	RenderForPreview(ctx context.Context, text string, opts PreviewOptions) (*RenderResult, error)

	// RenderFullTemplate renders a complete standalone artifact used when
	// the surface must reload wholesale.
	RenderFullTemplate(ctx context.Context, text string, opts TemplateOptions) (string, error)

	// Export produces a document in the given format and returns the
	// destination path.
	Export(ctx context.Context, format ExportFormat, text string) (string, error)

	// RunCodeChunk executes the code chunk with the given id.
	RunCodeChunk(ctx context.Context, chunkID string) error

	// RunAllCodeChunks executes every code chunk in the document.
	RunAllCodeChunks(ctx context.Context) error

	// CacheCodeChunkResult stores a chunk result produced by the surface.
	CacheCodeChunkResult(chunkID, result string)

	// ClearCaches drops engine-internal caches.
	ClearCaches()

	// UpdateConfiguration applies a new configuration snapshot.
	UpdateConfiguration(cfg map[string]any)

	// Close releases engine resources.
	Close() error
}

// Factory constructs an Engine for a document.
type Factory func(Params) (Engine, error)

// DepsEqual reports whether two dependency lists contain the same set of
// resources, ignoring order and duplicates.
func DepsEqual(a, b []string) bool {
	return depsKey(a) == depsKey(b)
}

// depsKey produces a canonical form of a dependency list.
func depsKey(deps []string) string {
	if len(deps) == 0 {
		return ""
	}
	set := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		set[d] = struct{}{}
	}
	uniq := make([]string, 0, len(set))
	for d := range set {
		uniq = append(uniq, d)
	}
	sort.Strings(uniq)

	key := ""
	for _, d := range uniq {
		key += d + "\x00"
	}
	return key
}
