package surface

// Command identifies a message crossing the surface boundary. Inbound
// commands form a closed set; anything else is ignored by dispatch so
// newer surfaces can speak to older coordinators.
type Command string

// Commands received from the rendering surface.
const (
	CmdWebviewFinishedLoading Command = "webview-finished-loading"
	CmdRefresh                Command = "refresh"
	CmdRevealLine             Command = "reveal-line"
	CmdInsertImageURL         Command = "insert-image-url"
	CmdPasteImageFile         Command = "paste-image-file"
	CmdUploadImageFile        Command = "upload-image-file"
	CmdOpenInBrowser          Command = "open-in-browser"
	CmdExportHTML             Command = "export-html"
	CmdExportPDF              Command = "export-pdf"
	CmdExportPrince           Command = "export-prince"
	CmdExportEbook            Command = "export-ebook"
	CmdExportPandoc           Command = "export-pandoc"
	CmdExportMarkdown         Command = "export-markdown"
	CmdCacheCodeChunkResult   Command = "cache-code-chunk-result"
	CmdRunCodeChunk           Command = "run-code-chunk"
	CmdRunAllCodeChunks       Command = "run-all-code-chunks"
	CmdAnchorClick            Command = "anchor-click"
	CmdTaskCheckboxToggle     Command = "task-checkbox-toggle"
	CmdZoomLevelChange        Command = "zoom-level-change"
	CmdConsoleLog             Command = "console-log"
)

// Commands pushed to the rendering surface.
const (
	OutLoadPreview     Command = "load-preview"
	OutReloadPreview   Command = "reload-preview"
	OutUpdateHTML      Command = "update-html"
	OutChangeSelection Command = "change-text-editor-selection"
	OutStartParsing    Command = "start-parsing-markdown"
)

var inbound = map[Command]bool{
	CmdWebviewFinishedLoading: true,
	CmdRefresh:                true,
	CmdRevealLine:             true,
	CmdInsertImageURL:         true,
	CmdPasteImageFile:         true,
	CmdUploadImageFile:        true,
	CmdOpenInBrowser:          true,
	CmdExportHTML:             true,
	CmdExportPDF:              true,
	CmdExportPrince:           true,
	CmdExportEbook:            true,
	CmdExportPandoc:           true,
	CmdExportMarkdown:         true,
	CmdCacheCodeChunkResult:   true,
	CmdRunCodeChunk:           true,
	CmdRunAllCodeChunks:       true,
	CmdAnchorClick:            true,
	CmdTaskCheckboxToggle:     true,
	CmdZoomLevelChange:        true,
	CmdConsoleLog:             true,
}

// ParseCommand maps a wire name to a known inbound command. The second
// return is false for names outside the closed set.
func ParseCommand(name string) (Command, bool) {
	c := Command(name)
	return c, inbound[c]
}

// Known reports whether c belongs to the inbound command set.
func (c Command) Known() bool {
	return inbound[c]
}

// String returns the wire name.
func (c Command) String() string {
	return string(c)
}
