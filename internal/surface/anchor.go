package surface

import (
	"os/exec"
	"path"
	"runtime"
	"strings"
)

// AnchorAction says how a clicked link should open.
type AnchorAction int

const (
	// AnchorOpenNative hands the target to the platform opener.
	AnchorOpenNative AnchorAction = iota

	// AnchorOpenDocument opens the target as a document in the host editor.
	AnchorOpenDocument
)

// officeExtensions always route through the native opener even when the
// link is a local file.
var officeExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".xls":  true,
	".xlsx": true,
}

// RouteAnchor decides how to open a clicked link. A file:// target is
// stripped of its scheme and any trailing anchor or query, then either
// handed to the native opener (office documents) or opened in the host
// editor. Everything else goes native unchanged.
func RouteAnchor(href string) (AnchorAction, string) {
	if !strings.HasPrefix(href, "file://") {
		return AnchorOpenNative, href
	}

	p := strings.TrimPrefix(href, "file://")
	if i := strings.IndexAny(p, "#?"); i >= 0 {
		p = strings.TrimRight(p[:i], " \t")
	}
	if officeExtensions[strings.ToLower(path.Ext(p))] {
		return AnchorOpenNative, p
	}
	return AnchorOpenDocument, p
}

// Opener opens a target with an external program.
type Opener interface {
	Open(target string) error
}

// NativeOpener shells out to the platform's default opener.
type NativeOpener struct{}

// Open launches the target detached; it does not wait for completion.
func (NativeOpener) Open(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
