package uploader

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/markview/internal/document"
)

// searchWindow bounds the outward scan for a hint token whose line moved
// under concurrent edits.
const searchWindow = 20

// Hint is the placeholder left in a document while a transfer runs.
type Hint struct {
	Token string
	Doc   document.Identity
	Line  int
}

// NewHint builds a placeholder for name recorded at the given line. The
// random suffix keeps simultaneous uploads of equally-named files apart.
func NewHint(doc document.Identity, line int, name string) Hint {
	return Hint{
		Token: fmt.Sprintf("![Uploading %s… (%s)]()", name, uuid.NewString()[:8]),
		Doc:   doc,
		Line:  line,
	}
}

// Resolve replaces the hint's token with a markdown image reference. The
// search starts at the recorded line and expands outward one line at a
// time up to the window bound; if the token is gone the call is a no-op
// and returns false.
func Resolve(doc document.Document, hint Hint, res *Result) bool {
	replacement := fmt.Sprintf("![%s](%s)", res.Description, res.Target)
	count := doc.LineCount()

	for delta := 0; delta <= searchWindow; delta++ {
		candidates := []int{hint.Line + delta}
		if delta > 0 {
			candidates = append(candidates, hint.Line-delta)
		}
		for _, line := range candidates {
			if line < 0 || line >= count {
				continue
			}
			text, ok := doc.Line(line)
			if !ok || !strings.Contains(text, hint.Token) {
				continue
			}
			patched := strings.Replace(text, hint.Token, replacement, 1)
			if err := doc.ReplaceLineRange(line, line+1, patched); err != nil {
				return false
			}
			return true
		}
	}
	return false
}
