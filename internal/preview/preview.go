// Package preview is markview's session coordination core. A Session binds
// one host document to one rendering surface and keeps the two in step: it
// decides between incremental patches and full reloads as the text changes,
// mirrors scrolling in both directions, dispatches surface commands, and
// resolves asynchronous image uploads back into the text. A Manager owns
// the sessions and applies the configured single-preview and close
// policies.
package preview

import (
	"github.com/sirupsen/logrus"

	"github.com/dshills/markview/internal/logger"
)

// Notifier surfaces user-visible messages. Hosts provide their own
// implementation; the default writes to the process log.
type Notifier interface {
	// Info reports a success or progress message.
	Info(msg string)

	// Error reports a failure the user should see.
	Error(msg string)
}

// LogNotifier is the default Notifier, backed by the process log.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notify")}
}

// Info logs at info level.
func (n *LogNotifier) Info(msg string) {
	n.log.Info(msg)
}

// Error logs at error level.
func (n *LogNotifier) Error(msg string) {
	n.log.Error(msg)
}

// UpdatePayload carries an incremental patch to the surface.
type UpdatePayload struct {
	HTML       string `json:"html"`
	TOCHTML    string `json:"tocHTML"`
	TotalLines int    `json:"totalLineCount"`
	Source     string `json:"sourceUri"`
	ID         string `json:"id,omitempty"`
	Class      string `json:"class,omitempty"`
}

// SelectionPayload announces the document position the surface should
// align its view with.
type SelectionPayload struct {
	Line     int     `json:"line"`
	TopRatio float64 `json:"topRatio"`
}
