// Package speech provides continuous speech recognition that reports the
// whole transcript recognised so far on every update.
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrUnsupported wraps every reason recognition cannot run in this environment.
var ErrUnsupported = errors.New("speech recognition unsupported")

// Error codes carried by terminal events.
const (
	CodeNetwork      = "network"
	CodeAudioCapture = "audio-capture"
	CodeProvider     = "provider"
)

// Event is a recognition update. A non-nil Err marks the terminal event of a stream.
type Event struct {
	// Transcript is the concatenation of every segment recognised so far.
	Transcript string
	Code       string
	Err        error
}

// Terminal reports whether the event ends the stream with an error.
func (e Event) Terminal() bool {
	return e.Err != nil
}

// Stream is one running capture.
type Stream interface {
	// Events is closed once the stream has fully ended.
	Events() <-chan Event
	// Stop ends capture and waits for pending results to flush.
	Stop() error
}

// Recognizer starts capture streams.
type Recognizer interface {
	// Probe reports an ErrUnsupported-wrapped error when capture can never work.
	Probe() error
	Start(ctx context.Context) (Stream, error)
}

// Segment is one recognition result from a provider.
type Segment struct {
	Text  string
	Final bool
}

// Aggregator rebuilds the cumulative transcript from provider segments:
// every final segment in order followed by the current interim one.
type Aggregator struct {
	mu      sync.Mutex
	finals  []string
	interim string
	last    string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add applies seg and returns the new snapshot and whether it changed.
func (a *Aggregator) Add(seg Segment) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(seg.Text)
	if seg.Final {
		if text != "" {
			a.finals = append(a.finals, text)
		}
		a.interim = ""
	} else {
		a.interim = text
	}

	snapshot := a.snapshotLocked()
	changed := snapshot != a.last
	a.last = snapshot
	return snapshot, changed
}

// Snapshot returns the current cumulative transcript.
func (a *Aggregator) Snapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() string {
	parts := a.finals
	if a.interim != "" {
		parts = append(parts[:len(parts):len(parts)], a.interim)
	}
	return strings.Join(parts, " ")
}
