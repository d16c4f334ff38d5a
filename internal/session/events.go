package session

import (
	"time"

	"github.com/f3rmion/mediscribe/internal/chart"
	"github.com/f3rmion/mediscribe/internal/prompt"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

type (
	StartRecording struct{}
	StopRecording  struct{}

	// TranscriptUpdated carries the full transcript recognised so far.
	TranscriptUpdated struct {
		Epoch uint64
		Text  string
	}

	// CaptureFailed is a terminal error from the speech engine.
	CaptureFailed struct {
		Epoch uint64
		Code  string
		Err   error
	}

	// SpeechUnavailable reports that no speech engine can be used.
	SpeechUnavailable struct {
		Err error
	}

	EditMemo struct {
		Text string
	}

	EditPatient struct {
		Field chart.PatientField
		Value string
	}

	RequestGeneration struct{}

	GenerationSucceeded struct {
		Epoch uint64
		Text  string
	}

	GenerationFailed struct {
		Epoch uint64
		Err   error
	}

	CopyResult struct{}

	// ClipboardWritten reports the outcome of a WriteClipboard effect.
	ClipboardWritten struct {
		Epoch uint64
		Err   error
	}

	CopyExpired struct {
		Seq uint64
	}

	RequestReset struct{}
	ConfirmReset struct{}
	CancelReset  struct{}
)

func (StartRecording) isEvent()      {}
func (StopRecording) isEvent()       {}
func (TranscriptUpdated) isEvent()   {}
func (CaptureFailed) isEvent()       {}
func (SpeechUnavailable) isEvent()   {}
func (EditMemo) isEvent()            {}
func (EditPatient) isEvent()         {}
func (RequestGeneration) isEvent()   {}
func (GenerationSucceeded) isEvent() {}
func (GenerationFailed) isEvent()    {}
func (CopyResult) isEvent()          {}
func (ClipboardWritten) isEvent()    {}
func (CopyExpired) isEvent()         {}
func (RequestReset) isEvent()        {}
func (ConfirmReset) isEvent()        {}
func (CancelReset) isEvent()         {}

// Effect is a side effect requested by Reduce.
type Effect interface {
	isEffect()
}

// FailureKind classifies failures surfaced by the controller.
type FailureKind string

const (
	UnsupportedEnvironment FailureKind = "unsupported_environment"
	CaptureFailure         FailureKind = "capture_failure"
	EmptyInputGuard        FailureKind = "empty_input"
	GenerationFailure      FailureKind = "generation_failure"
	ClipboardFailure       FailureKind = "clipboard_failure"
)

type (
	// StartCapture begins continuous recognition. Snapshots must be
	// reported with the given epoch.
	StartCapture struct {
		Epoch uint64
	}

	StopCapture struct{}

	// Generate runs the chart generation client once.
	Generate struct {
		Epoch   uint64
		Request prompt.Request
	}

	WriteClipboard struct {
		Epoch uint64
		Text  string
	}

	// ExpireCopy must deliver CopyExpired{Seq} after the delay.
	ExpireCopy struct {
		Seq   uint64
		After time.Duration
	}

	ScrollToResult struct{}
	ScrollToTop    struct{}

	// LogFailure records a cause the user never sees.
	LogFailure struct {
		Kind FailureKind
		Code string
		Err  error
	}
)

func (StartCapture) isEffect()   {}
func (StopCapture) isEffect()    {}
func (Generate) isEffect()       {}
func (WriteClipboard) isEffect() {}
func (ExpireCopy) isEffect()     {}
func (ScrollToResult) isEffect() {}
func (ScrollToTop) isEffect()    {}
func (LogFailure) isEffect()     {}
