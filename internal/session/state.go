// Package session implements the session state controller.
//
// A session is a single value of [State]. Every user action or collaborator
// callback is an [Event]; [Reduce] applies it and returns the next state plus
// the [Effect]s the caller must run. Reduce never performs I/O, so the whole
// controller is testable without a terminal, microphone or network.
package session

import (
	"time"

	"github.com/f3rmion/mediscribe/internal/chart"
	"github.com/f3rmion/mediscribe/internal/prompt"
)

// User-facing messages. Causes are logged, never shown.
const (
	ErrMsgUnsupported = "이 환경은 음성 인식을 지원하지 않습니다. 음성 인식 설정을 확인하세요."
	ErrMsgEmptyInput  = "음성 기록이나 메모 중 하나는 입력되어야 합니다."
	ErrMsgGeneration  = "AI 차트 생성 중 오류가 발생했습니다. 다시 시도해주세요."
)

// DefaultCopyConfirm is how long the copy confirmation stays visible.
const DefaultCopyConfirm = 2 * time.Second

// State is the complete mutable data of one session.
type State struct {
	Patient    chart.PatientInfo
	Transcript string
	Memo       string

	// Chart is the generated chart; empty means no chart.
	Chart   string
	Loading bool
	Error   string

	Listening       bool
	CopyConfirmed   bool
	ConfirmingReset bool

	// SpeechUnsupported is fixed at startup and survives resets.
	SpeechUnsupported bool

	// Epoch increments on every confirmed reset. Results started under an
	// older epoch are dropped.
	Epoch uint64

	// CopySeq identifies the newest copy confirmation so older expiry
	// timers cannot clear it early.
	CopySeq uint64

	// CopyConfirm overrides DefaultCopyConfirm when positive.
	CopyConfirm time.Duration
}

// New returns an empty session.
func New() State {
	return State{}
}

// Request returns the generation input for the current session.
func (s State) Request() prompt.Request {
	return prompt.Request{
		Patient:    s.Patient,
		Transcript: s.Transcript,
		Memo:       s.Memo,
	}
}

// HasInput reports whether the transcript or memo has non-whitespace content.
func (s State) HasInput() bool {
	return s.Request().HasContent()
}

// CanGenerate reports whether the generate action is enabled.
func (s State) CanGenerate() bool {
	return !s.Listening && !s.Loading && s.HasInput()
}

// CanCopy reports whether a chart exists to copy.
func (s State) CanCopy() bool {
	return s.Chart != ""
}

// CanRecord reports whether recording can be toggled at all.
func (s State) CanRecord() bool {
	return !s.SpeechUnsupported
}

// HasResult reports whether the result panel has anything to show.
func (s State) HasResult() bool {
	return s.Chart != "" || s.Loading || s.Error != ""
}

func (s State) copyConfirm() time.Duration {
	if s.CopyConfirm > 0 {
		return s.CopyConfirm
	}
	return DefaultCopyConfirm
}
