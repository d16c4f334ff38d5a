package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/f3rmion/mediscribe/internal/llm"
	"github.com/f3rmion/mediscribe/internal/session"
	"github.com/f3rmion/mediscribe/internal/speech"
)

// captureStartedMsg hands a freshly opened stream to the model.
type captureStartedMsg struct {
	epoch  uint64
	stream speech.Stream
}

// speechMsg carries one recognizer event, or the end of the stream.
type speechMsg struct {
	epoch  uint64
	stream speech.Stream
	event  speech.Event
	closed bool
}

type streamStoppedMsg struct {
	err error
}

// run turns one reducer effect into a command.
func (m *AppModel) run(eff session.Effect) tea.Cmd {
	switch e := eff.(type) {
	case session.StartCapture:
		return startCapture(m.recognizer, e.Epoch)

	case session.StopCapture:
		if m.stream == nil {
			return nil
		}
		s := m.stream
		m.stream = nil
		return stopStream(s)

	case session.Generate:
		return tea.Batch(generate(m.generator, e), m.spinner.Tick)

	case session.WriteClipboard:
		write := m.clipboard
		epoch, text := e.Epoch, e.Text
		return func() tea.Msg {
			return session.ClipboardWritten{Epoch: epoch, Err: write(text)}
		}

	case session.ExpireCopy:
		seq := e.Seq
		return tea.Tick(e.After, func(time.Time) tea.Msg {
			return session.CopyExpired{Seq: seq}
		})

	case session.ScrollToResult:
		m.result.GotoTop()
		return m.setFocus(focusResult)

	case session.ScrollToTop:
		m.result.GotoTop()
		m.transcript.GotoTop()
		return m.setFocus(focusName)

	case session.LogFailure:
		m.logFailure(e)
		return nil
	}
	return nil
}

func (m *AppModel) logFailure(e session.LogFailure) {
	fields := []any{"session", m.sessionID, "kind", string(e.Kind)}
	if e.Code != "" {
		fields = append(fields, "code", e.Code)
	}
	if e.Err != nil {
		fields = append(fields, "error", e.Err)
	}

	switch e.Kind {
	case session.UnsupportedEnvironment:
		m.logger.Infow("speech recognition unavailable", fields...)
	case session.GenerationFailure:
		m.logger.Errorw("chart generation failed", fields...)
	default:
		m.logger.Warnw("session failure", fields...)
	}
}

func probeSpeech(rec speech.Recognizer) tea.Cmd {
	return func() tea.Msg {
		if rec == nil {
			return session.SpeechUnavailable{Err: speech.ErrUnsupported}
		}
		if err := rec.Probe(); err != nil {
			return session.SpeechUnavailable{Err: err}
		}
		return nil
	}
}

func startCapture(rec speech.Recognizer, epoch uint64) tea.Cmd {
	return func() tea.Msg {
		if rec == nil {
			return session.SpeechUnavailable{Err: speech.ErrUnsupported}
		}
		stream, err := rec.Start(context.Background())
		if err != nil {
			if errors.Is(err, speech.ErrUnsupported) {
				return session.SpeechUnavailable{Err: err}
			}
			return session.CaptureFailed{Epoch: epoch, Code: speech.CodeOf(err), Err: err}
		}
		return captureStartedMsg{epoch: epoch, stream: stream}
	}
}

// waitForSpeech reads the next event from stream. The model re-issues it
// after every event until the stream closes.
func waitForSpeech(epoch uint64, stream speech.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-stream.Events()
		return speechMsg{epoch: epoch, stream: stream, event: ev, closed: !ok}
	}
}

func stopStream(stream speech.Stream) tea.Cmd {
	return func() tea.Msg {
		return streamStoppedMsg{err: stream.Stop()}
	}
}

// generate runs one chart request. In-flight requests are never cancelled;
// a result from an older epoch is dropped by the reducer.
func generate(gen ChartGenerator, e session.Generate) tea.Cmd {
	epoch := e.Epoch
	req := e.Request
	return func() tea.Msg {
		if gen == nil {
			return session.GenerationFailed{Epoch: epoch, Err: llm.ErrNotConfigured}
		}
		text, err := gen.GenerateChart(context.Background(), req)
		if err != nil {
			return session.GenerationFailed{Epoch: epoch, Err: err}
		}
		return session.GenerationSucceeded{Epoch: epoch, Text: text}
	}
}
