// Package tui provides the interactive terminal UI for mediscribe.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/f3rmion/mediscribe/internal/chart"
	"github.com/f3rmion/mediscribe/internal/clipboard"
	"github.com/f3rmion/mediscribe/internal/logging"
	"github.com/f3rmion/mediscribe/internal/prompt"
	"github.com/f3rmion/mediscribe/internal/session"
	"github.com/f3rmion/mediscribe/internal/speech"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChartGenerator turns a session request into chart text.
type ChartGenerator interface {
	GenerateChart(ctx context.Context, req prompt.Request) (string, error)
}

// Options wires the collaborators of the app. Nil fields fall back to
// an unavailable collaborator or a no-op.
type Options struct {
	Generator   ChartGenerator
	Recognizer  speech.Recognizer
	Clipboard   func(string) error
	Logger      *zap.SugaredLogger
	CopyConfirm time.Duration
}

type focusArea int

const (
	focusName focusArea = iota
	focusAge
	focusGender
	focusMemo
	focusResult
	focusCount
)

func (f focusArea) next() focusArea { return (f + 1) % focusCount }
func (f focusArea) prev() focusArea { return (f + focusCount - 1) % focusCount }

// AppModel is the main TUI model. All session data lives in state and only
// changes through session.Reduce.
type AppModel struct {
	state     session.State
	sessionID string

	generator  ChartGenerator
	recognizer speech.Recognizer
	clipboard  func(string) error
	logger     *zap.SugaredLogger

	// stream is the capture currently owned by the session, if any.
	stream speech.Stream

	// Widgets
	name       textinput.Model
	age        textinput.Model
	memo       textarea.Model
	transcript viewport.Model
	result     viewport.Model
	spinner    spinner.Model
	focus      focusArea

	// Layout state
	width  int
	height int
	ready  bool

	showHelp bool
}

// NewApp creates the TUI application.
func NewApp(opts Options) AppModel {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.Write
	}

	state := session.New()
	state.CopyConfirm = opts.CopyConfirm

	name := textinput.New()
	name.Prompt = ""
	name.Placeholder = "성함"
	name.CharLimit = 40
	name.Width = 16
	name.TextStyle = ValueStyle
	name.Focus()

	age := textinput.New()
	age.Prompt = ""
	age.Placeholder = "나이"
	age.CharLimit = 10
	age.Width = 6
	age.TextStyle = ValueStyle

	memo := textarea.New()
	memo.Placeholder = "맥진, 설진, 변증 키워드 등을 기록하세요..."
	memo.ShowLineNumbers = false
	memo.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = LoadingStyle

	m := AppModel{
		state:      state,
		sessionID:  uuid.NewString(),
		generator:  opts.Generator,
		recognizer: opts.Recognizer,
		clipboard:  clip,
		logger:     logger,
		name:       name,
		age:        age,
		memo:       memo,
		transcript: viewport.New(40, 8),
		result:     viewport.New(80, 8),
		spinner:    sp,
		focus:      focusName,
	}
	m.refreshContent()
	return m
}

// State returns the current session state.
func (m AppModel) State() session.State {
	return m.state
}

// Init probes speech support and starts the cursor blink.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, probeSpeech(m.recognizer))
}

// Update handles messages
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case session.Event:
		return m.apply(msg)

	case captureStartedMsg:
		if m.stream == nil && m.state.Listening && msg.epoch == m.state.Epoch {
			m.stream = msg.stream
			m.logger.Debugw("speech capture started", "session", m.sessionID)
			return m, waitForSpeech(msg.epoch, msg.stream)
		}
		// Recording was stopped or reset while the stream was opening.
		return m, stopStream(msg.stream)

	case speechMsg:
		return m.handleSpeech(msg)

	case streamStoppedMsg:
		if msg.err != nil {
			m.logger.Warnw("stopping speech capture", "session", m.sessionID, "error", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.state.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Help overlay - any key closes it
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	// The prompt only claims its own keys; everything else keeps editing.
	if m.state.ConfirmingReset {
		switch msg.String() {
		case "ctrl+n":
			return m.apply(session.ConfirmReset{})
		case "esc":
			return m.apply(session.CancelReset{})
		}
	}

	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "f1":
		m.showHelp = true
		return m, nil
	case "ctrl+r":
		if m.state.Listening {
			return m.apply(session.StopRecording{})
		}
		return m.apply(session.StartRecording{})
	case "ctrl+g":
		return m.apply(session.RequestGeneration{})
	case "ctrl+y":
		return m.apply(session.CopyResult{})
	case "ctrl+n":
		return m.apply(session.RequestReset{})
	case "tab":
		return m, m.setFocus(m.focus.next())
	case "shift+tab":
		return m, m.setFocus(m.focus.prev())
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.result, cmd = m.result.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

// updateFocused forwards msg to the focused widget and turns any edit into
// a session event.
func (m AppModel) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.focus {
	case focusName:
		m.name, cmd = m.name.Update(msg)
		if v := m.name.Value(); v != m.state.Patient.Name {
			return m.applyWith(cmd, session.EditPatient{Field: chart.FieldName, Value: v})
		}
	case focusAge:
		m.age, cmd = m.age.Update(msg)
		if v := m.age.Value(); v != m.state.Patient.Age {
			return m.applyWith(cmd, session.EditPatient{Field: chart.FieldAge, Value: v})
		}
	case focusGender:
		key, ok := msg.(tea.KeyMsg)
		if !ok {
			return m, nil
		}
		g := m.state.Patient.Gender
		switch key.String() {
		case " ", "enter", "right", "l":
			g = g.Next()
		case "left", "h":
			g = g.Next().Next()
		default:
			return m, nil
		}
		return m.apply(session.EditPatient{Field: chart.FieldGender, Value: string(g)})
	case focusMemo:
		m.memo, cmd = m.memo.Update(msg)
		if v := m.memo.Value(); v != m.state.Memo {
			return m.applyWith(cmd, session.EditMemo{Text: v})
		}
	case focusResult:
		m.result, cmd = m.result.Update(msg)
	}

	return m, cmd
}

// apply runs ev through the session reducer and turns the resulting
// effects into commands.
func (m AppModel) apply(ev session.Event) (tea.Model, tea.Cmd) {
	prevEpoch := m.state.Epoch
	next, effects := session.Reduce(m.state, ev)
	m.state = next

	if next.Epoch != prevEpoch {
		old := m.sessionID
		m.sessionID = uuid.NewString()
		m.logger.Infow("session reset", "previous", old, "session", m.sessionID)
	}
	m.syncInputs()
	m.refreshContent()

	cmds := make([]tea.Cmd, 0, len(effects))
	for _, eff := range effects {
		cmds = append(cmds, m.run(eff))
	}
	return m, tea.Batch(cmds...)
}

func (m AppModel) applyWith(cmd tea.Cmd, ev session.Event) (tea.Model, tea.Cmd) {
	model, next := m.apply(ev)
	return model, tea.Batch(cmd, next)
}

func (m AppModel) handleSpeech(msg speechMsg) (tea.Model, tea.Cmd) {
	if msg.closed {
		if m.stream != msg.stream {
			return m, nil
		}
		m.stream = nil
		// The engine ended on its own.
		if m.state.Listening && msg.epoch == m.state.Epoch {
			return m.apply(session.StopRecording{})
		}
		return m, nil
	}

	pump := waitForSpeech(msg.epoch, msg.stream)
	// A stopped stream still draining yields to the one that replaced it.
	if m.stream != nil && msg.stream != m.stream {
		return m, pump
	}
	if msg.event.Terminal() {
		return m.applyWith(pump, session.CaptureFailed{
			Epoch: msg.epoch,
			Code:  msg.event.Code,
			Err:   msg.event.Err,
		})
	}
	return m.applyWith(pump, session.TranscriptUpdated{Epoch: msg.epoch, Text: msg.event.Transcript})
}

func (m AppModel) quit() (tea.Model, tea.Cmd) {
	if m.stream == nil {
		return m, tea.Quit
	}
	s := m.stream
	m.stream = nil
	return m, tea.Sequence(stopStream(s), tea.Quit)
}

func (m *AppModel) setFocus(f focusArea) tea.Cmd {
	m.focus = f
	m.name.Blur()
	m.age.Blur()
	m.memo.Blur()

	switch f {
	case focusName:
		return m.name.Focus()
	case focusAge:
		return m.age.Focus()
	case focusMemo:
		return m.memo.Focus()
	}
	return nil
}

// syncInputs copies session values into widgets after a reset cleared them.
func (m *AppModel) syncInputs() {
	if m.name.Value() != m.state.Patient.Name {
		m.name.SetValue(m.state.Patient.Name)
	}
	if m.age.Value() != m.state.Patient.Age {
		m.age.SetValue(m.state.Patient.Age)
	}
	if m.memo.Value() != m.state.Memo {
		m.memo.SetValue(m.state.Memo)
	}
}

func (m *AppModel) layout() {
	paneWidth := (m.width - 4) / 2
	inner := max(paneWidth-4, 10)

	paneHeight := max((m.height-8)/2, 6)
	resultHeight := max(m.height-8-paneHeight, 5)

	m.transcript.Width = inner
	m.transcript.Height = paneHeight - 3
	m.memo.SetWidth(inner)
	m.memo.SetHeight(paneHeight - 3)

	m.result.Width = max(m.width-8, 10)
	m.result.Height = max(resultHeight-4, 1)

	m.refreshContent()
}

func (m *AppModel) refreshContent() {
	if m.state.Transcript == "" {
		m.transcript.SetContent(PlaceholderStyle.Render("환자와의 대화를 실시간 기록합니다."))
	} else {
		m.transcript.SetContent(wrapText(m.state.Transcript, m.transcript.Width))
		if m.state.Listening {
			m.transcript.GotoBottom()
		}
	}
	m.result.SetContent(wrapText(m.state.Chart, m.result.Width))
}

// paneWidth is shared by the transcript and memo panes.
func (m AppModel) paneWidth() int {
	return max((m.width-4)/2, 14)
}

func (m AppModel) paneStyle(focused bool) lipgloss.Style {
	if focused {
		return PaneFocusedStyle
	}
	return PaneStyle
}
