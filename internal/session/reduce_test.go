package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/f3rmion/mediscribe/internal/chart"
)

// apply runs events in order and collects every effect.
func apply(s State, events ...Event) (State, []Effect) {
	var all []Effect
	for _, ev := range events {
		var effects []Effect
		s, effects = Reduce(s, ev)
		all = append(all, effects...)
	}
	return s, all
}

func countEffects[T Effect](effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func findEffect[T Effect](effects []Effect) (T, bool) {
	for _, e := range effects {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func populated() State {
	return State{
		Patient:         chart.PatientInfo{Name: "김철수", Age: "40", Gender: chart.GenderMale},
		Transcript:      "허리가 아파요",
		Memo:            "맥 침세",
		Chart:           "CC: 요통",
		Error:           "previous",
		Listening:       true,
		CopyConfirmed:   true,
		ConfirmingReset: true,
		Loading:         true,
		Epoch:           3,
		CopySeq:         2,
	}
}

func TestTranscriptOverwriteSemantics(t *testing.T) {
	s, _ := Reduce(New(), StartRecording{})

	snapshots := []string{"허리가", "허리가 아파요", "허리가 아파요 삼 일 전부터"}
	for i, snap := range snapshots {
		s, _ = Reduce(s, TranscriptUpdated{Epoch: s.Epoch, Text: snap})
		if s.Transcript != snapshots[i] {
			t.Fatalf("after event %d transcript = %q, want %q", i+1, s.Transcript, snapshots[i])
		}
	}
	if strings.Count(s.Transcript, "허리가") != 1 {
		t.Errorf("snapshots must not be concatenated: %q", s.Transcript)
	}
}

func TestStaleTranscriptIgnored(t *testing.T) {
	s := State{Epoch: 2, Transcript: "current"}
	s, _ = Reduce(s, TranscriptUpdated{Epoch: 1, Text: "late"})
	if s.Transcript != "current" {
		t.Errorf("stale snapshot applied: %q", s.Transcript)
	}
}

func TestStartStopRecording(t *testing.T) {
	s, effects := Reduce(New(), StartRecording{})
	if !s.Listening {
		t.Fatal("expected listening")
	}
	if start, ok := findEffect[StartCapture](effects); !ok || start.Epoch != s.Epoch {
		t.Fatalf("expected StartCapture effect, got %v", effects)
	}

	_, effects = Reduce(s, StartRecording{})
	if len(effects) != 0 {
		t.Errorf("start while recording must be rejected, got %v", effects)
	}

	s, _ = Reduce(s, TranscriptUpdated{Epoch: s.Epoch, Text: "기록"})
	s, effects = Reduce(s, StopRecording{})
	if s.Listening {
		t.Error("expected stopped")
	}
	if countEffects[StopCapture](effects) != 1 {
		t.Errorf("expected StopCapture, got %v", effects)
	}
	if s.Transcript != "기록" {
		t.Errorf("transcript must survive stop, got %q", s.Transcript)
	}

	_, effects = Reduce(s, StopRecording{})
	if len(effects) != 0 {
		t.Errorf("stop while idle must be a no-op, got %v", effects)
	}
}

func TestCaptureFailureForcesStop(t *testing.T) {
	s, _ := Reduce(New(), StartRecording{})
	cause := errors.New("no-speech")

	s, effects := Reduce(s, CaptureFailed{Epoch: s.Epoch, Code: "network", Err: cause})
	if s.Listening {
		t.Fatal("capture failure must force listening off")
	}
	logged, ok := findEffect[LogFailure](effects)
	if !ok || logged.Kind != CaptureFailure || logged.Code != "network" || !errors.Is(logged.Err, cause) {
		t.Errorf("expected logged capture failure, got %v", effects)
	}
	if s.Error != "" {
		t.Errorf("capture failure is not shown to the user, got %q", s.Error)
	}

	// The user may restart manually.
	s, effects = Reduce(s, StartRecording{})
	if !s.Listening || countEffects[StartCapture](effects) != 1 {
		t.Errorf("expected manual restart to work")
	}
}

func TestSpeechUnavailableDisablesRecording(t *testing.T) {
	s, effects := Reduce(New(), SpeechUnavailable{Err: errors.New("no key")})
	if s.Error != ErrMsgUnsupported {
		t.Errorf("Error = %q", s.Error)
	}
	if s.CanRecord() {
		t.Error("recording must be unavailable")
	}
	if l, ok := findEffect[LogFailure](effects); !ok || l.Kind != UnsupportedEnvironment {
		t.Errorf("expected unsupported log, got %v", effects)
	}

	s, effects = Reduce(s, StartRecording{})
	if s.Listening || len(effects) != 0 {
		t.Error("start must be rejected when speech is unsupported")
	}

	// The rest of the app keeps working.
	s, _ = Reduce(s, EditMemo{Text: "메모"})
	s, effects = Reduce(s, RequestGeneration{})
	if countEffects[Generate](effects) != 1 {
		t.Errorf("generation must still work, got %v", effects)
	}

	s, _ = Reduce(s, ConfirmReset{})
	if s.CanRecord() {
		t.Error("unsupported environment persists for the session")
	}
}

func TestEditsAreVerbatim(t *testing.T) {
	s, _ := apply(New(),
		EditMemo{Text: "  맥 침세\n설 담백  "},
		EditPatient{Field: chart.FieldName, Value: "김철수"},
		EditPatient{Field: chart.FieldAge, Value: "마흔"},
		EditPatient{Field: chart.FieldGender, Value: "남성"},
	)
	if s.Memo != "  맥 침세\n설 담백  " {
		t.Errorf("memo = %q", s.Memo)
	}
	want := chart.PatientInfo{Name: "김철수", Age: "마흔", Gender: chart.GenderMale}
	if s.Patient != want {
		t.Errorf("patient = %+v, want %+v", s.Patient, want)
	}
}

func TestEditsAllowedWhileConfirmingReset(t *testing.T) {
	s, _ := apply(New(), RequestReset{}, EditMemo{Text: "still editable"})
	if s.Memo != "still editable" || !s.ConfirmingReset {
		t.Errorf("unexpected state: %+v", s)
	}
}

func TestRequestGenerationGuards(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		wantGen   bool
		wantError string
	}{
		{
			name:      "empty transcript and whitespace memo",
			state:     State{Transcript: "", Memo: "   "},
			wantError: ErrMsgEmptyInput,
		},
		{
			name:  "recording",
			state: State{Transcript: "통증", Listening: true},
		},
		{
			name:  "already loading",
			state: State{Memo: "메모", Loading: true},
		},
		{
			name:    "transcript only",
			state:   State{Transcript: "통증", Error: "old"},
			wantGen: true,
		},
		{
			name:    "memo only",
			state:   State{Memo: "맥"},
			wantGen: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, effects := Reduce(tt.state, RequestGeneration{})
			gen := countEffects[Generate](effects)
			if tt.wantGen {
				if gen != 1 {
					t.Fatalf("expected one Generate effect, got %v", effects)
				}
				if !s.Loading || s.Error != "" {
					t.Errorf("expected loading with cleared error, got %+v", s)
				}
				return
			}
			if gen != 0 {
				t.Fatalf("generation must not be invoked, got %v", effects)
			}
			if s.Error != tt.wantError && tt.wantError != "" {
				t.Errorf("Error = %q, want %q", s.Error, tt.wantError)
			}
			if s.Loading != tt.state.Loading {
				t.Errorf("loading flag changed by rejected request")
			}
		})
	}
}

func TestSecondRequestWhileLoadingIssuesNoCall(t *testing.T) {
	s := State{Memo: "메모"}
	s, effects := apply(s, RequestGeneration{}, RequestGeneration{}, RequestGeneration{})
	if n := countEffects[Generate](effects); n != 1 {
		t.Fatalf("expected exactly one Generate effect, got %d", n)
	}
	if !s.Loading {
		t.Error("expected loading")
	}
}

func TestGenerateEffectCarriesSessionData(t *testing.T) {
	s := State{
		Patient:    chart.PatientInfo{Name: "김", Age: "40", Gender: chart.GenderFemale},
		Transcript: "t",
		Memo:       "m",
		Epoch:      7,
	}
	_, effects := Reduce(s, RequestGeneration{})
	gen, ok := findEffect[Generate](effects)
	if !ok {
		t.Fatal("expected Generate")
	}
	if gen.Epoch != 7 || gen.Request.Transcript != "t" || gen.Request.Memo != "m" || gen.Request.Patient != s.Patient {
		t.Errorf("unexpected request: %+v", gen)
	}
}

func TestGenerationSuccess(t *testing.T) {
	s, _ := Reduce(State{Memo: "m"}, RequestGeneration{})
	s, effects := Reduce(s, GenerationSucceeded{Epoch: s.Epoch, Text: "CC: 요통"})
	if s.Loading {
		t.Error("loading must clear on success")
	}
	if s.Chart != "CC: 요통" || s.Error != "" {
		t.Errorf("unexpected state: %+v", s)
	}
	if countEffects[ScrollToResult](effects) != 1 {
		t.Errorf("expected scroll to result, got %v", effects)
	}
}

func TestGenerationFailure(t *testing.T) {
	s, _ := Reduce(State{Memo: "m", Chart: "old chart"}, RequestGeneration{})
	cause := errors.New("status 503")
	s, effects := Reduce(s, GenerationFailed{Epoch: s.Epoch, Err: cause})
	if s.Loading {
		t.Error("loading must clear on failure")
	}
	if s.Error != ErrMsgGeneration {
		t.Errorf("Error = %q", s.Error)
	}
	if strings.Contains(s.Error, "503") {
		t.Error("raw cause must not reach the user")
	}
	if s.Chart != "" {
		t.Errorf("chart must be absent after failure, got %q", s.Chart)
	}
	if l, ok := findEffect[LogFailure](effects); !ok || l.Kind != GenerationFailure || !errors.Is(l.Err, cause) {
		t.Errorf("expected cause to be logged, got %v", effects)
	}
}

func TestLateGenerationAfterResetDiscarded(t *testing.T) {
	s, effects := Reduce(State{Memo: "m"}, RequestGeneration{})
	gen, _ := findEffect[Generate](effects)

	s, _ = Reduce(s, ConfirmReset{})
	s, effects = Reduce(s, GenerationSucceeded{Epoch: gen.Epoch, Text: "late chart"})
	if s.Chart != "" || s.Loading || len(effects) != 0 {
		t.Errorf("late success repopulated the session: %+v %v", s, effects)
	}

	s, effects = Reduce(s, GenerationFailed{Epoch: gen.Epoch, Err: errors.New("late")})
	if s.Error != "" || len(effects) != 0 {
		t.Errorf("late failure surfaced after reset: %+v", s)
	}
}

func TestCopyResult(t *testing.T) {
	s := State{
		Patient: chart.PatientInfo{Name: "김철수", Age: "40", Gender: chart.GenderMale},
		Chart:   "CC: 요통",
	}
	_, effects := Reduce(s, CopyResult{})
	w, ok := findEffect[WriteClipboard](effects)
	if !ok {
		t.Fatalf("expected WriteClipboard, got %v", effects)
	}
	header, body, found := strings.Cut(w.Text, "\n\n")
	if !found {
		t.Fatalf("expected header and body: %q", w.Text)
	}
	for _, want := range []string{"김철수", "40", "남성"} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q: %q", want, header)
		}
	}
	if body != "CC: 요통" {
		t.Errorf("body = %q", body)
	}
}

func TestLateClipboardResultAfterResetDiscarded(t *testing.T) {
	s, effects := Reduce(State{Chart: "c"}, CopyResult{})
	w, _ := findEffect[WriteClipboard](effects)

	s, _ = apply(s, RequestReset{}, ConfirmReset{})
	s, effects = Reduce(s, ClipboardWritten{Epoch: w.Epoch})
	if s.CopyConfirmed || len(effects) != 0 {
		t.Errorf("late clipboard result confirmed a cleared session: %+v %v", s, effects)
	}

	s, effects = Reduce(s, ClipboardWritten{Epoch: w.Epoch, Err: errors.New("late")})
	if len(effects) != 0 {
		t.Errorf("late clipboard failure produced effects: %v", effects)
	}
}

func TestCopyWithoutChartRejected(t *testing.T) {
	_, effects := Reduce(State{Memo: "m"}, CopyResult{})
	if len(effects) != 0 {
		t.Errorf("copy without chart must be rejected, got %v", effects)
	}
}

func TestCopyConfirmationLifecycle(t *testing.T) {
	s := State{Chart: "c"}
	s, effects := Reduce(s, ClipboardWritten{})
	if !s.CopyConfirmed {
		t.Fatal("expected confirmation")
	}
	exp, ok := findEffect[ExpireCopy](effects)
	if !ok || exp.After != 2*time.Second || exp.Seq != s.CopySeq {
		t.Fatalf("expected 2s expiry, got %v", effects)
	}

	// A second copy before the first expires restarts the window.
	s, effects = Reduce(s, ClipboardWritten{})
	second, _ := findEffect[ExpireCopy](effects)

	s, _ = Reduce(s, CopyExpired{Seq: exp.Seq})
	if !s.CopyConfirmed {
		t.Error("stale expiry cleared the newer confirmation")
	}
	s, _ = Reduce(s, CopyExpired{Seq: second.Seq})
	if s.CopyConfirmed {
		t.Error("expected confirmation to clear")
	}
}

func TestClipboardFailureSwallowed(t *testing.T) {
	s := State{Chart: "c"}
	cause := errors.New("no clipboard")
	next, effects := Reduce(s, ClipboardWritten{Err: cause})
	if next.CopyConfirmed || next.Error != "" {
		t.Errorf("clipboard failure must not reach the user: %+v", next)
	}
	if l, ok := findEffect[LogFailure](effects); !ok || l.Kind != ClipboardFailure {
		t.Errorf("expected logged clipboard failure, got %v", effects)
	}
}

func TestCopyConfirmOverride(t *testing.T) {
	s := State{Chart: "c", CopyConfirm: 500 * time.Millisecond}
	_, effects := Reduce(s, ClipboardWritten{})
	if exp, _ := findEffect[ExpireCopy](effects); exp.After != 500*time.Millisecond {
		t.Errorf("After = %v", exp.After)
	}
}

func TestConfirmResetClearsEverything(t *testing.T) {
	prior := populated()
	s, effects := Reduce(prior, ConfirmReset{})

	if !s.Patient.IsZero() || s.Transcript != "" || s.Memo != "" || s.Chart != "" || s.Error != "" {
		t.Errorf("data not cleared: %+v", s)
	}
	if s.Listening || s.Loading || s.CopyConfirmed || s.ConfirmingReset {
		t.Errorf("flags not cleared: %+v", s)
	}
	if s.Epoch != prior.Epoch+1 {
		t.Errorf("epoch = %d, want %d", s.Epoch, prior.Epoch+1)
	}
	if countEffects[StopCapture](effects) != 1 {
		t.Errorf("reset while recording must stop capture, got %v", effects)
	}
	if countEffects[ScrollToTop](effects) != 1 {
		t.Errorf("expected scroll to top, got %v", effects)
	}
}

func TestConfirmResetFromAnyState(t *testing.T) {
	states := []State{
		New(),
		{Memo: "m"},
		{Transcript: "t", Listening: true},
		{Chart: "c", CopyConfirmed: true},
		{Error: ErrMsgGeneration},
		{Patient: chart.PatientInfo{Gender: chart.GenderFemale}},
	}
	for i, prior := range states {
		s, effects := Reduce(prior, ConfirmReset{})
		want := State{Epoch: prior.Epoch + 1, CopySeq: prior.CopySeq}
		if s != want {
			t.Errorf("case %d: state = %+v, want %+v", i, s, want)
		}
		if prior.Listening != (countEffects[StopCapture](effects) == 1) {
			t.Errorf("case %d: StopCapture only when recording, got %v", i, effects)
		}
	}
}

func TestCancelResetLeavesDataUntouched(t *testing.T) {
	prior := populated()
	prior.ConfirmingReset = false

	s, _ := apply(prior, RequestReset{})
	if !s.ConfirmingReset {
		t.Fatal("expected confirming reset")
	}
	s, effects := Reduce(s, CancelReset{})
	if s != prior {
		t.Errorf("cancel changed data:\n got %+v\nwant %+v", s, prior)
	}
	if len(effects) != 0 {
		t.Errorf("cancel must not have effects, got %v", effects)
	}
}

func TestRequestResetDoesNotMutateData(t *testing.T) {
	prior := populated()
	prior.ConfirmingReset = false
	s, effects := Reduce(prior, RequestReset{})
	s.ConfirmingReset = false
	if s != prior || len(effects) != 0 {
		t.Errorf("request reset mutated data: %+v", s)
	}
}

func TestCanGenerateInvariant(t *testing.T) {
	if (State{Transcript: "t", Listening: true}).CanGenerate() {
		t.Error("cannot generate while recording")
	}
	if (State{Memo: " \n"}).CanGenerate() {
		t.Error("cannot generate without content")
	}
	if !(State{Memo: "m"}).CanGenerate() {
		t.Error("expected generate enabled")
	}
}
