package session

import (
	"github.com/f3rmion/mediscribe/internal/chart"
)

// Reduce applies ev to s. Events rejected by their guard return s unchanged
// and no effects.
func Reduce(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case StartRecording:
		if s.Listening || s.SpeechUnsupported {
			return s, nil
		}
		s.Listening = true
		return s, []Effect{StartCapture{Epoch: s.Epoch}}

	case StopRecording:
		if !s.Listening {
			return s, nil
		}
		s.Listening = false
		return s, []Effect{StopCapture{}}

	case TranscriptUpdated:
		if ev.Epoch != s.Epoch {
			return s, nil
		}
		// Engines re-deliver the whole recognised sequence, so overwrite.
		s.Transcript = ev.Text
		return s, nil

	case CaptureFailed:
		if ev.Epoch != s.Epoch {
			return s, nil
		}
		wasListening := s.Listening
		s.Listening = false
		effects := []Effect{LogFailure{Kind: CaptureFailure, Code: ev.Code, Err: ev.Err}}
		if wasListening {
			effects = append([]Effect{StopCapture{}}, effects...)
		}
		return s, effects

	case SpeechUnavailable:
		s.SpeechUnsupported = true
		s.Listening = false
		s.Error = ErrMsgUnsupported
		return s, []Effect{LogFailure{Kind: UnsupportedEnvironment, Err: ev.Err}}

	case EditMemo:
		s.Memo = ev.Text
		return s, nil

	case EditPatient:
		s.Patient = s.Patient.With(ev.Field, ev.Value)
		return s, nil

	case RequestGeneration:
		if s.Listening || s.Loading {
			return s, nil
		}
		if !s.HasInput() {
			s.Error = ErrMsgEmptyInput
			return s, nil
		}
		s.Error = ""
		s.Loading = true
		return s, []Effect{Generate{Epoch: s.Epoch, Request: s.Request()}}

	case GenerationSucceeded:
		if ev.Epoch != s.Epoch {
			return s, nil
		}
		s.Loading = false
		s.Chart = ev.Text
		s.Error = ""
		return s, []Effect{ScrollToResult{}}

	case GenerationFailed:
		if ev.Epoch != s.Epoch {
			return s, nil
		}
		s.Loading = false
		s.Chart = ""
		s.Error = ErrMsgGeneration
		return s, []Effect{LogFailure{Kind: GenerationFailure, Err: ev.Err}}

	case CopyResult:
		if !s.CanCopy() {
			return s, nil
		}
		return s, []Effect{WriteClipboard{Epoch: s.Epoch, Text: chart.ExportText(s.Patient, s.Chart)}}

	case ClipboardWritten:
		if ev.Epoch != s.Epoch {
			return s, nil
		}
		if ev.Err != nil {
			return s, []Effect{LogFailure{Kind: ClipboardFailure, Err: ev.Err}}
		}
		s.CopySeq++
		s.CopyConfirmed = true
		return s, []Effect{ExpireCopy{Seq: s.CopySeq, After: s.copyConfirm()}}

	case CopyExpired:
		if ev.Seq != s.CopySeq {
			return s, nil
		}
		s.CopyConfirmed = false
		return s, nil

	case RequestReset:
		s.ConfirmingReset = true
		return s, nil

	case CancelReset:
		s.ConfirmingReset = false
		return s, nil

	case ConfirmReset:
		return reset(s)
	}

	return s, nil
}

func reset(s State) (State, []Effect) {
	var effects []Effect
	if s.Listening {
		effects = append(effects, StopCapture{})
	}
	effects = append(effects, ScrollToTop{})

	next := State{
		SpeechUnsupported: s.SpeechUnsupported,
		Epoch:             s.Epoch + 1,
		CopySeq:           s.CopySeq,
		CopyConfirm:       s.CopyConfirm,
	}
	return next, effects
}
