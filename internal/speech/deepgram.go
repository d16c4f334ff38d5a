package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/f3rmion/mediscribe/internal/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDeepgramURL   = "https://api.deepgram.com/v1"
	DefaultDeepgramModel = "nova-2"
	DefaultLanguage      = "ko"

	chunkSize  = 3200 // 100ms of 16kHz mono s16le
	flushGrace = 4 * time.Second
)

// DeepgramConfig controls the Deepgram live transcription connection.
type DeepgramConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Audio    AudioConfig
}

// DeepgramRecognizer streams microphone audio to Deepgram over a websocket.
type DeepgramRecognizer struct {
	cfg    DeepgramConfig
	audio  AudioSource
	dialer *websocket.Dialer
	logger *zap.SugaredLogger
}

// DeepgramOption configures a DeepgramRecognizer.
type DeepgramOption func(*DeepgramRecognizer)

// WithAudioSource replaces the ffmpeg capture.
func WithAudioSource(src AudioSource) DeepgramOption {
	return func(r *DeepgramRecognizer) { r.audio = src }
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *zap.SugaredLogger) DeepgramOption {
	return func(r *DeepgramRecognizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewDeepgramRecognizer creates a recognizer, filling unset config with defaults.
func NewDeepgramRecognizer(cfg DeepgramConfig, opts ...DeepgramOption) *DeepgramRecognizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepgramURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultDeepgramModel
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	cfg.Audio = cfg.Audio.withDefaults()

	r := &DeepgramRecognizer{
		cfg:    cfg,
		audio:  NewFFMPEGCapture(),
		dialer: websocket.DefaultDialer,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe checks for an API key and a working audio source.
func (r *DeepgramRecognizer) Probe() error {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return fmt.Errorf("%w: deepgram API key is not configured", ErrUnsupported)
	}
	if err := r.audio.Available(r.cfg.Audio); err != nil {
		if errors.Is(err, ErrUnsupported) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return nil
}

// Start connects to Deepgram and begins streaming microphone audio.
func (r *DeepgramRecognizer) Start(ctx context.Context) (Stream, error) {
	if err := r.Probe(); err != nil {
		return nil, err
	}

	wsURL, err := buildListenURL(r.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := r.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, &captureError{code: CodeNetwork, err: fmt.Errorf("connecting to deepgram: %w", err)}
	}

	streamCtx, cancel := context.WithCancel(ctx)
	audio, err := r.audio.Start(streamCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, &captureError{code: CodeAudioCapture, err: fmt.Errorf("starting audio capture: %w", err)}
	}

	s := &deepgramStream{
		conn:   conn,
		audio:  audio,
		agg:    NewAggregator(),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		grace:  flushGrace,
		logger: r.logger,
	}

	g, gctx := errgroup.WithContext(streamCtx)
	g.Go(s.writeLoop)
	g.Go(s.readLoop)

	go func() {
		<-gctx.Done()
		_ = s.audio.Stop()
		_ = s.conn.Close()
	}()

	go func() {
		err := g.Wait()
		if err != nil && !s.stopping.Load() {
			s.logger.Warnw("speech stream failed", "code", CodeOf(err), "error", err)
			s.emit(Event{Transcript: s.agg.Snapshot(), Code: CodeOf(err), Err: err})
		}
		cancel()
		close(s.events)
		close(s.done)
	}()

	return s, nil
}

type deepgramStream struct {
	conn   *websocket.Conn
	audio  AudioSession
	agg    *Aggregator
	events chan Event
	done   chan struct{}
	grace  time.Duration
	logger *zap.SugaredLogger

	stopping atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

// Stop ends audio capture, lets Deepgram flush its final results and
// closes the connection if that takes longer than the grace period.
func (s *deepgramStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		s.stopErr = s.audio.Stop()

		select {
		case <-s.done:
		case <-time.After(s.grace):
			_ = s.conn.Close()
			<-s.done
		}
	})
	return s.stopErr
}

// writeLoop is the only writer on the connection.
func (s *deepgramStream) writeLoop() error {
	buf := make([]byte, chunkSize)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				if s.stopping.Load() {
					return nil
				}
				return &captureError{code: CodeNetwork, err: fmt.Errorf("sending audio: %w", werr)}
			}
		}
		if err == nil {
			continue
		}
		if s.stopping.Load() {
			break
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return &captureError{code: CodeAudioCapture, err: errors.New("audio capture ended unexpectedly")}
		}
		return &captureError{code: CodeAudioCapture, err: fmt.Errorf("reading audio: %w", err)}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.logger.Debugw("closing deepgram stream", "error", err)
	}
	return nil
}

func (s *deepgramStream) readLoop() error {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.stopping.Load() || websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return nil
			}
			return &captureError{code: CodeNetwork, err: fmt.Errorf("reading deepgram event: %w", err)}
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			s.logger.Debugw("skipping undecodable deepgram event", "error", err)
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return &captureError{code: CodeProvider, err: errors.New(message)}
		}
		if response.Type != "" && !strings.EqualFold(response.Type, "Results") {
			continue
		}

		snapshot, changed := s.agg.Add(Segment{
			Text:  extractTranscript(response),
			Final: response.IsFinal || response.SpeechFinal,
		})
		if changed {
			s.emit(Event{Transcript: snapshot})
		}
	}
}

// emit never blocks: when the consumer lags, the oldest pending snapshot
// is dropped since every later snapshot supersedes it.
func (s *deepgramStream) emit(ev Event) {
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

type captureError struct {
	code string
	err  error
}

func (e *captureError) Error() string {
	return e.err.Error()
}

func (e *captureError) Unwrap() error {
	return e.err
}

// CodeOf returns the error code carried by err, defaulting to CodeNetwork.
func CodeOf(err error) string {
	var ce *captureError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeNetwork
}

type deepgramAlternative struct {
	Transcript string `json:"transcript"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives"`
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel deepgramChannel `json:"channel"`
	Results struct {
		Channels []deepgramChannel `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg DeepgramConfig) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultDeepgramURL
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base URL: %w", err)
	}

	audio := cfg.Audio.withDefaults()
	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	query.Set("channels", strconv.Itoa(audio.Channels))
	query.Set("interim_results", "true")
	query.Set("smart_format", "true")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
