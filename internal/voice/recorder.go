package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/loanadvisor-go/internal/audio"
	"github.com/comigor/loanadvisor-go/internal/logger"
	"github.com/comigor/loanadvisor-go/internal/metrics"
)

// CaptureState is what the capture surface currently holds.
type CaptureState string

const (
	StateIdle      CaptureState = "idle"
	StateRecording CaptureState = "recording"
	StateCaptured  CaptureState = "captured"
)

type trigger string

const (
	triggerStart trigger = "start"
	triggerStop  trigger = "stop"
)

var (
	ErrDeviceUnavailable = errors.New("voice: microphone unavailable")
	ErrAlreadyRecording  = errors.New("voice: already recording")
	ErrNotRecording      = errors.New("voice: not recording")
	ErrEmptyRecording    = errors.New("voice: recording captured no audio")
)

// RecordingFilename is the name a recorded clip is uploaded under.
const RecordingFilename = "recording.wav"

// Recording is a finalized, playable capture.
type Recording struct {
	data     []byte
	duration time.Duration
}

// Bytes returns a copy of the finalized container.
func (r *Recording) Bytes() []byte { return append([]byte(nil), r.data...) }

// Len returns the container size in bytes.
func (r *Recording) Len() int { return len(r.data) }

// Duration is the wall-clock time the microphone was open.
func (r *Recording) Duration() time.Duration { return r.duration }

// Preview exposes the recording for playback before it is submitted.
func (r *Recording) Preview() *audio.Resource { return audio.NewResource(audio.MIMETypeWAV, r.data) }

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderMetrics reports capture sessions to m.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// Recorder owns the microphone for one capture surface. The device handle
// exists only while recording and every track is stopped on the way out of
// that state, however the state is left.
type Recorder struct {
	device  Device
	fsm     *stateless.StateMachine
	metrics *metrics.Metrics

	mu        sync.Mutex
	stream    Stream
	startedAt time.Time
	collected chan [][]byte
	captured  [][]byte
}

// NewRecorder returns an idle recorder for device.
func NewRecorder(device Device, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		device: device,
		fsm:    stateless.NewStateMachine(StateIdle),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.fsm.Configure(StateIdle).
		Permit(triggerStart, StateRecording)

	r.fsm.Configure(StateRecording).
		OnExit(func(_ context.Context, _ ...any) error {
			r.release()
			return nil
		}).
		Permit(triggerStop, StateIdle)

	return r
}

// State returns StateIdle or StateRecording.
func (r *Recorder) State() CaptureState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fsm.MustState().(CaptureState)
}

// Start opens the microphone. On failure the recorder stays idle and the
// error wraps ErrDeviceUnavailable.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fsm.MustState() == StateRecording {
		return ErrAlreadyRecording
	}

	stream, err := r.device.Open(ctx)
	if err != nil {
		logger.L.Warn("microphone access failed", "error", err)
		if r.metrics != nil {
			r.metrics.DeviceFailures.Inc()
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.stream = stream
	r.startedAt = time.Now()
	r.captured = nil
	r.collected = make(chan [][]byte, 1)
	go collect(stream.Chunks(), r.collected)

	if err := r.fsm.FireCtx(ctx, triggerStart); err != nil {
		r.release()
		return fmt.Errorf("start recorder: %w", err)
	}
	if r.metrics != nil {
		r.metrics.RecordingsStarted.Inc()
	}
	logger.L.Debug("recording started")
	return nil
}

// Stop releases the microphone and finalizes the accumulated chunks into a
// single WAV clip. The device is released even when finalization fails.
func (r *Recorder) Stop() (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fsm.MustState() != StateRecording {
		return nil, ErrNotRecording
	}

	format := r.stream.Format()
	elapsed := time.Since(r.startedAt)

	fireErr := r.fsm.Fire(triggerStop)
	r.release()
	if fireErr != nil {
		return nil, fmt.Errorf("stop recorder: %w", fireErr)
	}

	chunks := r.captured
	r.captured = nil

	rec, err := finalize(chunks, format)
	if err != nil {
		logger.L.Warn("recording finalization failed", "error", err)
		return nil, err
	}
	rec.duration = elapsed
	if r.metrics != nil {
		r.metrics.RecordingBytes.Observe(float64(rec.Len()))
	}
	logger.L.Debug("recording stopped", "bytes", rec.Len(), "duration", elapsed)
	return rec, nil
}

// release stops every track of the open stream and collects what it
// produced. It is a no-op once the stream is gone. mu must be held.
func (r *Recorder) release() {
	if r.stream == nil {
		return
	}
	for _, track := range r.stream.Tracks() {
		stopTrack(track)
	}
	r.captured = <-r.collected
	r.stream = nil
}

func stopTrack(t Track) {
	defer func() {
		if p := recover(); p != nil {
			logger.L.Error("track stop panicked", "panic", p)
		}
	}()
	t.Stop()
}

func collect(in <-chan []byte, out chan<- [][]byte) {
	var chunks [][]byte
	for c := range in {
		chunks = append(chunks, c)
	}
	out <- chunks
}

func finalize(chunks [][]byte, format Format) (*Recording, error) {
	data := bytes.Join(chunks, nil)
	if len(data) == 0 {
		return nil, ErrEmptyRecording
	}
	if format.Encoding == EncodingPCM16 {
		if len(data)%2 != 0 {
			data = data[:len(data)-1]
		}
		wav, err := audio.EncodePCM16(data, format.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("finalize recording: %w", err)
		}
		data = wav
	}
	return &Recording{data: data}, nil
}
