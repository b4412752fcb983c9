package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/comigor/loanadvisor-go/internal/audio"
	"github.com/comigor/loanadvisor-go/internal/logger"
)

// ErrSurfaceClosed is returned by every operation after Close.
var ErrSurfaceClosed = errors.New("voice: capture surface is closed")

// Surface is the record-or-upload control group that precedes a voice
// submission. It is created when the user opens voice input and discarded
// on Close or after a submission.
type Surface struct {
	recorder *Recorder
	source   Source

	mu     sync.Mutex
	closed bool
}

// NewSurface opens a capture surface around recorder.
func NewSurface(recorder *Recorder) *Surface {
	return &Surface{recorder: recorder}
}

// State folds the recorder and source into one CaptureState.
func (s *Surface) State() CaptureState {
	if s.recorder.State() == StateRecording {
		return StateRecording
	}
	if s.source.Active() != KindNone {
		return StateCaptured
	}
	return StateIdle
}

// StartRecording acquires the microphone.
func (s *Surface) StartRecording(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.recorder.Start(ctx)
}

// StopRecording finalizes the capture and makes it the active input,
// replacing any uploaded file.
func (s *Surface) StopRecording() (*Recording, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rec, err := s.recorder.Stop()
	if err != nil {
		return nil, err
	}
	s.source.SelectRecorded(rec)
	return rec, nil
}

// SelectFile makes f the active input, replacing any recording.
func (s *Surface) SelectFile(f File) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.source.SelectFile(f)
}

// Preview returns the recorded clip for playback, or nil.
func (s *Surface) Preview() *audio.Resource {
	if rec := s.source.Recorded(); rec != nil {
		return rec.Preview()
	}
	return nil
}

// Source exposes the current selection.
func (s *Surface) Source() *Source { return &s.source }

// Payload packages the active input. It fails with ErrNoAudioSelected when
// nothing is selected.
func (s *Surface) Payload() (Payload, error) {
	if err := s.ensureOpen(); err != nil {
		return Payload{}, err
	}
	return s.source.Payload()
}

// Close stops a running recording, then discards every selection. It is
// safe to call more than once.
func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.recorder.State() == StateRecording {
		if _, err := s.recorder.Stop(); err != nil {
			logger.L.Debug("recording discarded on close", "error", err)
		}
	}
	s.source.Clear()
}

// Closed reports whether Close has been called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Surface) ensureOpen() error {
	if s.Closed() {
		return ErrSurfaceClosed
	}
	return nil
}
