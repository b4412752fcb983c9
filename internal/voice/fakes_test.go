package voice

import (
	"context"
	"errors"
	"sync"
)

type fakeTrack struct {
	mu      sync.Mutex
	stopped int
	onStop  func()
	panics  bool
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped++
	first := t.stopped == 1
	t.mu.Unlock()
	if first && t.onStop != nil {
		t.onStop()
	}
	if t.panics {
		panic("track exploded")
	}
}

func (t *fakeTrack) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeStream emits the configured chunks, then waits for its tracks to stop
// before closing the channel, like a real microphone.
type fakeStream struct {
	chunks chan []byte
	tracks []*fakeTrack
	format Format
	once   sync.Once
}

func newFakeStream(format Format, data [][]byte, trackCount int) *fakeStream {
	s := &fakeStream{chunks: make(chan []byte, len(data)), format: format}
	for _, d := range data {
		s.chunks <- d
	}
	for i := 0; i < trackCount; i++ {
		s.tracks = append(s.tracks, &fakeTrack{onStop: s.end})
	}
	return s
}

func (s *fakeStream) end()                   { s.once.Do(func() { close(s.chunks) }) }
func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) Format() Format         { return s.format }
func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

type fakeDevice struct {
	OpenFunc func(ctx context.Context) (Stream, error)
	opens    int
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
	d.opens++
	if d.OpenFunc != nil {
		return d.OpenFunc(ctx)
	}
	return nil, errors.New("no device")
}

func deviceFor(streams ...*fakeStream) *fakeDevice {
	d := &fakeDevice{}
	d.OpenFunc = func(context.Context) (Stream, error) {
		if len(streams) == 0 {
			return nil, errors.New("permission denied")
		}
		s := streams[0]
		streams = streams[1:]
		return s, nil
	}
	return d
}

var containerFormat = Format{Encoding: EncodingContainer}
