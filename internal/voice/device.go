package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Encoding describes what a capture stream's chunks contain.
type Encoding int

const (
	// EncodingContainer chunks concatenate into a playable file as-is.
	EncodingContainer Encoding = iota
	// EncodingPCM16 chunks are raw little-endian mono 16-bit samples.
	EncodingPCM16
)

// Format is the layout of the audio a Stream produces.
type Format struct {
	Encoding   Encoding
	SampleRate int
}

// Track is one hardware source inside a stream. Stop must be idempotent.
type Track interface {
	Stop()
}

// Stream is an open microphone. Chunks is closed once every track stopped.
type Stream interface {
	Chunks() <-chan []byte
	Tracks() []Track
	Format() Format
}

// Device grants exclusive access to a microphone.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

const commandChunkSize = 4096

// CommandDevice records by running an external capture program, such as
// arecord, that writes raw PCM16 to stdout until it is killed.
type CommandDevice struct {
	Argv       []string
	SampleRate int
}

// Open starts the capture program. A missing binary or a start failure is
// reported as ErrDeviceUnavailable by the Recorder.
func (d CommandDevice) Open(ctx context.Context) (Stream, error) {
	if len(d.Argv) == 0 {
		return nil, errors.New("no capture command configured")
	}
	path, err := exec.LookPath(d.Argv[0])
	if err != nil {
		return nil, fmt.Errorf("capture command %q: %w", d.Argv[0], err)
	}

	// The process outlives the caller's ctx; only Stop ends it.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), path, d.Argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture command: %w", err)
	}

	s := &commandStream{
		cmd:    cmd,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
		format: Format{Encoding: EncodingPCM16, SampleRate: d.SampleRate},
	}
	go s.pump(stdout)
	return s, nil
}

type commandStream struct {
	cmd    *exec.Cmd
	chunks chan []byte
	done   chan struct{}
	format Format
	once   sync.Once
}

func (s *commandStream) pump(r io.Reader) {
	defer close(s.done)
	defer close(s.chunks)
	for {
		buf := make([]byte, commandChunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			return
		}
	}
}

func (s *commandStream) Chunks() <-chan []byte { return s.chunks }
func (s *commandStream) Tracks() []Track       { return []Track{s} }
func (s *commandStream) Format() Format        { return s.format }

// Stop kills the capture process, lets the pipe drain, then reaps it.
// Chunks must keep being consumed until it is closed.
func (s *commandStream) Stop() {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.done
		_ = s.cmd.Wait()
	})
}
