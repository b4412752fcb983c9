package voice

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrUnsupportedFormat = errors.New("voice: unsupported audio format, upload a WAV or MP3 file")
	ErrNoAudioSelected   = errors.New("voice: record or upload an audio file before submitting")
)

// Kind names which input is active.
type Kind int

const (
	KindNone Kind = iota
	KindRecorded
	KindFile
)

// allowedExtensions maps accepted upload extensions to their media types.
var allowedExtensions = map[string]string{
	"wav": "audio/wav",
	"mp3": "audio/mpeg",
}

// File is an audio file picked by the user.
type File struct {
	Name string
	Data []byte
}

// Payload is the audio part of a voice submission.
type Payload struct {
	Kind        Kind
	Filename    string
	ContentType string
	Data        []byte
}

// Source selects between a fresh recording and an uploaded file. At most one
// of the two is set at any time.
type Source struct {
	mu       sync.Mutex
	recorded *Recording
	file     *File
}

// SelectRecorded makes rec the active input and drops any selected file.
func (s *Source) SelectRecorded(rec *Recording) {
	if rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = rec
	s.file = nil
}

// SelectFile validates f by extension, case-insensitively. A rejected file
// leaves the previous selection in place.
func (s *Source) SelectFile(f File) error {
	if _, err := contentTypeFor(f.Name); err != nil {
		return err
	}
	cp := File{Name: f.Name, Data: append([]byte(nil), f.Data...)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = &cp
	s.recorded = nil
	return nil
}

// Clear drops both inputs.
func (s *Source) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = nil
	s.file = nil
}

// Active reports which input is selected.
func (s *Source) Active() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.recorded != nil:
		return KindRecorded
	case s.file != nil:
		return KindFile
	default:
		return KindNone
	}
}

// Recorded returns the selected recording, or nil.
func (s *Source) Recorded() *Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}

// FileName returns the selected file's name, or "".
func (s *Source) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ""
	}
	return s.file.Name
}

// Payload packages the active input for upload. Recordings are sent as
// RecordingFilename, files under their own name.
func (s *Source) Payload() (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.recorded != nil:
		return Payload{
			Kind:        KindRecorded,
			Filename:    RecordingFilename,
			ContentType: allowedExtensions["wav"],
			Data:        s.recorded.Bytes(),
		}, nil
	case s.file != nil:
		ct, _ := contentTypeFor(s.file.Name)
		return Payload{
			Kind:        KindFile,
			Filename:    s.file.Name,
			ContentType: ct,
			Data:        append([]byte(nil), s.file.Data...),
		}, nil
	default:
		return Payload{}, ErrNoAudioSelected
	}
}

func contentTypeFor(name string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	ct, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return ct, nil
}
