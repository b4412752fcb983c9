// Package audio holds the playable audio types shared by capture and playback:
// WAV container encoding for raw microphone PCM, and Resource, the decoded
// form of synthesized replies.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MIMETypeWAV is the media type the backend synthesizes replies in.
const MIMETypeWAV = "audio/wav"

// ErrEmptyAudio is returned when a reply carries no audio bytes.
var ErrEmptyAudio = errors.New("audio: empty payload")

// Resource is an immutable playable audio clip.
type Resource struct {
	mimeType string
	data     []byte
}

// NewResource copies data into a Resource of the given media type.
func NewResource(mimeType string, data []byte) *Resource {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Resource{mimeType: mimeType, data: cp}
}

// DecodeBase64WAV decodes the base64 body of a synthesized reply.
func DecodeBase64WAV(encoded string) (*Resource, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrEmptyAudio
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode reply audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return &Resource{mimeType: MIMETypeWAV, data: data}, nil
}

// MIMEType returns the media type, e.g. "audio/wav".
func (r *Resource) MIMEType() string { return r.mimeType }

// Bytes returns a copy of the clip.
func (r *Resource) Bytes() []byte {
	cp := make([]byte, len(r.data))
	copy(cp, r.data)
	return cp
}

// Len returns the clip size in bytes.
func (r *Resource) Len() int { return len(r.data) }

// DataURI renders the clip as "data:<mime>;base64,<payload>".
func (r *Resource) DataURI() string {
	return "data:" + r.mimeType + ";base64," + base64.StdEncoding.EncodeToString(r.data)
}
