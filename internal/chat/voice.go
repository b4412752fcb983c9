package chat

import (
	"context"

	"github.com/comigor/loanadvisor-go/internal/audio"
	"github.com/comigor/loanadvisor-go/internal/backend"
	"github.com/comigor/loanadvisor-go/internal/conversation"
	"github.com/comigor/loanadvisor-go/internal/logger"
	"github.com/comigor/loanadvisor-go/internal/markup"
	"github.com/comigor/loanadvisor-go/internal/voice"
)

// VoiceBackend exchanges uploaded audio for a transcription, a reply and
// the reply's synthesized audio.
type VoiceBackend interface {
	VoiceChat(ctx context.Context, upload backend.AudioUpload) (backend.VoiceReply, error)
}

// VoiceController drives voice exchanges.
type VoiceController struct {
	runner
	backend VoiceBackend
}

// NewVoiceController returns a controller appending to log.
func NewVoiceController(log *conversation.Log, b VoiceBackend, opts ...Option) *VoiceController {
	c := &VoiceController{backend: b}
	c.runner.init(log, opts)
	return c
}

// Submit packages the surface's active input, closes the surface and
// appends two placeholders before uploading in the background. Without an
// active input it returns voice.ErrNoAudioSelected and the log is untouched.
func (c *VoiceController) Submit(ctx context.Context, surface *voice.Surface) (*Exchange, error) {
	payload, err := surface.Payload()
	if err != nil {
		return nil, err
	}
	// Closing clears the selection; there is no retry from a failed upload.
	surface.Close()

	ex, err := c.open(KindVoice, func(id string) []conversation.Turn {
		return []conversation.Turn{
			conversation.PlaceholderTurn(id, conversation.RoleUser, VoiceSent),
			conversation.PlaceholderTurn(id, conversation.RoleAssistant, VoiceProcessing),
		}
	})
	if err != nil {
		return nil, err
	}

	logger.L.Info("voice exchange dispatched", "exchange_id", ex.ID, "filename", payload.Filename, "bytes", len(payload.Data))

	upload := backend.AudioUpload{
		Filename:    payload.Filename,
		ContentType: payload.ContentType,
		Data:        payload.Data,
	}
	c.dispatch(ctx, ex, func(ctx context.Context) ([]conversation.Turn, error) {
		reply, err := c.backend.VoiceChat(ctx, upload)
		if err == nil {
			var clip *audio.Resource
			if clip, err = audio.DecodeBase64WAV(reply.ResponseAudio); err == nil {
				return []conversation.Turn{
					conversation.UserTurn(ex.ID, reply.TranscribedText),
					conversation.AssistantAudioTurn(ex.ID, markup.Sanitize(reply.ResponseText), clip),
				}, nil
			}
		}

		msg := VoiceFallbackErr
		if serverMsg, ok := backend.ServerMessage(err); ok {
			msg = serverMsg
		}
		return []conversation.Turn{
			conversation.UserTurn(ex.ID, VoiceFailedUser),
			conversation.AssistantTurn(ex.ID, markup.Sanitize(msg)),
		}, err
	})
	return ex, nil
}
