package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/comigor/loanadvisor-go/internal/metrics"
	"github.com/comigor/loanadvisor-go/internal/session"
)

const (
	ChatPath        = "/api/chat"
	VoiceChatPath   = "/api/voice-chat"
	UserDetailsPath = "/api/user-details"

	// maxResponseBytes bounds a decoded reply; synthesized audio dominates it.
	maxResponseBytes = 32 << 20
)

// ErrNetwork wraps transport failures: no connection, timeout, reset.
var ErrNetwork = errors.New("backend: network failure")

// ServerError is a non-2xx reply. Message is the server's {"error": ...}
// text when it supplied one.
type ServerError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: unexpected status code: %d", e.Endpoint, e.Status)
}

// ServerMessage returns the server-supplied error text carried by err, if any.
func ServerMessage(err error) (string, bool) {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message, true
	}
	return "", false
}

// AudioUpload is the binary part of a voice request.
type AudioUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// VoiceReply is the decoded body of a voice-chat response.
type VoiceReply struct {
	TranscribedText string `json:"transcribed_text"`
	ResponseText    string `json:"response_text"`
	ResponseAudio   string `json:"response_audio"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatReply struct {
	Response string `json:"response"`
}

type userDetailsReply struct {
	UserDetails string `json:"userDetails"`
}

type errorReply struct {
	Error string `json:"error"`
}

// Client is a client for the loan advisory backend API
type Client struct {
	sess    session.Context
	client  *http.Client
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithMetrics counts requests by endpoint and status class.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new Client. timeout bounds each request end to end;
// zero leaves it to the transport.
func NewClient(sess session.Context, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		sess:   sess,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat sends a text message and returns the assistant's rich-text reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", err
	}

	var reply chatReply
	if err := c.do(ctx, http.MethodPost, ChatPath, bytes.NewReader(body), "application/json", &reply); err != nil {
		return "", err
	}
	return reply.Response, nil
}

// VoiceChat uploads audio as the multipart field "audio".
func (c *Client) VoiceChat(ctx context.Context, upload AudioUpload) (VoiceReply, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, upload.Filename))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := writer.CreatePart(h)
	if err != nil {
		return VoiceReply{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return VoiceReply{}, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return VoiceReply{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var reply VoiceReply
	if err := c.do(ctx, http.MethodPost, VoiceChatPath, &buf, writer.FormDataContentType(), &reply); err != nil {
		return VoiceReply{}, err
	}
	return reply, nil
}

// UserDetails fetches the profile summary shown alongside the chat.
func (c *Client) UserDetails(ctx context.Context) (string, error) {
	var reply userDetailsReply
	if err := c.do(ctx, http.MethodGet, UserDetailsPath, nil, "", &reply); err != nil {
		return "", err
	}
	return reply.UserDetails, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.sess.BaseURL()+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", c.sess.Authorization())
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.count(path, "error")
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()
	c.count(path, fmt.Sprintf("%dxx", resp.StatusCode/100))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrNetwork, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &ServerError{Endpoint: path, Status: resp.StatusCode}
		var er errorReply
		if json.Unmarshal(respBody, &er) == nil {
			se.Message = er.Error
		}
		return se
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) count(path, status string) {
	if c.metrics != nil {
		c.metrics.BackendRequests.WithLabelValues(path, status).Inc()
	}
}
