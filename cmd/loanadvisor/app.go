package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/comigor/loanadvisor-go/internal/backend"
	"github.com/comigor/loanadvisor-go/internal/chat"
	"github.com/comigor/loanadvisor-go/internal/config"
	"github.com/comigor/loanadvisor-go/internal/conversation"
	"github.com/comigor/loanadvisor-go/internal/history"
	"github.com/comigor/loanadvisor-go/internal/logger"
	"github.com/comigor/loanadvisor-go/internal/metrics"
	"github.com/comigor/loanadvisor-go/internal/session"
	"github.com/comigor/loanadvisor-go/internal/voice"
)

// suggestions are the canned prompts offered next to the input box.
var suggestions = []string{
	"Check my loan eligibility",
	"Guide me through loan application",
	"Show me financial tips",
	"Explain loan terms in my language",
}

// app is one signed-in chat session.
type app struct {
	cfg       *config.Config
	sessionID string
	client    *backend.Client
	log       *conversation.Log
	text      *chat.TextController
	voice     *chat.VoiceController
	device    voice.Device
	metrics   *metrics.Metrics
	store     *history.Store
	server    *http.Server
	out       io.Writer
	printed   int
}

func newApp(cfg *config.Config, reg prometheus.Registerer, out io.Writer) (*app, error) {
	logger.SetLevel(cfg.Log.Level)
	logger.SetOutput(os.Stderr, cfg.Log.Format)

	sess, err := session.FromConfig(cfg.Backend, cfg.Session)
	if err != nil {
		return nil, err
	}
	if sess.Token() == "" {
		logger.L.Warn("no session token configured; requests will be unauthenticated")
	}

	m := metrics.New(reg)
	store := history.Open(cfg.History.DBPath)
	sessionID := uuid.NewString()

	client := backend.NewClient(sess, cfg.Backend.Timeout, backend.WithMetrics(m))
	log := conversation.NewLog(conversation.Greeting, conversation.WithObserver(store.Sink(sessionID)))

	a := &app{
		cfg:       cfg,
		sessionID: sessionID,
		client:    client,
		log:       log,
		text:      chat.NewTextController(log, client, chat.WithMetrics(m)),
		voice:     chat.NewVoiceController(log, client, chat.WithMetrics(m)),
		device:    voice.CommandDevice{Argv: cfg.Audio.CaptureCommand, SampleRate: cfg.Audio.SampleRate},
		metrics:   m,
		store:     store,
		out:       out,
	}
	a.serveMetrics()
	return a, nil
}

// serveMetrics exposes /metrics when an address is configured.
func (a *app) serveMetrics() {
	if a.cfg.Metrics.Address == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.server = &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}

	go func() {
		logger.L.Info("starting metrics server", "address", a.cfg.Metrics.Address)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("failed to start metrics server", "error", err)
		}
	}()
}

// close waits for outstanding exchanges, then releases resources.
func (a *app) close() {
	a.text.Wait()
	a.voice.Wait()
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	if err := a.store.Close(); err != nil {
		logger.L.Warn("history close failed", "error", err)
	}
}

func (a *app) newSurface() *voice.Surface {
	return voice.NewSurface(voice.NewRecorder(a.device, voice.WithRecorderMetrics(a.metrics)))
}

// ask runs one text exchange to completion.
func (a *app) ask(ctx context.Context, message string) error {
	ex, err := a.text.Send(ctx, message)
	if err != nil {
		return err
	}
	if ex == nil {
		return errors.New("message is empty")
	}
	a.render()
	if err := ex.Wait(ctx); err != nil {
		return err
	}
	a.render()
	return nil
}

// submit runs one voice exchange to completion.
func (a *app) submit(ctx context.Context, s *voice.Surface) error {
	ex, err := a.voice.Submit(ctx, s)
	if err != nil {
		return err
	}
	a.render()
	if err := ex.Wait(ctx); err != nil {
		return err
	}
	a.render()
	return nil
}

// uploadFile reads path and selects it on the surface.
func uploadFile(s *voice.Surface, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.SelectFile(voice.File{Name: filepath.Base(path), Data: data})
}

// render prints turns that were finalized since the last call, stopping at
// the first unresolved placeholder so nothing is printed twice.
func (a *app) render() {
	turns := a.log.Snapshot()
	for a.printed < len(turns) {
		t := turns[a.printed]
		if t.Placeholder {
			fmt.Fprintf(a.out, "  (%s)\n", t.Content)
			return
		}
		a.printTurn(t)
		a.printed++
	}
}

func (a *app) renderAll() {
	for _, t := range a.log.Snapshot() {
		a.printTurn(t)
	}
}

func (a *app) printTurn(t conversation.Turn) {
	label := "advisor"
	if t.Role == conversation.RoleUser {
		label = "you"
	}
	fmt.Fprintf(a.out, "%s> %s\n", label, strings.TrimSpace(t.Content))
	if t.HasAudio() {
		if path, err := a.saveAudio(t); err != nil {
			logger.L.Warn("could not save reply audio", "turn_id", t.ID, "error", err)
			fmt.Fprintf(a.out, "  [audio reply, %d bytes]\n", t.Audio.Len())
		} else if path != "" {
			fmt.Fprintf(a.out, "  [audio reply saved to %s]\n", path)
		} else {
			fmt.Fprintf(a.out, "  [audio reply, %d bytes]\n", t.Audio.Len())
		}
	}
}

func (a *app) saveAudio(t conversation.Turn) (string, error) {
	dir := a.cfg.Audio.OutputDir
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, t.ID+".wav")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return path, os.WriteFile(path, t.Audio.Bytes(), 0o644)
}
