package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/comigor/loanadvisor-go/internal/logger"
	"github.com/comigor/loanadvisor-go/internal/voice"
)

const replHelp = `Type a message and press enter to chat.
  /suggest [n]       list suggested prompts, or send number n
  /voice             open voice input
  /record start|stop record from the microphone
  /upload <path>     use a .wav or .mp3 file instead
  /submit            send the selected audio
  /cancel            close voice input without sending
  /log               print the whole conversation
  /details           show the signed-in user
  /quit              leave`

var errQuit = errors.New("quit")

// repl reads commands line by line. At most one voice surface is open.
type repl struct {
	app     *app
	surface *voice.Surface
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	out := r.app.out
	fmt.Fprintln(out, replHelp)
	r.app.render()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		err := r.handle(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	r.closeSurface()
	return scanner.Err()
}

func (r *repl) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if line == "" {
			return nil
		}
		return r.app.ask(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprintln(r.app.out, replHelp)
	case "/suggest":
		return r.suggest(ctx, arg)
	case "/voice":
		if r.surface == nil {
			r.surface = r.app.newSurface()
		}
		fmt.Fprintln(r.app.out, "voice input open: /record start, /upload <path>, then /submit")
	case "/record":
		return r.record(ctx, arg)
	case "/upload":
		s, err := r.openSurface()
		if err != nil {
			return err
		}
		if arg == "" {
			return errors.New("usage: /upload <path>")
		}
		if err := uploadFile(s, arg); err != nil {
			return err
		}
		fmt.Fprintf(r.app.out, "selected %s\n", s.Source().FileName())
	case "/submit":
		s, err := r.openSurface()
		if err != nil {
			return err
		}
		err = r.app.submit(ctx, s)
		if !errors.Is(err, voice.ErrNoAudioSelected) {
			r.surface = nil
		}
		return err
	case "/cancel":
		r.closeSurface()
	case "/log":
		r.app.renderAll()
	case "/details":
		details, err := r.app.client.UserDetails(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.app.out, details)
	default:
		return fmt.Errorf("unknown command %q, try /help", cmd)
	}
	return nil
}

func (r *repl) suggest(ctx context.Context, arg string) error {
	if arg == "" {
		for i, s := range suggestions {
			fmt.Fprintf(r.app.out, "  %d. %s\n", i+1, s)
		}
		return nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(suggestions) {
		return fmt.Errorf("pick a suggestion between 1 and %d", len(suggestions))
	}
	return r.app.ask(ctx, suggestions[n-1])
}

func (r *repl) record(ctx context.Context, arg string) error {
	s, err := r.openSurface()
	if err != nil {
		return err
	}
	switch arg {
	case "start":
		if err := s.StartRecording(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.app.out, "recording... /record stop when done")
	case "stop":
		rec, err := s.StopRecording()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.app.out, "recorded %s (%d bytes)\n", rec.Duration().Round(100*time.Millisecond), rec.Len())
	default:
		return errors.New("usage: /record start|stop")
	}
	return nil
}

func (r *repl) openSurface() (*voice.Surface, error) {
	if r.surface == nil {
		return nil, errors.New("voice input is not open, use /voice first")
	}
	return r.surface, nil
}

func (r *repl) closeSurface() {
	if r.surface == nil {
		return
	}
	r.surface.Close()
	r.surface = nil
	logger.L.Debug("voice input closed")
}
