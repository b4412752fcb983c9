package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/comigor/loanadvisor-go/internal/config"
	"github.com/comigor/loanadvisor-go/internal/logger"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "loanadvisor",
		Short: "Chat with the loan advisory assistant",
		Long:  "loanadvisor is a terminal client for the loan advisory chat service. It supports typed questions and voice messages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if details, err := a.client.UserDetails(ctx); err != nil {
					logger.L.Warn("could not fetch user details", "error", err)
				} else {
					fmt.Fprintf(a.out, "signed in: %s\n", details)
				}
				r := &repl{app: a}
				return r.run(ctx, os.Stdin)
			})
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ./config.yaml)")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(voiceCmd())
	rootCmd.AddCommand(recordCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one text message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.ask(ctx, strings.Join(args, " "))
			})
		},
	}
}

func voiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voice <file>",
		Short: "Send a .wav or .mp3 file as a voice message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := a.newSurface()
				if err := uploadFile(s, args[0]); err != nil {
					s.Close()
					return err
				}
				return a.submit(ctx, s)
			})
		},
	}
}

func recordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until enter is pressed, then send it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := a.newSurface()
				defer s.Close()
				if err := s.StartRecording(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "recording, press enter to stop")
				_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
				if _, err := s.StopRecording(); err != nil {
					return err
				}
				return a.submit(ctx, s)
			})
		},
	}
}

// withApp loads configuration, builds the app and runs fn until it returns
// or the process is interrupted. Outstanding exchanges finish before exit.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	if cfgPath != "" {
		os.Setenv("CONFIG_PATH", cfgPath)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return err
	}

	a, err := newApp(cfg, prometheus.DefaultRegisterer, cmd.OutOrStdout())
	if err != nil {
		logger.L.Error("failed to start", "error", err)
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}
