package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gwgp-assistant-backend/internal/capability"
	"gwgp-assistant-backend/internal/config"
	"gwgp-assistant-backend/internal/llm"
	"gwgp-assistant-backend/internal/logging"
	"gwgp-assistant-backend/internal/news"
	"gwgp-assistant-backend/internal/prompts"
	"gwgp-assistant-backend/internal/server"
	"gwgp-assistant-backend/internal/store"
)

const shutdownGrace = 15 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "gwgp",
		Short:         "Multimodal assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("provider", "", "model provider override (gemini or openai)")
	root.PersistentFlags().Bool("json", false, "print results as JSON")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAskCmd(), newEditCmd(), newSpeakCmd(), newVideoCmd(), newBriefingCmd(), newSearchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built once from the environment.
type app struct {
	cfg       config.Config
	log       zerolog.Logger
	assistant *capability.Assistant
	closeNews func()
}

func newApp(cmd *cobra.Command, cliMode bool) (*app, error) {
	cfg := config.Load()
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		cfg.Provider = p
	}

	out := os.Stdout
	if cliMode {
		out = os.Stderr
		if os.Getenv("LOG_LEVEL") == "" {
			cfg.LogLevel = "warn"
		}
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty, out)

	set, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	backend, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	source, closeNews, err := news.NewSource(ctx, cfg, logging.WithComponent(log, "news"))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg: cfg,
		log: log,
		assistant: capability.New(capability.Options{
			Backend:        backend,
			Prompts:        set,
			News:           source,
			Logger:         logging.WithComponent(log, "capability"),
			RequestTimeout: cfg.RequestTimeout,
			VideoTimeout:   cfg.VideoTimeout,
		}),
		closeNews: closeNews,
	}, nil
}

func (a *app) Close() {
	if a.closeNews != nil {
		a.closeNews()
	}
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if port != "" {
				a.cfg.Port = port
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default $PORT or 8080)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	sessions := store.NewMemoryStore(a.cfg.SessionTTL, a.assistant, a.assistant.Prompts().Voice.ErrorReply)
	go sessions.RunJanitor(ctx, time.Minute)

	s := server.NewServer(a.cfg, a.assistant, sessions, a.log)
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", srv.Addr).
			Str("provider", a.assistant.Provider()).
			Msg("gwgp server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
