package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/server"
	"github.com/desertthunder/studio/internal/shared"
	"github.com/urfave/cli/v3"
)

var samplePrompts = []string{"海边的日落", "a red fox in the snow", "雨夜的城市街道", "lofi piano loop", "mountain timelapse"}

// Sandbox serves the in-memory media service until interrupted.
func (r *Runner) Sandbox(ctx context.Context, cmd *cli.Command) error {
	sb := server.NewSandbox()
	sb.RequireSession = cmd.Bool("require-session")
	if user := cmd.String("user"); user != "" {
		sb.AddUser(user, cmd.String("password"))
	}
	seedSandbox(sb, int(cmd.Int("seed")))

	ln, err := net.Listen("tcp", cmd.String("addr"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:           sb.Router(shared.WithLogger(r.logger, "component", "sandbox")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	baseURL := "http://" + ln.Addr().String()
	r.logger.Info("sandbox listening", "base_url", baseURL, "records", len(sb.Records()))
	r.writePlainHeader("studio sandbox")
	r.writePlain("base_url = %q\n", baseURL)
	r.writePlain("cookie   = %q\n", sb.Cookie())
	r.writePlain("login    = %s / %s\n", cmd.String("user"), cmd.String("password"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sandbox server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down sandbox")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedSandbox stores n sample records cycling through the media types.
func seedSandbox(sb *server.Sandbox, n int) {
	for i := range n {
		mt := models.MediaTypes[i%len(models.MediaTypes)]
		rec := server.SandboxRecord{
			MediaType: string(mt),
			Model:     mt.DefaultModel(),
			Prompt:    samplePrompts[i%len(samplePrompts)],
		}
		if mt.UsesVoice() {
			rec.Voice = "v1"
		} else {
			rec.Style = "写实"
		}
		sb.Seed(rec)
	}
}
