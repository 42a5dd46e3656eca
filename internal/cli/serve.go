package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/tlcut/internal/api"
	"github.com/forPelevin/tlcut/internal/config"
	"github.com/forPelevin/tlcut/internal/pipeline"
)

func newServeCmd(e *env) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project over a local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = e.cfg.Port
			}
			p, err := loadOrCreate(e)
			if err != nil {
				return err
			}
			log := e.logger.WithField("component", "serve")

			tokenPath := config.TokenPath(e.cfg.DataDir)
			token, err := ensureAuthToken(tokenPath)
			if err != nil {
				return fmt.Errorf("api token: %w", err)
			}
			log.WithField("token_file", tokenPath).Info("api requires a bearer token")

			srv := api.NewServer(api.ServerConfig{
				Port:      port,
				Token:     token,
				App:       e.app,
				Project:   p,
				Logger:    e.logger,
				StartTime: time.Now(),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			if e.app.Engine.Cancel() {
				log.Info("cancelled running export")
			}
			// Handlers are drained; the session is no longer shared.
			if serr := e.app.Save(p); serr != nil {
				err = errors.Join(err, serr)
			} else {
				log.WithField("path", p.Path).Info("project saved")
			}
			return err
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port on 127.0.0.1 (defaults to TLCUT_PORT or 8790)")
	return cmd
}

// loadOrCreate opens the project for serve, creating it when the file is missing.
func loadOrCreate(e *env) (*pipeline.Project, error) {
	p, err := e.app.Load(e.project)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return e.app.NewProject(e.project, "")
}

// ensureAuthToken returns the token stored at path, generating and storing a
// new one when the file is missing or empty. Only the owner can read it.
func ensureAuthToken(path string) (string, error) {
	existing, err := os.ReadFile(path)
	if err == nil {
		if tok := strings.TrimSpace(string(existing)); tok != "" {
			return tok, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", err
	}
	return token, nil
}
