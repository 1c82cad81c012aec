package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"data-agent/internal/di"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/dataset"
	"data-agent/internal/infrastructure/env"
	"data-agent/internal/infrastructure/userinteraction"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "agent",
		Short:        "Ask questions about a table in plain language",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newChatCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (di.Config, error) {
	cfg, err := di.LoadConfig(env.NewEnvService())
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func newChatCmd() *cobra.Command {
	var dataPath, sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive analysis session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Turn progress is printed to the terminal; logs go to LOG_DIR only.
			cfg.LogConsole = false

			ds, err := dataset.Load(dataPath)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			console := userinteraction.NewConsoleUserInteraction()
			container, err := di.NewContainer(ctx, cfg, ds, console)
			if err != nil {
				return err
			}
			defer container.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			console.ShowInfo("Loaded %s", ds.Summary())
			console.ShowInfo("Commands: /load <file>, /history, /steps, /quit")
			return chatLoop(ctx, container, console, sessionID)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "CSV, XLSX or XLS file to analyse")
	cmd.Flags().StringVar(&sessionID, "session", "", "resume a stored conversation")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func chatLoop(ctx context.Context, c *di.Container, console *userinteraction.ConsoleUserInteraction, sessionID string) error {
	var lastSteps []entity.Step

	for {
		line, err := console.ReadLine(ctx, "\n> ")
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/steps":
			console.ShowSteps(lastSteps)
			continue
		case line == "/history":
			msgs, err := c.Chat.History(ctx, sessionID)
			if err != nil {
				console.ShowError(err)
				continue
			}
			console.ShowHistory(msgs)
			continue
		case strings.HasPrefix(line, "/load "):
			ds, err := dataset.Load(strings.TrimSpace(strings.TrimPrefix(line, "/load ")))
			if err == nil {
				err = c.Chat.Reconfigure(ds)
			}
			if err != nil {
				console.ShowError(err)
				continue
			}
			lastSteps = nil
			console.ShowInfo("Loaded %s", ds.Summary())
			continue
		}

		reply, err := c.Chat.Ask(ctx, sessionID, line)
		if err != nil {
			console.ShowError(err)
		}
		if reply.Result.StoppedReason == "" {
			continue
		}
		lastSteps = reply.Result.Steps
		console.ShowAnswer(reply.Response, reply.Result.StoppedReason)
		if reply.Result.Err != nil {
			c.Logger.Error("Turn failed", "error", reply.Result.Err)
		}
	}
}

func newServeCmd() *cobra.Command {
	var dataPath, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis agent over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			ds, err := dataset.Load(dataPath)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := di.NewContainer(ctx, cfg, ds, nil)
			if err != nil {
				return err
			}
			defer container.Close()

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           container.HTTPServer().Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				container.Logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			container.Logger.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "CSV, XLSX or XLS file to analyse")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
