package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/validation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultWrapWidth = 100

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root := &cobra.Command{
		Use:           "yt-summary",
		Short:         "Summarize YouTube videos from their transcripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serveCmd.RunE,
	}
	root.AddCommand(serveCmd, newSummarizeCmd(), newVideoIDCmd())
	return root
}

func newSummarizeCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "summarize <url>",
		Short: "Print the summary of a single video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the summary
			if cfg.Log.Dir == "" {
				logrus.SetOutput(os.Stderr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.pipeline.Run(ctx, args[0])
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}

			out := result.Summary
			if !raw {
				if out, err = renderMarkdown(result.Summary); err != nil {
					logrus.WithError(err).Warn("Failed to render markdown, printing raw summary")
					out = result.Summary
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the summary without terminal rendering")
	return cmd
}

func newVideoIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "video-id <url>",
		Short: "Print the video identifier found in a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			id, ok := validation.NewExtractor(cfg.RequireYouTubeDomain).Extract(args[0])
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "Please enter a valid YouTube URL.")
				return fmt.Errorf("no video id in %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		return nil, err
	}
	if _, err := logger.Setup(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set up logging:", err)
		return nil, err
	}
	return cfg, nil
}

func renderMarkdown(md string) (string, error) {
	width := defaultWrapWidth
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

// runServe blocks until ctx is cancelled or the process receives SIGINT/SIGTERM.
func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, true)
	if err != nil {
		logrus.WithError(err).Error("Failed to initialize application")
		return err
	}
	defer app.Close()

	return app.serve(ctx)
}
