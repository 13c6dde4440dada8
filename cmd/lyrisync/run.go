package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyrisync/internal/logging"
	"karolbroda.com/lyrisync/internal/terminal"
	"karolbroda.com/lyrisync/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the interactive lyrics viewer",
	Long:  `starts the terminal-based lyrics viewer with real-time synchronized lyrics display.`,
	RunE:  runViewer,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runViewer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// the TUI owns the terminal, so logs only go to a file
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	defer terminal.Reset(os.Stdout)

	pl, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pl.Close()

	uiSub := pl.engine.Subscribe()

	model := ui.NewModel(ui.ModelConfig{
		Clock:      pl.engine,
		Events:     uiSub.Events(),
		Results:    pl.fetcher.Results(),
		Framerate:  cfg.UI.Framerate,
		SyncOffset: cfg.UI.SyncOffset,
		HideHeader: cfg.UI.HideHeader,
	})

	g, gctx := errgroup.WithContext(ctx)
	pl.start(gctx, g)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(gctx),
	)

	g.Go(func() error {
		// quitting the viewer stops everything else
		defer cancel()
		_, err := p.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("error running bubble tea: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("viewer stopped", zap.Uint64("dropped_ui_events", uiSub.Dropped()))
	return err
}
