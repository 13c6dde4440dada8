package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"karolbroda.com/lyrisync/internal/logging"
	"karolbroda.com/lyrisync/internal/lyrics"
	"karolbroda.com/lyrisync/internal/terminal"
	"karolbroda.com/lyrisync/internal/track"
	"karolbroda.com/lyrisync/internal/ui"
)

var (
	// flags for pipe
	pipeLength   int
	pipeOverflow string
)

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "print the current line to stdout",
	Long: `print the current lyric line to stdout every time it changes, one line per change.
useful for status bars. an empty line is printed when nothing is playing.`,
	RunE: runPipe,
}

func init() {
	rootCmd.AddCommand(pipeCmd)

	pipeCmd.Flags().IntVarP(&pipeLength, "length", "l", 0, "max line width (0 uses the terminal width, or no limit when piped)")
	pipeCmd.Flags().StringVarP(&pipeOverflow, "overflow", "o", "", "what to do with long lines: word, none, ellipsis")
}

func runPipe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("length") {
		cfg.Pipe.Length = pipeLength
	}
	if pipeOverflow != "" {
		cfg.Pipe.Overflow = pipeOverflow
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries the lyrics, so logs go to the file or stderr
	var logger *zap.Logger
	if cfg.Log.File != "" {
		logger, err = logging.New(cfg.Log.Level, cfg.Log.File)
	} else {
		logger, err = logging.NewConsole(cfg.Log.Level)
	}
	if err != nil {
		return err
	}
	defer logger.Sync()

	length := cfg.Pipe.Length
	if length == 0 {
		length = terminal.DetectCapabilities(os.Stdout).Width
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pl, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pl.Close()

	printer := &pipePrinter{
		w:      cmd.OutOrStdout(),
		clock:  pl.engine,
		offset: cfg.UI.SyncOffset,
		format: func(s string) string { return formatPipeLine(s, length, cfg.Pipe.Overflow) },
	}

	g, gctx := errgroup.WithContext(ctx)
	pl.start(gctx, g)
	g.Go(func() error {
		return printer.run(gctx, pl.fetcher.Results(), time.Second/time.Duration(cfg.UI.Framerate))
	})
	return g.Wait()
}

// pipePrinter writes the active line whenever it changes.
type pipePrinter struct {
	w      io.Writer
	clock  ui.Clock
	offset time.Duration
	format func(string) string

	track   *track.Identity
	doc     *lyrics.Document
	last    string
	printed bool
}

func (p *pipePrinter) run(ctx context.Context, results <-chan lyrics.Result, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-results:
			if !ok {
				return nil
			}
			p.setResult(r)
		case now := <-ticker.C:
			if err := p.tick(now); err != nil {
				return err
			}
		}
	}
}

func (p *pipePrinter) setResult(r lyrics.Result) {
	p.track = r.Track
	p.doc = r.Doc
}

func (p *pipePrinter) tick(now time.Time) error {
	line := p.currentLine(now)
	if p.printed && line == p.last {
		return nil
	}
	p.last = line
	p.printed = true

	_, err := fmt.Fprintln(p.w, p.format(line))
	return err
}

func (p *pipePrinter) currentLine(now time.Time) string {
	state := p.clock.CurrentState()
	if state.Track == nil || p.doc == nil || !p.track.IsSameTrack(state.Track) {
		return ""
	}

	pos := max(p.clock.EstimatedPosition(now)+p.offset.Milliseconds(), 0)
	idx := p.doc.LineIndexAt(pos)
	if idx < 0 {
		return ""
	}
	return p.doc.Lines[idx].Text
}

// formatPipeLine fits text into length columns. A length of zero or less
// leaves the text alone.
func formatPipeLine(text string, length int, overflow string) string {
	if length <= 0 {
		return text
	}

	switch overflow {
	case "none":
		return wrap.String(text, length)
	case "ellipsis":
		return truncate.StringWithTail(text, uint(length), "...")
	default:
		return wordwrap.String(text, length)
	}
}
