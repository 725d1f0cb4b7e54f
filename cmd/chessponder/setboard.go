package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
)

var thinkAfterSetup bool

var setboardCmd = &cobra.Command{
	Use:   "setboard <notation...>",
	Short: "Decode a setboard position and print it",
	Long: `Decode a board-setup string: ranks from 8 down to 1 with FEN piece
letters, digits for empty squares and '/' between ranks, then the side to
move and optional castling and en passant status.

Recoverable problems are printed as warnings. Structural ones are errors
and make the command exit non-zero.

Examples:
  chessponder setboard "K2R/PPP////q/5ppp/7k/ b"
  chessponder setboard --think "r3k2r/8/8/8/8/8/8/R3K2R w KQkq"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSetboard,
}

func init() {
	setboardCmd.Flags().BoolVar(&thinkAfterSetup, "think", false, "search the position and print the best move")
	rootCmd.AddCommand(setboardCmd)
}

func runSetboard(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setupLogging(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	eng := engine.New(engine.Options{
		HashMB:   cfg.Engine.HashMB,
		MaxDepth: cfg.Engine.MaxDepth,
		Clock:    cfg.Clock.EngineClock(),
		Logger:   logger,
	})
	notation := strings.Join(args, " ")
	setup, err := eng.SetBoard(notation)
	if err != nil {
		return fmt.Errorf("setboard %q: %w", notation, err)
	}

	out := cmd.OutOrStdout()
	for _, w := range setup.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
	pos := eng.Position()
	fmt.Fprint(out, pos)
	fmt.Fprintf(out, "FEN:   %s\n", pos.FEN())
	fmt.Fprintf(out, "Phase: %s\n", eng.Phase())

	if !thinkAfterSetup {
		return nil
	}
	move, pv := eng.Think(context.Background())
	logger.Debug("setboard search done", zap.Uint64("nodes", eng.Nodes()))
	if move == board.NoMove {
		fmt.Fprintln(out, "No legal moves")
		return nil
	}
	fmt.Fprintf(out, "Best:  %s (%s)\n", eng.MoveText(move), pv)
	fmt.Fprintf(out, "Info:  %s\n", eng.Info())
	return nil
}
