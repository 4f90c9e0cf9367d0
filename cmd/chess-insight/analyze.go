package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/park285/chess-insight/internal/chess"
	"github.com/park285/chess-insight/internal/chessbuilder"
	"github.com/park285/chess-insight/internal/domain"
	"github.com/park285/chess-insight/internal/httpapi"
	"github.com/park285/chess-insight/internal/msgcat"
	"github.com/park285/chess-insight/internal/obslog"
	"github.com/park285/chess-insight/internal/service/analysis"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [FILE]",
	Short: "Analyse the final position of a PGN or move list",
	Long: `Replay a transcript (PGN, bare SAN or UCI moves) and evaluate the final
position. Reads FILE, or standard input when FILE is omitted or "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	transcript, err := readTranscript(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Engine.StockfishPath) == "" {
		return fmt.Errorf("%w: STOCKFISH_PATH is required", domain.ErrEngineUnavailable)
	}

	logger := obslog.L()
	engine, err := chess.NewEngine(chessbuilder.EngineConfig(cfg.Engine), logger.Named("engine"), nil)
	if err != nil {
		return err
	}
	defer engine.Close()
	handler, err := analysis.NewHandler(engine, logger.Named("analysis"))
	if err != nil {
		return err
	}

	report, err := handler.Handle(cmd.Context(), transcript)
	if err != nil {
		return err
	}

	dto := httpapi.AnalysisDTO(report)
	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dto)
	}

	opening := ""
	if dto.Opening != nil {
		opening = dto.Opening.ECO + " " + dto.Opening.Name
	}
	best := dto.BestMoveSAN
	if best == "" {
		best = dto.BestMove
	}
	if best == "" {
		best = "none"
	}
	eval := fmt.Sprintf("%s %d", dto.Evaluation.Type, dto.Evaluation.Value)
	fmt.Fprintln(out, dto.FEN)
	fmt.Fprintln(out, msgcat.MustDefault().Text("analysis.summary", map[string]any{
		"Opening":    opening,
		"BestMove":   best,
		"Evaluation": eval,
	}, best+" ("+eval+")"))
	for i, l := range dto.TopLines {
		fmt.Fprintf(out, "%d. %s %s %d  %s\n", i+1, l.MoveSAN, l.Score.Type, l.Score.Value, strings.Join(l.PV, " "))
	}
	return nil
}

func readTranscript(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return string(raw), nil
}
