package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/recognition"
	"github.com/spf13/cobra"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Run one face decision against the camera",
	Long: `Capture frames until a face is stably recognized, the decision times out,
or the command is interrupted. Prints the outcome.

Examples:
  # Initial decision with the configured threshold
  frontdesk decide

  # Retry parameters, printed as JSON
  frontdesk decide --retry --json`,
	Args: cobra.NoArgs,
	RunE: runDecide,
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().Bool("retry", false, "Use the retry stability requirement")
	decideCmd.Flags().Float64("threshold", 0, "Override the match threshold (0 = FACE_THRESHOLD)")
	decideCmd.Flags().Duration("timeout", 0, "Override the decision timeout (0 = FACE_DECISION_TIMEOUT)")
	decideCmd.Flags().Bool("json", false, "Print the outcome as JSON")
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		if t > 1 {
			return fmt.Errorf("threshold must be in (0, 1], got %v", t)
		}
		cfg.Face.Threshold = t
	}
	if d := mustGetDuration(cmd, "timeout"); d > 0 {
		cfg.Face.DecisionTimeout = d
	}
	mode := recognition.ModeInitial
	if mustGetBool(cmd, "retry") {
		mode = recognition.ModeRetry
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg, database.OpenModeMatch)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.engine.Decide(ctx, mode)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printOutcome(cmd, out)
	return nil
}

func printOutcome(cmd *cobra.Command, out recognition.Outcome) {
	w := cmd.OutOrStdout()
	switch out.Kind {
	case recognition.OutcomeSuccess:
		name := out.Name
		if out.RecordMissing {
			name = "(no record)"
		}
		fmt.Fprintf(w, "Recognized %s %s (score %.3f)\n", out.IdentityID, name, out.Score)
	case recognition.OutcomeUnknown:
		fmt.Fprintf(w, "Unknown face (best score %.3f)\n", out.Score)
	default:
		fmt.Fprintf(w, "Decision %s\n", out.Kind)
	}
	fmt.Fprintf(w, "  Frames:  %d\n", out.Frames)
	fmt.Fprintf(w, "  Elapsed: %s\n", out.Elapsed.Round(time.Millisecond))
	if out.Error != "" {
		fmt.Fprintf(w, "  Error:   %s\n", out.Error)
	}
}
