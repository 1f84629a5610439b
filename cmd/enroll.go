package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/otp"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity-id>",
	Short: "Enroll the face of an identity",
	Long: `Enroll a new face. A passcode is sent to the identity's email address,
read from standard input, and after it verifies the camera captures the face.
An identity that already has a reference photo is never overwritten.

Examples:
  frontdesk enroll E042`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg, database.OpenModeEnroll)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.engine.RequestEnrollment(ctx, args[0])
	if err != nil {
		return fmt.Errorf("requesting enrollment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Code sent to %s\n", pending.SentTo)

	prompt := newCodePrompt(cmd)
	for {
		code, err := prompt.Next()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Look at the camera...")
		res, err := a.engine.CompleteEnrollment(ctx, pending.IdentityID, code)
		if errors.Is(err, otp.ErrCodeMismatch) {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrong code, %d attempts remaining\n", res.Verdict.AttemptsRemaining)
			continue
		}
		if err != nil {
			return fmt.Errorf("enrolling %s: %w", pending.IdentityID, err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Enrolled %s\n", res.IdentityID)
		fmt.Fprintf(w, "  Samples: %d\n", res.Samples)
		fmt.Fprintf(w, "  Photo:   %s\n", res.AssetPath)
		if res.NearestOther != nil {
			fmt.Fprintf(w, "  Nearest: %s (similarity %.3f)\n", res.NearestOther.IdentityID, res.NearestOther.Similarity)
		}
		return nil
	}
}
