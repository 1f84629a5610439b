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

var loginCmd = &cobra.Command{
	Use:   "login <identity-id>",
	Short: "Authenticate an identity with an emailed passcode",
	Long: `Send a one-time passcode to the email address on record and read the code
from standard input. The spoken name must match the record.

Examples:
  frontdesk login E001 --name "Jana Nováková"`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("name", "", "Name of the person, checked against the record")
	_ = loginCmd.MarkFlagRequired("name")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg, database.OpenModeEnroll)
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.engine.RequestLoginOTP(ctx, args[0], mustGetString(cmd, "name"))
	if err != nil {
		return fmt.Errorf("requesting code: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Code sent to %s\n", pending.SentTo)

	prompt := newCodePrompt(cmd)
	for {
		code, err := prompt.Next()
		if err != nil {
			return err
		}
		v, err := a.engine.VerifyLoginOTP(ctx, pending.IdentityID, code)
		switch {
		case err == nil:
			fmt.Fprintf(cmd.OutOrStdout(), "Authenticated %s\n", v.IdentityID)
			return nil
		case errors.Is(err, otp.ErrCodeMismatch):
			fmt.Fprintf(cmd.OutOrStdout(), "Wrong code, %d attempts remaining\n", v.AttemptsRemaining)
		default:
			return fmt.Errorf("verifying code: %w", err)
		}
	}
}
