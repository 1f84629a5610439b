package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/kozaktomas/frontdesk/internal/config"
	"github.com/kozaktomas/frontdesk/internal/constants"
	"github.com/kozaktomas/frontdesk/internal/database"
	"github.com/kozaktomas/frontdesk/internal/enroll"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Inspect and import enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities and their sample counts",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesSimilarCmd = &cobra.Command{
	Use:   "similar <identity-id>",
	Short: "Show the enrolled identities closest to one identity",
	Long: `Show the enrolled identities whose centroid is closest to the given identity.
Useful to spot look-alikes that may be confused at the configured threshold.

Examples:
  frontdesk identities similar E001 --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentitiesSimilar,
}

var identitiesImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Enroll identities from a directory of reference photos",
	Long: `Detect the face in every <ID>.jpg or <ID>.png of a directory and enroll it.
Identities that are already enrolled are skipped. Photos are copied into the
configured photo directory.

The import can be stopped and resumed - enrolled identities are skipped.

Examples:
  frontdesk identities import ./photos`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentitiesImport,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesSimilarCmd)
	identitiesCmd.AddCommand(identitiesImportCmd)

	identitiesSimilarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Number of neighbors to show")
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	a, err := buildApp(context.Background(), cfg, database.OpenModeEnroll)
	if err != nil {
		return err
	}
	defer a.Close()

	ids := a.engine.Identities()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-20s %s\n", "IDENTITY", "SAMPLES")
	for _, s := range ids {
		fmt.Fprintf(w, "%-20s %d\n", s.IdentityID, s.Samples)
	}
	fmt.Fprintf(w, "\n%d identities\n", len(ids))
	return nil
}

func runIdentitiesSimilar(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	if limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	cfg := config.Load()
	a, err := buildApp(context.Background(), cfg, database.OpenModeMatch)
	if err != nil {
		return err
	}
	defer a.Close()

	neighbors, err := a.engine.Similar(args[0], limit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, n := range neighbors {
		marker := ""
		if n.Similarity >= cfg.Face.Threshold {
			marker = "  (above threshold)"
		}
		fmt.Fprintf(w, "%-20s %.4f%s\n", n.IdentityID, n.Similarity, marker)
	}
	if len(neighbors) == 0 {
		fmt.Fprintln(w, "No other identities enrolled")
	}
	return nil
}

func runIdentitiesImport(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg, database.OpenModeEnroll)
	if err != nil {
		return err
	}
	defer a.Close()

	images, err := enroll.NewAssetStore(dir).List()
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Printf("No images found in %s\n", dir)
		return nil
	}
	fmt.Printf("Found %d images\n", len(images))

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Importing faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	im := &enroll.Importer{
		Assets:   a.assets,
		Store:    a.store,
		Detector: a.detector,
		Logger:   a.log,
		Progress: func(string) { _ = bar.Add(1) },
	}
	report, err := im.Import(ctx, dir)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	fmt.Printf("Imported: %d\n", len(report.Imported))
	fmt.Printf("Skipped:  %d\n", len(report.Skipped))
	if len(report.Failed) > 0 {
		fmt.Printf("Failed:   %d\n", len(report.Failed))
		failed := make([]string, 0, len(report.Failed))
		for id := range report.Failed {
			failed = append(failed, id)
		}
		sort.Strings(failed)
		for _, id := range failed {
			fmt.Printf("  %s: %v\n", id, report.Failed[id])
		}
	}
	return nil
}
