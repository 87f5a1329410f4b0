package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmaia/idlink/internal/config"
	"github.com/rmaia/idlink/internal/db"
	"github.com/rmaia/idlink/internal/pipeline"
	"github.com/rmaia/idlink/internal/report"
	"github.com/rmaia/idlink/internal/source"
	"github.com/rmaia/idlink/internal/store"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a dry run against the last recorded report",
	Long: `Re-matches the given snapshots without writing anything and compares
the resulting coverage report against the report recorded by the most
recent run for the same source system. Exits non-zero when coverage
drifted.

Examples:
  idlink verify --config migration.yaml --source oss --targets clients.csv --records oss_sales.csv
`,
	RunE: runVerify,
}

var (
	verifyConfigPath  string
	verifySourceName  string
	verifyTargetsPath string
	verifyRecordsPath string
	verifyQuiet       bool
)

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyConfigPath, "config", "idlink.yaml", "Path to run configuration YAML")
	verifyCmd.Flags().StringVar(&verifySourceName, "source", "", "Source system name (must exist in config)")
	verifyCmd.Flags().StringVar(&verifyTargetsPath, "targets", "", "CSV snapshot of the target record set")
	verifyCmd.Flags().StringVar(&verifyRecordsPath, "records", "", "CSV snapshot of the source record set")
	verifyCmd.Flags().BoolVar(&verifyQuiet, "quiet", false, "Suppress progress logging")
	mustMarkRequired(verifyCmd, "source", "targets", "records")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(verifyConfigPath)
	if err != nil {
		return err
	}
	if storePath, _ := cmd.Flags().GetString("store"); storePath != "" {
		cfg.StorePath = storePath
	}
	if cfg.StorePath == "" {
		return fmt.Errorf("no identity store path configured (set store_path, IDLINK_STORE_PATH, or --store)")
	}

	targets, err := source.LoadCSV(verifyTargetsPath)
	if err != nil {
		return err
	}
	records, err := source.LoadCSV(verifyRecordsPath)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return err
	}
	st := store.New(database)

	recorded, ok, err := st.LastReport(verifySourceName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no recorded run for source %q, nothing to verify against", verifySourceName)
	}
	var before report.Report
	if err := json.Unmarshal(recorded, &before); err != nil {
		return fmt.Errorf("failed to parse recorded report: %w", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verifyQuiet {
		log.SetLevel(logrus.ErrorLevel)
	}

	result, err := pipeline.DryRun(cfg, verifySourceName, targets, records, st, log)
	if err != nil {
		return err
	}

	diff, err := report.Diff(&before, result.Report)
	if err != nil {
		return err
	}
	if diff != "" {
		fmt.Print(diff)
		return fmt.Errorf("coverage drifted from the last recorded run")
	}
	fmt.Println("coverage matches the last recorded run")
	return nil
}
