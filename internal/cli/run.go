package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rmaia/idlink/internal/config"
	"github.com/rmaia/idlink/internal/db"
	"github.com/rmaia/idlink/internal/pipeline"
	"github.com/rmaia/idlink/internal/source"
	"github.com/rmaia/idlink/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one migration batch",
	Long: `Matches a source CSV snapshot against a target CSV snapshot and
assigns canonical UUIDs, persisting new assignments to the identity store.

Examples:
  idlink run --config migration.yaml --source oss --targets clients.csv --records oss_sales.csv
  idlink run --config migration.yaml --source vixen --targets clients.csv --records vixen.csv --json
`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runSourceName  string
	runTargetsPath string
	runRecordsPath string
	runReportPath  string
	runJSON        bool
	runQuiet       bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfigPath, "config", "idlink.yaml", "Path to run configuration YAML")
	runCmd.Flags().StringVar(&runSourceName, "source", "", "Source system name (must exist in config)")
	runCmd.Flags().StringVar(&runTargetsPath, "targets", "", "CSV snapshot of the target record set")
	runCmd.Flags().StringVar(&runRecordsPath, "records", "", "CSV snapshot of the source record set")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "Write the JSON coverage report to this file")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the coverage report as JSON instead of text")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress progress logging")
	mustMarkRequired(runCmd, "source", "targets", "records")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	if storePath, _ := cmd.Flags().GetString("store"); storePath != "" {
		cfg.StorePath = storePath
	}
	if cfg.StorePath == "" {
		return fmt.Errorf("no identity store path configured (set store_path, IDLINK_STORE_PATH, or --store)")
	}

	targets, err := source.LoadCSV(runTargetsPath)
	if err != nil {
		return err
	}
	records, err := source.LoadCSV(runRecordsPath)
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

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if runQuiet {
		log.SetLevel(logrus.ErrorLevel)
	}

	result, runErr := pipeline.Run(cfg, runSourceName, targets, records, store.New(database), log)

	// The report is emitted even when the run aborted, to the extent it
	// was computed before the failure.
	if result != nil && result.Report != nil {
		if err := emitReport(result, runErr != nil); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func emitReport(result *pipeline.Result, partial bool) error {
	rep := result.Report
	if partial {
		fmt.Fprintln(os.Stderr, "warning: run aborted, report reflects partial results")
	}
	if runJSON {
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Print(rep.Text())
	}
	if runReportPath != "" {
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(runReportPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
