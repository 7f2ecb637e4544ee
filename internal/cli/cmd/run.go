package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/RaduCristea123/OBIWAN/internal/archive"
	"github.com/RaduCristea123/OBIWAN/internal/config"
	"github.com/RaduCristea123/OBIWAN/internal/convert"
	"github.com/RaduCristea123/OBIWAN/internal/datalog"
	"github.com/RaduCristea123/OBIWAN/internal/lidar"
	"github.com/RaduCristea123/OBIWAN/internal/pipeline"
	"github.com/RaduCristea123/OBIWAN/internal/scc"
	"github.com/RaduCristea123/OBIWAN/pkg/checkpoint"
)

const (
	checkpointName = "obiwan.swp"
	dateLayout     = "20060102150405"
)

var (
	folder      string
	startDate   string
	endDate     string
	datalogPath string

	replaceExisting bool
	reprocess       bool
	download        bool
	convertOnly     bool
	continuous      bool
	resume          bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Scan a data folder and process its measurements",
		Long: `Scan a licel data folder, segment the recordings into measurements and
run each one through convert, upload and download.`,
		Example: `  obiwan run --folder /data/lidar --cfg obiwan.yaml
  obiwan run --folder /data/lidar --startdate 20230615000000 --download
  obiwan run --folder /data/lidar --continuous --resume`,
		RunE: runProcessing,
	}
)

func init() {
	runCmd.Flags().StringVar(&folder, "folder", "", "path to the data folder to scan")
	runCmd.Flags().StringVar(&startDate, "startdate", "", "earliest start time to include (YYYYMMDDHHMMSS)")
	runCmd.Flags().StringVar(&endDate, "enddate", "", "latest end time to include (YYYYMMDDHHMMSS)")
	runCmd.Flags().StringVar(&datalogPath, "datalog", "datalog.csv", "path of the CSV processing report")
	runCmd.Flags().BoolVarP(&replaceExisting, "replace", "r", false, "replace measurements that already exist in the SCC database")
	runCmd.Flags().BoolVarP(&reprocess, "reprocess", "p", false, "reprocess measurements that already exist in the SCC database, skipping the reupload")
	runCmd.Flags().BoolVarP(&download, "download", "d", false, "download SCC products after processing")
	runCmd.Flags().BoolVarP(&convertOnly, "convert", "c", false, "convert files to SCC NetCDF without submitting")
	runCmd.Flags().BoolVar(&continuous, "continuous", false, "use for continuous measuring systems")
	runCmd.Flags().BoolVar(&resume, "resume", false, "resume an interrupted run from its checkpoint")
	runCmd.MarkFlagRequired("folder")

	rootCmd.AddCommand(runCmd)
}

func runProcessing(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	start, err := parseDateFlag(startDate)
	if err != nil {
		return fmt.Errorf("bad --startdate: %w", err)
	}
	end, err := parseDateFlag(endDate)
	if err != nil {
		return fmt.Errorf("bad --enddate: %w", err)
	}

	if err := os.MkdirAll(cfg.NetCDFOutDir, 0o755); err != nil {
		return fmt.Errorf("could not create output folder: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	absFolder, err := filepath.Abs(folder)
	if err != nil {
		return err
	}

	runCfg := checkpoint.RunConfig{
		ConvertOnly: convertOnly,
		Reprocess:   reprocess,
		Replace:     replaceExisting,
		Download:    download,
		Folder:      absFolder,
	}

	store := checkpoint.New(filepath.Join(cfg.NetCDFOutDir, checkpointName))
	found, err := store.Load()
	if err != nil {
		return fmt.Errorf("could not load checkpoint: %w", err)
	}

	resuming := resume && found
	if resuming {
		fmt.Println(color.YellowString("Previous run was interrupted. Resuming..."))
		if err := store.VerifyResumable(runCfg); err != nil {
			return err
		}
	} else {
		if err := store.ResetMeasurements(); err != nil {
			return err
		}
		if err := store.SetConfig(runCfg); err != nil {
			return err
		}
	}

	wm, err := archive.LoadWatermark(cfg.WatermarkFile)
	if err != nil {
		return err
	}

	if continuous {
		// Pick up where the interrupted run left off instead of
		// rescanning everything before the recorded boundary.
		if last := store.Watermark(); !last.IsZero() {
			if start == nil || start.Before(last) {
				start = &last
			}
		}
	}

	client, err := scc.NewHTTPClient(cfg.SCC)
	if err != nil {
		return err
	}
	if !convertOnly {
		if err := client.Login(ctx); err != nil {
			return fmt.Errorf("could not log in to the SCC: %w", err)
		}
	}

	index, err := convert.NewSystemIndex(cfg.ConfigurationsFolder, lidar.LicelHeaderReader{})
	if err != nil {
		return err
	}

	printRunHeader(cfg, absFolder, start, end)

	arch, err := archive.New(absFolder, lidar.LicelHeaderReader{})
	if err != nil {
		return err
	}

	log.Printf("Identifying measurements. This can take a few minutes...")
	if err := arch.Scan(start, end); err != nil {
		return err
	}

	measurements := arch.ContinuousMeasurements(cfg.SegmentOptions(), wm)
	log.Printf("Processed %d files", len(arch.Records()))
	log.Printf("Identified %d different continuous measurements with a maximum acceptable gap of %ds",
		len(measurements), cfg.MaxGap)

	debugDir := ""
	if cfg.Debug {
		debugDir = cfg.DebugDir
	}

	orch := pipeline.New(pipeline.Options{
		ConvertOnly:      convertOnly,
		Reprocess:        reprocess,
		Replace:          replaceExisting,
		Download:         download,
		Continuous:       continuous,
		MaxUploadRetries: cfg.MaxUploadRetries,
		StationCode:      cfg.StationCode,
		NetCDFOutDir:     cfg.NetCDFOutDir,
		DataFolder:       absFolder,
		DebugDir:         debugDir,
	}, index, &convert.ExecSerializer{
		Command:   cfg.ConverterCommand,
		ExtraArgs: cfg.ConverterArgs,
	}, client, store)

	log.Printf("Starting processing")
	runErr := orch.Run(ctx, measurements)

	if debugDir != "" {
		groups := archive.GroupByGap(arch.TestFiles(), cfg.MaxGapDuration(), false)
		if err := pipeline.CopyTestFiles(groups, debugDir, cfg.TestLists); err != nil {
			log.Printf("Could not copy test files: %v", err)
		}
	}

	if err := writeDatalog(cfg, orch.Rows()); err != nil {
		log.Printf("Could not write processing report: %v", err)
	}

	if runErr != nil {
		return runErr
	}

	if continuous {
		wm.LastScanned = time.Now().UTC()
		wm.Advance(store.Watermark())
		if err := wm.Save(); err != nil {
			return err
		}
	}

	// A finished run leaves a clean checkpoint behind.
	if err := store.ResetMeasurements(); err != nil {
		return err
	}

	fmt.Println(color.GreenString("Processing finished"))
	return nil
}

func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func printRunHeader(cfg *config.Config, absFolder string, start, end *time.Time) {
	log.Printf("Run started at %s", time.Now().Format("2006-01-02 15:04:05"))

	absCfg, _ := filepath.Abs(cfgFile)
	log.Printf("Configuration file = %s", absCfg)
	log.Printf("Data folder = %s", absFolder)
	log.Printf("Minimum start time = %s", formatDate(start))
	log.Printf("Maximum end time = %s", formatDate(end))
	log.Printf("Maximum gap between measurements (seconds) = %d", cfg.MaxGap)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04:05")
}

func writeDatalog(cfg *config.Config, rows []datalog.Row) error {
	if len(rows) == 0 {
		return nil
	}

	csvPath := cfg.Datalog.CSVPath
	if csvPath == "" {
		csvPath = datalogPath
	}
	if csvPath != "" {
		sink := &datalog.CSVSink{Path: csvPath}
		if err := sink.Append(rows); err != nil {
			return err
		}
	}

	if cfg.Datalog.SQLitePath != "" {
		sink, err := datalog.NewSQLiteSink(cfg.Datalog.SQLitePath)
		if err != nil {
			return err
		}
		defer sink.Close()
		return sink.Append(rows)
	}
	return nil
}
