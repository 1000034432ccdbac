package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tosih/secu3-ltft/pkg/compare"
	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/editor"
	"github.com/tosih/secu3-ltft/pkg/export"
	"github.com/tosih/secu3-ltft/pkg/logging"
	"github.com/tosih/secu3-ltft/pkg/metrics"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/reader"
	"github.com/tosih/secu3-ltft/pkg/renderer"
	"github.com/tosih/secu3-ltft/pkg/scanner"
	"github.com/tosih/secu3-ltft/pkg/sim"
	"github.com/tosih/secu3-ltft/pkg/web"
)

// publishEvery is the number of ticks between monitor snapshots.
const publishEvery = 50

var (
	calibrationPath string
	logLevel        string
	logFile         string

	mapType     string
	compareMap  string
	displayMode string
	verbose     bool
	dryRun      bool
	exportDir   string

	simImage     string
	simTicks     int
	simTrueTrim  int16
	simDwell     int
	simSaveEvery int
	simListen    string
	simRealtime  bool

	rootCmd = &cobra.Command{
		Use:           "secu3-ltft",
		Short:         "Long term fuel trim learning for SECU-3 calibration images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run the learning engine against a simulated engine",
		RunE:  runSimulate,
	}
	initCmd = &cobra.Command{
		Use:   "init [image]",
		Short: "Write a fresh calibration image from the calibration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
	showCmd = &cobra.Command{
		Use:   "show [image]",
		Short: "Display VE and trim maps of an image",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			renderer.DisplayMaps(args[0], mapType, verbose, displayMode)
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the maps stored in an image",
		Run: func(cmd *cobra.Command, args []string) {
			renderer.ListAvailableMaps()
		},
	}
	exportCmd = &cobra.Command{
		Use:   "export [image]",
		Short: "Export maps to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return export.ExportMapsToCSV(args[0], exportDir, mapType)
		},
	}
	importCmd = &cobra.Command{
		Use:   "import [image] [csv]",
		Short: "Import a map exported to CSV back into an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return export.ImportMapFromCSV(args[0], args[1], dryRun)
		},
	}
	compareCmd = &cobra.Command{
		Use:   "compare [image1] [image2]",
		Short: "Compare the maps of two images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return compare.CompareFiles(args[0], args[1], compareMap)
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [image]",
		Short: "Report learned trim statistics and cells pinned at a clamp limit",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			scanner.ScanForSaturation(args[0])
		},
	}
	editCmd = &cobra.Command{
		Use:   "edit [image]",
		Short: "Interactively edit or clear learned trims",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			editor.InteractiveEdit(args[0], dryRun)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&calibrationPath, "config", "c", "", "YAML calibration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotated file")

	simulateCmd.Flags().StringVar(&simImage, "image", "", "Calibration image to learn into")
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 6000, "Control ticks to run (10 ms each)")
	simulateCmd.Flags().Int16Var(&simTrueTrim, "true-trim", 41, "Correction the simulated engine needs, x512")
	simulateCmd.Flags().IntVar(&simDwell, "dwell", 400, "Ticks spent on each trajectory cell")
	simulateCmd.Flags().IntVar(&simSaveEvery, "save-every", 0, "Ticks between trim saves, 0 saves once at the end")
	simulateCmd.Flags().StringVar(&simListen, "listen", "", "Serve status, maps and metrics on this address, e.g. :8080")
	simulateCmd.Flags().BoolVar(&simRealtime, "realtime", false, "Pace the simulation at 10 ms per tick")
	simulateCmd.Flags().StringVarP(&displayMode, "mode", "m", "heatmap", "Display mode: values, heatmap or symbols")

	showCmd.Flags().StringVar(&mapType, "map", "all", "Map: ve, ltft1, ltft2 or all")
	showCmd.Flags().StringVarP(&displayMode, "mode", "m", "heatmap", "Display mode: values, heatmap or symbols")
	showCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show map descriptions")

	exportCmd.Flags().StringVar(&mapType, "map", "all", "Map: ve, ltft1, ltft2 or all")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "export", "Output directory")

	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without writing")
	editCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show changes without writing")

	compareCmd.Flags().StringVar(&compareMap, "map", "ltft1", "Map: ve, ltft1, ltft2 or all")

	rootCmd.AddCommand(simulateCmd, initCmd, showCmd, listCmd, exportCmd, importCmd, compareCmd, scanCmd, editCmd)
}

func newLogger() (*zap.Logger, error) {
	return logging.New(logging.Options{Level: logLevel, File: logFile})
}

func runInit(cmd *cobra.Command, args []string) error {
	cal, err := config.LoadFile(calibrationPath)
	if err != nil {
		return err
	}
	img := &reader.Image{RPM: cal.RPMAxis(), Load: cal.LoadAxis()}
	img.VE.Fill(models.VEScale)
	if err := os.WriteFile(args[0], editor.EncodeImage(img), 0644); err != nil {
		return errors.Wrap(err, "write image")
	}
	values := cal.ImageParams()
	for _, p := range models.ConfigParams {
		if err := editor.WriteConfigParam(args[0], p, values[p.Name]); err != nil {
			return err
		}
	}
	pterm.Success.Printf("Calibration image written to %s\n", args[0])
	return nil
}

// loadImage overlays grids, tables and parameters of an image on opts.
func loadImage(opts *sim.Options, path string) (*reader.Image, error) {
	img, err := reader.ReadImage(path)
	if err != nil {
		return nil, err
	}
	params, err := reader.ReadConfigParams(path)
	if err != nil {
		return nil, err
	}
	opts.Calibration.RPMGrid = img.RPM.Points
	opts.Calibration.LoadGrid = img.Load.Points
	opts.Calibration.ApplyImageParams(params.Values)
	if err := opts.Calibration.Validate(); err != nil {
		return nil, errors.Wrapf(err, "image %s", path)
	}
	opts.BaseVE = img.VE
	return img, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := sim.DefaultOptions()
	if opts.Calibration, err = config.LoadFile(calibrationPath); err != nil {
		return err
	}
	for l := range opts.TrueTrim {
		for r := range opts.TrueTrim[l] {
			opts.TrueTrim[l][r] = simTrueTrim
		}
	}
	opts.DwellTicks = simDwell
	opts.SaveEvery = simSaveEvery
	opts.Logger = log

	var img *reader.Image
	if simImage != "" {
		if img, err = loadImage(&opts, simImage); err != nil {
			return err
		}
		opts.Image = simImage
	}

	reg := prometheus.NewRegistry()
	opts.Observer = metrics.NewCollector(reg)

	bench, err := sim.NewBench(opts)
	if err != nil {
		return err
	}
	if img != nil {
		bench.Trim = img.Trim
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	monitor := &web.Monitor{}
	monitor.Publish(bench.Snapshot())
	serveErr := make(chan error, 1)
	if simListen != "" {
		srv := web.NewServer(simListen, monitor, reg, opts.Calibration.RPMAxis(), opts.Calibration.LoadAxis(), log.Named("web"))
		go func() { serveErr <- srv.Start(ctx) }()
	}

	spinner, _ := pterm.DefaultSpinner.Start("Learning...")
	if err := runBench(ctx, bench, monitor); err != nil {
		spinner.Fail(err.Error())
		return err
	}
	if simImage != "" {
		if err := bench.Flush(); err != nil {
			spinner.Fail(err.Error())
			return err
		}
	}
	spinner.Success(pterm.Sprintf("%d ticks simulated", bench.Ticks()))

	renderer.RenderStatus(bench.Engine.Status())

	rows, err := metrics.Summary(reg)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		data := append([][]string{{"Counter", "Labels", "Value"}}, rows...)
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	axes := renderer.Axes{RPM: opts.Calibration.RPMAxis(), Load: opts.Calibration.LoadAxis()}
	begin, end := opts.Calibration.Channels()
	for ch := begin; ch < end; ch++ {
		m := bench.Trim[ch].ToMap(ch)
		min, max := reader.FindMinMax(m.Data)
		pterm.Println()
		renderer.RenderMap(m, axes, false, displayMode, min, max)
	}

	if simListen != "" {
		pterm.Info.Println("Simulation finished, monitor still serving. Press Ctrl+C to stop.")
		<-ctx.Done()
		return <-serveErr
	}
	return nil
}

// runBench runs simTicks ticks, publishing snapshots for the monitor.
func runBench(ctx context.Context, bench *sim.Bench, monitor *web.Monitor) error {
	for done := 0; done < simTicks; done += publishEvery {
		n := publishEvery
		if simTicks-done < n {
			n = simTicks - done
		}
		started := time.Now()
		if err := bench.Run(n); err != nil {
			return err
		}
		monitor.Publish(bench.Snapshot())

		if simRealtime {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(n)*10*time.Millisecond - time.Since(started)):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
