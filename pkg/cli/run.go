package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/apidemos-e2e/pkg/apidemos"
	"github.com/devicelab-dev/apidemos-e2e/pkg/config"
	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/executor"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
	"github.com/devicelab-dev/apidemos-e2e/pkg/report"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the ApiDemos scenario",
	Description: `Run the scenario tests in order against one Appium session.

A test whose required test did not pass is skipped. Reports are written to
the output directory:
  - Default: <home>/reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  apidemos-e2e run
  apidemos-e2e run --only "click accessibility"
  apidemos-e2e --output ./out run --flatten --allure`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "only",
			Usage: "Run only these tests (and the tests they require)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write allure-results/",
		},
		&cli.BoolFlag{
			Name:  "embed-assets",
			Usage: "Embed screenshots in report.html",
		},
		&cli.BoolFlag{
			Name:  "capture-on-success",
			Usage: "Capture artifacts for passing tests too",
		},
	},
	Action: runSuite,
}

// RunOptions holds everything runScenario needs besides the config.
type RunOptions struct {
	OutputDir   string
	Only        []string
	Allure      bool
	EmbedAssets bool
	Verbose     bool
	Out         io.Writer
}

func runSuite(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("capture-on-success") {
		cfg.Artifacts.CaptureOnSuccess = true
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite, err := runScenario(ctx, cfg, RunOptions{
		OutputDir:   outputDir,
		Only:        c.StringSlice("only"),
		Allure:      c.Bool("allure"),
		EmbedAssets: c.Bool("embed-assets"),
		Verbose:     c.Bool("verbose"),
		Out:         c.App.Writer,
	})
	if err != nil {
		return err
	}

	// Exit with code 1 if any test did not pass (summary already printed)
	if !suite.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// resolveOutputDir determines the output directory based on flags.
//   - No --output: <home>/reports/<timestamp>/
//   - --output given: <output>/<timestamp>/
//   - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		dir, err := config.ReportsDir()
		if err != nil {
			return "", err
		}
		baseDir = dir
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// runScenario executes the scenario and writes report.json, report.html
// and optionally allure-results/ into opts.OutputDir.
func runScenario(ctx context.Context, cfg *config.Config, opts RunOptions) (*core.SuiteResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	scenario := apidemos.New(cfg)
	tests := scenario.Tests()
	if len(opts.Only) > 0 {
		selected, err := executor.Select(tests, opts.Only)
		if err != nil {
			return nil, err
		}
		tests = selected
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := filepath.Join(opts.OutputDir, "apidemos-e2e.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(out, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logger.SetVerbose(opts.Verbose)

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", opts.OutputDir)
	logger.Info("Server: %s, device: %s, app: %s", cfg.ServerURL, cfg.DeviceName, cfg.AppPackage)

	specs := make([]report.TestSpec, len(tests))
	for i, t := range tests {
		specs[i] = report.TestSpec{Name: t.Name, Requires: t.Requires}
	}
	index := report.BuildSkeleton(specs, report.BuilderConfig{
		Suite:         apidemos.SuiteName,
		Platform:      cfg.Platform(),
		RunnerVersion: Version,
	})
	if err := report.WriteSkeleton(opts.OutputDir, index); err != nil {
		return nil, err
	}
	writer := report.NewIndexWriter(opts.OutputDir, index)

	fmt.Fprintf(out, "\n%s%s%s on %s (%s)\n\n", color(colorBold), apidemos.SuiteName, color(colorReset), cfg.DeviceName, cfg.ServerURL)

	p := progress{out: out}
	runner := executor.New(scenario, executor.RunnerConfig{
		SuiteName: apidemos.SuiteName,
		RunID:     index.RunID,
		Artifacts: cfg.Artifacts,
		OnTestStart: func(idx, total int, name string) {
			writer.TestStart(idx)
			p.testStart(idx, total, name)
		},
		OnTestEnd: func(r core.TestResult) {
			writer.TestEnd(r)
			var paths []string
			for _, a := range writer.GetIndex().Tests[r.Index].Attachments {
				paths = append(paths, filepath.Join(opts.OutputDir, a.Path))
			}
			p.testEnd(r, paths)
		},
	})

	writer.Start()
	suite, err := runner.Run(ctx, tests)
	if err != nil {
		return nil, err
	}
	if st := scenario.ServerStatus(); st != nil {
		writer.SetServerVersion(st.Build.Version)
	}
	writer.End(suite)
	logger.Info("Run finished: %s", writer.GetIndex().Summary)

	printSummary(out, suite)
	writeReports(out, opts)
	return suite, nil
}

// writeReports renders report.json into the optional formats. Failures
// are warnings; report.json is already complete.
func writeReports(out io.Writer, opts RunOptions) {
	htmlPath := filepath.Join(opts.OutputDir, "report.html")
	jsonPath := filepath.Join(opts.OutputDir, report.IndexFile)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Reports:")

	if err := report.GenerateHTML(opts.OutputDir, report.HTMLConfig{
		OutputPath:  htmlPath,
		EmbedAssets: opts.EmbedAssets,
	}); err != nil {
		logger.Warn("HTML report failed: %v", err)
		fmt.Fprintf(out, "  %s⚠%s Warning: failed to generate HTML report: %v\n", color(colorYellow), color(colorReset), err)
	} else {
		fmt.Fprintf(out, "    HTML:   %s\n", htmlPath)
	}
	fmt.Fprintf(out, "    JSON:   %s\n", jsonPath)

	if opts.Allure {
		if err := report.GenerateAllure(opts.OutputDir); err != nil {
			logger.Warn("Allure results failed: %v", err)
			fmt.Fprintf(out, "  %s⚠%s Warning: failed to generate Allure results: %v\n", color(colorYellow), color(colorReset), err)
		} else {
			fmt.Fprintf(out, "    Allure: %s\n", filepath.Join(opts.OutputDir, "allure-results"))
		}
	}
	fmt.Fprintf(out, "    Log:    %s\n", filepath.Join(opts.OutputDir, "apidemos-e2e.log"))
	fmt.Fprintln(out)
}
