// Package cli provides the command-line interface for apidemos-e2e.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/apidemos-e2e/pkg/config"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands. Flags override the config
// file and APIDEMOS_* variables.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to apidemos.yaml",
		EnvVars: []string{"APIDEMOS_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device name capability (e.g. emulator-5554)",
	},
	&cli.StringFlag{
		Name:  "app",
		Usage: "APK path as seen by the Appium server",
	},
	&cli.StringFlag{
		Name:  "app-package",
		Usage: "Package name checked by the app installed step",
	},
	&cli.StringFlag{
		Name:  "automation-name",
		Usage: "Appium automation engine",
	},
	&cli.StringFlag{
		Name:  "caps",
		Usage: "JSON file with extra capabilities",
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output directory for reports (default: <home>/reports)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"APIDEMOS_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "apidemos-e2e",
		Usage:   "End-to-end checks for the Android ApiDemos app over Appium",
		Version: Version,
		Description: `apidemos-e2e opens one Appium session against the ApiDemos sample app,
runs an ordered list of checks and writes a report.

Examples:
  apidemos-e2e run
  apidemos-e2e --appium-url http://10.0.2.2:4723 run --only "open app"
  apidemos-e2e --config apidemos.yaml run --allure
  apidemos-e2e status
  apidemos-e2e steps`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			statusCommand,
			stepsCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: defaults, then --config, then
// APIDEMOS_* variables, then flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Resolve(c.String("config"))
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"appium-url", &cfg.ServerURL},
		{"device", &cfg.DeviceName},
		{"app", &cfg.App},
		{"app-package", &cfg.AppPackage},
		{"automation-name", &cfg.AutomationName},
	}
	for _, o := range overrides {
		if c.IsSet(o.flag) {
			*o.target = c.String(o.flag)
		}
	}

	if capsFile := c.String("caps"); capsFile != "" {
		caps, err := config.LoadCapabilities(capsFile)
		if err != nil {
			return nil, err
		}
		if cfg.Capabilities == nil {
			cfg.Capabilities = make(map[string]interface{}, len(caps))
		}
		for k, v := range caps {
			cfg.Capabilities[k] = v
		}
	}

	return cfg, nil
}
