package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/apidemos-e2e/pkg/apidemos"
	"github.com/devicelab-dev/apidemos-e2e/pkg/session"
)

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "Check that the Appium server is available",
	Description: `Probe GET <appium-url>/status. Exits 0 only when the server answers 200.

Examples:
  apidemos-e2e status
  apidemos-e2e --appium-url http://10.0.2.2:4723 status`,
	Action: checkStatus,
}

var stepsCommand = &cli.Command{
	Name:   "steps",
	Usage:  "List the scenario tests and what each requires",
	Action: listSteps,
}

func checkStatus(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out := c.App.Writer

	status, err := session.NewHealthChecker(cfg.StatusTimeout).Status(c.Context, cfg.ServerURL)
	if err != nil {
		fmt.Fprintf(out, "%s✗%s %v\n", color(colorRed), color(colorReset), err)
		return cli.Exit("", 1)
	}

	version := status.Build.Version
	if version == "" {
		version = "unknown"
	}
	fmt.Fprintf(out, "%s✓%s %s is available (version %s, ready %t)\n",
		color(colorGreen), color(colorReset), cfg.ServerURL, version, status.Ready)
	if status.Message != "" {
		fmt.Fprintf(out, "  %s\n", status.Message)
	}
	return nil
}

func listSteps(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	out := c.App.Writer

	for i, t := range apidemos.New(cfg).Tests() {
		line := fmt.Sprintf("%d. %s", i+1, t.Name)
		if len(t.Requires) > 0 {
			line += fmt.Sprintf(" %s(requires %s)%s", color(colorGray), strings.Join(t.Requires, ", "), color(colorReset))
		}
		if !t.Session {
			line += fmt.Sprintf(" %s[no session]%s", color(colorGray), color(colorReset))
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
