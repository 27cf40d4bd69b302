// Command apidemos-e2e runs the ApiDemos end-to-end scenario against an
// Appium server.
package main

import "github.com/devicelab-dev/apidemos-e2e/pkg/cli"

func main() {
	cli.Execute()
}
