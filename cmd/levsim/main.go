// Command levsim is the leverage simulator CLI.
package main

import (
	"fmt"
	"os"

	"leverage-sim/internal/cli"
)

func main() {
	app := cli.NewApp()
	err := cli.NewRootCmd(app).Execute()
	if cerr := app.Close(); cerr != nil {
		app.Logger.Warn().Err(cerr).Msg("Failed to release resources")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
