// Command embarcadero records location tracks into per-account path
// databases and browses the recorded paths.
package main

import (
	"os"

	"github.com/roach88/embarcadero/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}

	format := "text"
	if f := cmd.PersistentFlags().Lookup("format"); f != nil {
		format = f.Value.String()
	}
	formatter := &cli.OutputFormatter{Format: format, Writer: os.Stderr}
	if format == "json" {
		formatter.Writer = os.Stdout
	}
	os.Exit(formatter.Report(err))
}
