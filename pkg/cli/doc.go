/*
Package cli provides command-line interface utilities for the callisto tool.

The cli package includes output formatters, error types, and signal handling
helpers shared by the callisto subcommands.

Output Formatting:

The cli package supports multiple output formats (text, JSON, CSV) for
displaying command results:

	formatter := cli.NewFormatter(cli.FormatJSON)
	data := MyCommandResult{...}
	if err := formatter.FormatTo(os.Stdout, data); err != nil {
		return err
	}

The CSV formatter takes pre-rendered rows:

	formatter := &cli.CSVFormatter{Headers: []string{"event", "attempts"}}
	err := formatter.FormatTo(os.Stdout, [][]string{{"ev-1", "3"}})

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
