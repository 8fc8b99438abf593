package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/armory/internal/report"
	"github.com/okian/armory/pkg/logger"
)

// Default configuration constants.
const (
	defaultTimeout    = 90 * time.Second
	defaultRunTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		team       = flag.String("team", "", "Team name from the server roster")
		characters = flag.String("characters", "", "Comma separated realm/name pairs")
		region     = flag.String("region", "", "Region code")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Also write the JSON result to this file")
		verbose    = flag.Bool("verbose", false, "Print failure messages")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		report.ShowHelp(os.Stdout)
		return
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(level)

	ids, err := report.ParseCharacters(*characters)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &report.Config{
		BaseURL:    *baseURL,
		Team:       *team,
		Characters: ids,
		Region:     *region,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := report.Run(ctx, config, os.Stdout); err != nil {
		os.Stderr.WriteString("Report failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
