package main

import "github.com/urfave/cli/v3"

var (
	modelsDir   string
	catalogPath string
	logLevel    string
	logFormat   string
	debug       bool
)

func catalogFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "models-dir",
			Aliases:     []string{"path"},
			Usage:       "directory containing .gguf model files",
			Destination: &modelsDir,
		},
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "path to the catalog file",
			Destination: &catalogPath,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
