package main

import "github.com/urfave/cli/v3"

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	outDir string
	format string
	seed   int64
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
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

func dirFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:        "out",
		Aliases:     []string{"dir", "o"},
		Usage:       usage,
		Value:       "testdata",
		Destination: &outDir,
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "format",
		Aliases:     []string{"f"},
		Usage:       "tensor file format (arrow, safetensors, json)",
		Value:       "arrow",
		Destination: &format,
	}
}

func seedFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:        "seed",
		Usage:       "seed for randomly drawn cast samples",
		Value:       1,
		Destination: &seed,
	}
}
