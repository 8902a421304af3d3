package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/goldcase/internal/tensorio"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print a case or a single tensor file as JSON",
		ArgsUsage: "<case name | tensor file>",
		Flags: []cli.Flag{
			dirFlag("directory written by generate"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyOutputConfig(cmd, cfg)
			if cmd.Args().Len() != 1 {
				return cli.Exit("error: inspect takes exactly one case name or tensor file", 1)
			}
			arg := cmd.Args().First()
			w := cmd.Root().Writer

			if codec, ok := codecForPath(arg); ok {
				if _, err := os.Stat(arg); err == nil {
					t, err := tensorio.ReadFile(codec, arg)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: %v", err), 1)
					}
					return printTensor(w, t)
				}
			}
			return inspectCase(w, outDir, arg)
		},
	}
}

func codecForPath(path string) (tensorio.Codec, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, name := range tensorio.Formats() {
		c, err := tensorio.Lookup(name)
		if err == nil && c.Ext() == ext {
			return c, true
		}
	}
	return nil, false
}

func printTensor(w io.Writer, t *tensor.Tensor) error {
	doc, err := tensorio.ToDocument(t)
	if err != nil {
		return err
	}
	return printJSON(w, doc)
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

type inspectOutput struct {
	Model   *tensorio.Model      `json:"model"`
	Inputs  []*tensorio.Document `json:"inputs"`
	Outputs []*tensorio.Document `json:"outputs"`
}

func inspectCase(w io.Writer, root, name string) error {
	m, err := tensorio.ReadModel(root, name)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	c, err := tensorio.ReadCase(root, name)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	out := inspectOutput{Model: m}
	for _, t := range c.Inputs {
		out.Inputs = append(out.Inputs, docOrNil(t))
	}
	for _, t := range c.Outputs {
		out.Outputs = append(out.Outputs, docOrNil(t))
	}
	return printJSON(w, out)
}

func docOrNil(t *tensor.Tensor) *tensorio.Document {
	if t == nil {
		return nil
	}
	doc, err := tensorio.ToDocument(t)
	if err != nil {
		return nil
	}
	return &doc
}
