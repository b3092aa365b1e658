package main

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// statResult is the JSON document printed by stat.
type statResult struct {
	Backend string `json:"backend"`
	Source  string `json:"source"`
	Length  uint64 `json:"length"`
}

// StatCmd prints the current length of a source as JSON.
func StatCmd() cli.Command {
	return cli.Command{
		Name:      "stat",
		Usage:     "print the addressable length of a source",
		ArgsUsage: "<path-or-key>",
		Flags:     backendFlags(),
		Action: func(c *cli.Context) error {
			if err := stat(c); err != nil {
				return fmt.Errorf("error running stat command: %w", err)
			}
			return nil
		},
	}
}

func stat(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	src, err := openSource(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	n, err := src.Len(ctx)
	if err != nil {
		return err
	}
	return json.NewEncoder(output(c)).Encode(statResult{
		Backend: src.backend,
		Source:  src.name,
		Length:  n,
	})
}
