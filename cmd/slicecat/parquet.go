package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/urfave/cli"

	"github.com/pithecene-io/slicer/slicer"
)

// parquetResult is the JSON document printed by the parquet command.
type parquetResult struct {
	Source    string   `json:"source"`
	Size      int64    `json:"size"`
	Rows      int64    `json:"rows"`
	RowGroups int      `json:"row_groups"`
	Columns   []string `json:"columns"`
	Schema    string   `json:"schema"`
}

// ParquetCmd prints the schema and row count of a parquet object. Only the
// footer and page headers are fetched, through ranged reads.
func ParquetCmd() cli.Command {
	return cli.Command{
		Name:      "parquet",
		Usage:     "describe a parquet file without downloading it",
		ArgsUsage: "<path-or-key>",
		Flags:     backendFlags(),
		Action: func(c *cli.Context) error {
			if err := describeParquet(c); err != nil {
				return fmt.Errorf("error running parquet command: %w", err)
			}
			return nil
		},
	}
}

func describeParquet(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	src, err := openSource(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	ra, err := slicer.AsReaderAt(ctx, src)
	if err != nil {
		return err
	}
	if ra.Size() == 0 {
		return errors.New("parquet: empty file")
	}

	file, err := parquet.OpenFile(ra, ra.Size())
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("parquet: truncated file: %w", err)
		}
		return fmt.Errorf("parquet: open file: %w", err)
	}

	var columns []string
	for _, path := range file.Schema().Columns() {
		columns = append(columns, strings.Join(path, "."))
	}

	return json.NewEncoder(output(c)).Encode(parquetResult{
		Source:    src.name,
		Size:      ra.Size(),
		Rows:      file.NumRows(),
		RowGroups: len(file.RowGroups()),
		Columns:   columns,
		Schema:    file.Schema().String(),
	})
}
