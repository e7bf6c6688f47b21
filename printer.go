package main

import (
	"context"
	"fmt"
	"io"

	"github.com/YLivay/chunkview/table"
	"github.com/olekukonko/tablewriter"
)

// ChunkSource pages through an input one chunk of lines at a time.
// *reader.ChunkReader implements it.
type ChunkSource interface {
	Next() ([]string, error)
	Previous() ([]string, error)
}

// headerOf returns the fields of the first line of the input, taken from the
// first chunk.
func headerOf(chunk []string, sep string) []string {
	if len(chunk) == 0 {
		return nil
	}
	return table.SplitRow(chunk[0], sep)
}

// printChunks writes every chunk of src to w as a table, one table per chunk.
// Chunks left with no rows after searching and filtering are skipped.
func printChunks(ctx context.Context, w io.Writer, src ChunkSource, opts table.Options) error {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := src.Next()
		if err != nil {
			return fmt.Errorf("failed to read chunk %d: %w", n, err)
		}
		if len(chunk) == 0 {
			return nil
		}
		if n == 1 {
			opts.Header = headerOf(chunk, opts.Separator)
		}

		view, err := table.Build(chunk, opts)
		if err != nil {
			return err
		}
		if len(view.Rows) == 0 {
			continue
		}

		renderTable(w, view)
	}
}

func renderTable(w io.Writer, view table.View) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(view.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, row := range view.Rows {
		tw.Append(padRow(row, len(view.Columns)))
	}
	tw.Render()
}

// padRow extends short rows with empty cells so every row has n fields.
func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	padded := make([]string, n)
	copy(padded, row)
	return padded
}
