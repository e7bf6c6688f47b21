package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/YLivay/chunkview/log"
)

// prepareInput returns the path of a regular file holding the input named by
// filename. Paging needs random access, so stdin ("-") and other special files
// like pipes are copied into a temporary file first.
func prepareInput(ctx context.Context, filename string) (path string, cleanup func(), err error) {
	cleanup = func() {}

	var in *os.File
	if filename == "-" {
		in = os.Stdin
	} else {
		fi, err := os.Stat(filename)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open input: %w", err)
		}
		if fi.Mode().IsRegular() {
			return filename, cleanup, nil
		}

		in, err = os.Open(filename)
		if err != nil {
			return "", nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer in.Close()
	}

	log.Println("Input is not a regular file, copying it to a temporary file")
	tempFname, err := spool(ctx, in)
	if err != nil {
		return "", nil, err
	}
	log.Debugf("using temporary file %s", tempFname)

	cleanup = func() {
		log.Debugf("disposing temporary file %s", tempFname)
		if err := os.Remove(tempFname); err != nil && !os.IsNotExist(err) {
			log.Println("Failed to remove temporary file:", err)
		}
	}
	return tempFname, cleanup, nil
}

// spool copies r into a new temporary file and returns its name. The copy
// stops early if ctx is cancelled.
func spool(ctx context.Context, r io.Reader) (string, error) {
	tempWriter, err := os.CreateTemp("", "chunkview-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFname := tempWriter.Name()

	_, copyErr := io.Copy(tempWriter, &ctxReader{ctx: ctx, r: r})
	closeErr := tempWriter.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tempFname)
		if copyErr != nil {
			return "", fmt.Errorf("failed to copy input to temporary file: %w", copyErr)
		}
		return "", fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	return tempFname, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
