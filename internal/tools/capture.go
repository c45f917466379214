package tools

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// Capture redirects os.Stdout and os.Stderr into private buffers until Close.
type Capture struct {
	origOut *os.File
	origErr *os.File
	outW    *os.File
	errW    *os.File

	info bytes.Buffer
	errs bytes.Buffer
	wg   sync.WaitGroup

	closed  bool
	streams Streams
}

// CaptureStreams starts a capture scope. Callers must Close it, normally with
// defer, and read the captured text only from the value Close returns.
func CaptureStreams() (*Capture, error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, fmt.Errorf("capture stderr: %w", err)
	}

	c := &Capture{
		origOut: os.Stdout,
		origErr: os.Stderr,
		outW:    outW,
		errW:    errW,
	}
	c.wg.Add(2)
	go c.drain(&c.info, outR)
	go c.drain(&c.errs, errR)

	os.Stdout = outW
	os.Stderr = errW
	return c, nil
}

func (c *Capture) drain(dst *bytes.Buffer, r *os.File) {
	defer c.wg.Done()
	defer r.Close()
	_, _ = io.Copy(dst, r)
}

// Close restores the original streams and returns the captured text. Writes
// made after Close never reach the returned buffers.
func (c *Capture) Close() Streams {
	if c.closed {
		return c.streams
	}
	c.closed = true

	os.Stdout = c.origOut
	os.Stderr = c.origErr
	_ = c.outW.Close()
	_ = c.errW.Close()
	c.wg.Wait()

	c.streams = Streams{Info: c.info.String(), Error: c.errs.String()}
	return c.streams
}
