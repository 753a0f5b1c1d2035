// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialline reads newline-terminated text from a serial port (or any
// io.Reader, for replays) one cleaned-up line at a time.
package serialline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// ErrLineTooLong is returned by Next for a line longer than the configured
// limit. The oversized line is consumed, so the next call resumes with the
// following line.
var ErrLineTooLong = errors.New("serialline: line too long")

// Options describes the serial port. D-STAR radios emit D-PRS at 9600 8N1.
type Options struct {
	PortName string
	BaudRate int
}

// Open opens the port in blocking 8N1 mode. Closing the returned port
// unblocks a pending read.
func Open(opts Options) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              uint(opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", opts.PortName, err)
	}
	return port, nil
}

// Reader splits a byte stream into lines.
type Reader struct {
	r   *bufio.Reader
	max int
}

// NewReader wraps r. Lines longer than maxLineBytes (excluding the newline)
// are rejected with ErrLineTooLong.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = 4096
	}
	return &Reader{r: bufio.NewReader(r), max: maxLineBytes}
}

// Next returns the next non-blank line with surrounding whitespace (including
// CR) trimmed and bytes that are not valid UTF-8 dropped. It returns io.EOF
// once the stream is exhausted.
func (r *Reader) Next() (string, error) {
	for {
		raw, err := r.readLine()
		if errors.Is(err, ErrLineTooLong) {
			return "", err
		}
		line := strings.TrimSpace(strings.ToValidUTF8(raw, ""))
		if line != "" {
			// a final unterminated line is still delivered before EOF
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// readLine reads up to and excluding '\n'. On overflow it keeps reading
// until the end of the line so the stream stays aligned.
func (r *Reader) readLine() (string, error) {
	var sb strings.Builder
	tooLong := false

	for {
		chunk, err := r.r.ReadSlice('\n')
		if !tooLong {
			sb.Write(chunk)
			if sb.Len() > r.max+1 {
				tooLong = true
			}
		}

		switch {
		case err == nil:
			if tooLong || sb.Len()-1 > r.max {
				return "", ErrLineTooLong
			}
			s := sb.String()
			return s[:len(s)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			if tooLong || sb.Len() > r.max {
				return "", ErrLineTooLong
			}
			return sb.String(), err
		}
	}
}
