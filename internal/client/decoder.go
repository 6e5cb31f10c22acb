// Package client consumes a discovery stream: it reassembles SSE frames from
// arbitrary byte chunks, folds them into view state and owns cancellation.
package client

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/drift/internal/stream"
)

// maxFrameSize bounds one SSE block; a searching frame with 12 places is far below it
const maxFrameSize = 1 << 20

// Decoder reads typed frames from an SSE byte stream
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a Decoder over r
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	scanner.Split(splitFrames)
	return &Decoder{scanner: scanner}
}

// Next returns the next complete frame. Blocks without data and frames of
// unknown type are skipped. A trailing block with no terminating blank line
// is discarded. Returns io.EOF when the stream ends.
func (d *Decoder) Next() (stream.Frame, error) {
	for d.scanner.Scan() {
		eventType, data, ok := parseBlock(d.scanner.Bytes())
		if !ok {
			continue
		}

		frame, err := stream.Decode(eventType, data)
		if err != nil {
			if isUnknownType(eventType) {
				continue
			}
			return nil, err
		}
		return frame, nil
	}

	if err := d.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("sse frame exceeds %d bytes: %w", maxFrameSize, err)
		}
		return nil, err
	}
	return nil, io.EOF
}

// splitFrames yields one block per blank-line terminator ("\n\n" or "\r\n\r\n")
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i, n := blankLine(data); i >= 0 {
		return i + n, data[:i], nil
	}
	// Incomplete trailing block: wait for more, or drop it at EOF
	return 0, nil, nil
}

func blankLine(data []byte) (int, int) {
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf, 4
	case lf >= 0:
		return lf, 2
	default:
		return -1, 0
	}
}

// parseBlock extracts the event name and the concatenated data lines
func parseBlock(block []byte) (string, []byte, bool) {
	var eventType string
	var data []byte
	hasData := false

	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			data = append(data, value...)
			hasData = true
		}
	}

	if eventType == "" || !hasData {
		return "", nil, false
	}
	return eventType, data, true
}

func isUnknownType(eventType string) bool {
	switch stream.FrameType(eventType) {
	case stream.TypeInterpreting, stream.TypeSearching, stream.TypeAnalyzing,
		stream.TypeEvents, stream.TypeComplete, stream.TypeError:
		return false
	}
	return true
}
