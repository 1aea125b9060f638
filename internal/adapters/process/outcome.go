package process

import (
	"bufio"
	"bytes"
	"errors"
	"os/exec"

	"github.com/imgforge/imgforge-api/internal/domain/model"
)

func outcomeOf(err error, cmd *exec.Cmd) model.ExitOutcome {
	state := cmd.ProcessState
	if (err == nil || errors.Is(err, exec.ErrWaitDelay)) && state != nil && state.Success() {
		return model.ExitOutcome{Success: true, Code: 0}
	}

	out := model.ExitOutcome{Code: -1, Err: err}
	if state == nil {
		return out
	}
	if sig, ok := terminatingSignal(state); ok {
		out.Signal = sig
		return out
	}
	out.Code = state.ExitCode()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The exit status already describes the failure.
		out.Err = nil
	}
	return out
}

// boundedLines is ScanLines with a line limit: a line longer than limit is
// emitted in limit-sized chunks instead of stopping the scanner. The returned
// func keeps state and serves a single scanner.
func boundedLines(limit int) bufio.SplitFunc {
	skipLF := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if skipLF && len(data) > 0 {
			skipLF = false
			if data[0] == '\n' {
				return 1, nil, nil
			}
		}
		advance, token, err := ScanLines(data, atEOF)
		if advance == 0 && token == nil && err == nil && len(data) >= limit {
			if data[limit-1] == '\r' {
				// The '\r' ends the line; a '\n' right after it belongs to it.
				skipLF = true
				return limit, data[:limit-1], nil
			}
			return limit, data[:limit], nil
		}
		return advance, token, err
	}
}

// ScanLines is a bufio.SplitFunc that ends a line at "\n", "\r" or "\r\n",
// so carriage-return progress updates surface as separate lines.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		switch {
		case i+1 < len(data) && data[i+1] == '\n':
			return i + 2, data[:i], nil
		case i+1 < len(data) || atEOF:
			return i + 1, data[:i], nil
		default:
			// A lone trailing '\r' may be the first half of "\r\n".
			return 0, nil, nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
