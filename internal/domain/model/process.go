package model

import (
	"fmt"
	"strconv"
)

// Stream identifies which output stream of a process a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Command describes one external program invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env is the complete environment of the child, as KEY=value pairs.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	out := c.Path
	for _, a := range c.Args {
		out += " " + a
	}
	return out
}

// ExitOutcome reports how a process ended.
type ExitOutcome struct {
	Success bool
	// Code is the exit status, or -1 when the process was killed by a signal
	// or never produced one.
	Code int
	// Signal names the terminating signal, if any.
	Signal string
	// Err carries the wait error when the process could not be reaped normally.
	Err error
}

func (o ExitOutcome) String() string {
	switch {
	case o.Success:
		return "exit status 0"
	case o.Signal != "":
		return "terminated by signal " + o.Signal
	case o.Err != nil && o.Code < 0:
		return fmt.Sprintf("wait failed: %v", o.Err)
	default:
		return "exit status " + strconv.Itoa(o.Code)
	}
}
