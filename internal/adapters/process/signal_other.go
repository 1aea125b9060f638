//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func configureTermination(c *exec.Cmd) {
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return c.Process.Kill()
	}
}

func terminatingSignal(*os.ProcessState) (string, bool) {
	return "", false
}
