//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
)

// configureTermination runs the child in its own process group so a cancel
// reaches everything the script spawned.
func configureTermination(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		if err := syscall.Kill(-c.Process.Pid, syscall.SIGTERM); err != nil {
			return c.Process.Signal(syscall.SIGTERM)
		}
		return nil
	}
}

func terminatingSignal(state *os.ProcessState) (string, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	return ws.Signal().String(), true
}
