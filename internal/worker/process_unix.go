//go:build unix

package worker

import (
	"errors"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (h *processHandle) terminate() error {
	return signalGroup(h.cmd.Process.Pid, syscall.SIGTERM)
}

func (h *processHandle) kill() error {
	return signalGroup(h.cmd.Process.Pid, syscall.SIGKILL)
}

// signalGroup signals the group led by pgid. A group that is already gone
// is not an error.
func signalGroup(pgid int, sig syscall.Signal) error {
	err := syscall.Kill(-pgid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
