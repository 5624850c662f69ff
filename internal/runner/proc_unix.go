//go:build unix

package runner

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own group so the whole tree can be
// signalled at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalTree(root int, pids []int32, sig syscall.Signal) {
	_ = syscall.Kill(-root, sig)
	for _, pid := range pids {
		if int(pid) == root || pid <= 1 {
			continue
		}
		_ = syscall.Kill(int(pid), sig)
	}
}

func terminateSignal() syscall.Signal {
	return syscall.SIGTERM
}

func killSignal() syscall.Signal {
	return syscall.SIGKILL
}

func exitSignal(err error) string {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ""
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
