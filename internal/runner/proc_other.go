//go:build !unix

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(*exec.Cmd) {}

// signalTree kills every tracked pid; graceful termination is not available
// without process groups.
func signalTree(root int, pids []int32, _ syscall.Signal) {
	if p, err := os.FindProcess(root); err == nil {
		_ = p.Kill()
	}
	for _, pid := range pids {
		if int(pid) == root {
			continue
		}
		if p, err := os.FindProcess(int(pid)); err == nil {
			_ = p.Kill()
		}
	}
}

func terminateSignal() syscall.Signal {
	return syscall.SIGKILL
}

func killSignal() syscall.Signal {
	return syscall.SIGKILL
}

func exitSignal(error) string {
	return ""
}
