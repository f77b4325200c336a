//go:build !unix

package supervisor

import "os/exec"

// configureProcessGroup is a no-op where process groups are unavailable.
func configureProcessGroup(cmd *exec.Cmd) {
	_ = cmd
}

func interruptProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func killProcessGroup(cmd *exec.Cmd) {
	interruptProcessGroup(cmd)
}
