//go:build unix

package engine

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// mpv gets its own process group so helpers it spawns (ytdl hooks) are
// terminated with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) error {
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
