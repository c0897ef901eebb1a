package util

import (
	"os/exec"
	"strconv"
)

// IsProcessAlive reports whether a helper process with the given pid
// still exists, by asking ps rather than signalling it.
func IsProcessAlive(pid int) bool {
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid))

	err := cmd.Run()
	if err, ok := err.(*exec.ExitError); ok {
		// ps exits 0 when the pid exists, non-zero otherwise
		return err.ProcessState.ExitCode() == 0
	}
	if err != nil {
		return false
	}

	return true
}
