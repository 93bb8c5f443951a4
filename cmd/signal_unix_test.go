//go:build unix

package cmd

import (
	"os"
	"syscall"
)

func interruptParent() {
	syscall.Kill(os.Getppid(), syscall.SIGINT)
}
