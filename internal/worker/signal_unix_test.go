//go:build unix

package worker_test

import (
	"os/signal"
	"syscall"
)

func signalIgnoreTerm() {
	signal.Ignore(syscall.SIGTERM)
}
