//go:build !unix

package worker_test

func signalIgnoreTerm() {}
