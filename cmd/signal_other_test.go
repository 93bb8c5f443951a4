//go:build !unix

package cmd

func interruptParent() {}
