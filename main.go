package main

import (
	"os"

	"github.com/signalnine/bgjit/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.NewRootCmd().Execute()))
}
