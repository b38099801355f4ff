package main

import (
	"os"

	"clinsight.com/cra/logger"
)

// Runs the service binary as a child process, forwarding its JSON logs and
// turning a panic stack into a single structured fatal record.
func main() {
	if len(os.Args) < 2 {
		println("usage: logwrapper <executable> [args...]")
		os.Exit(2)
	}
	logger.SetupLogging()
	logger.WrapProcess(os.Args[1], os.Args[2:]...)
}
