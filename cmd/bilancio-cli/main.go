// Command bilancio-cli inspects periods and recurrence series without a
// server, and can tail the transaction event stream.
package main

import (
	"fmt"
	"os"

	appcli "bilancio/internal/cli"
)

func main() {
	appcli.LoadEnvFile()
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
