// Command walletctl is a thin operator CLI over the walletcore package:
// every subcommand parses flags/config and calls into walletcore, with
// no wallet logic living here.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "walletctl:", err)
		os.Exit(1)
	}
}
