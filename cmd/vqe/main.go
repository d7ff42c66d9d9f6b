// Command vqe runs the variational eigensolver for cached molecular problems
// and serves circuit evaluation over HTTP.
//
// Configuration comes from environment variables, optionally loaded from a
// .env file, and can be overridden per invocation with flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
