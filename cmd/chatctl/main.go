package main

import (
	"fmt"
	"os"
)

func main() {
	rc, err := Cli(os.Args[1:], &CliConfig{
		Name:        "chatctl",
		Description: "Administration tool for the chat server.",
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Exit:        os.Exit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		if rc == 0 {
			rc = 1
		}
	}
	os.Exit(rc)
}
