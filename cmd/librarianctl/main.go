// Command librarianctl administers a Bibliogoya database from the shell.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdin).execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
