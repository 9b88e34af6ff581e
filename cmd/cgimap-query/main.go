// Command cgimap-query is a small CLI front-end over the selection
// engine, standing in for the CGI/FastCGI HTTP layer that spec §1 places
// out of scope: it opens a factory, runs a sequence of selection and
// emission calls from flags, and prints the results through the
// in-memory formatter.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
