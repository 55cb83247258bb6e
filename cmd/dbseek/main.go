// DBSeek - peptide candidate generation and query library tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/DBSeek/cmd/dbseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
