// Command choronzon runs the evolutionary file-format fuzzer's CLI.
package main

import (
	"os"

	"github.com/choronzon/choronzon/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
