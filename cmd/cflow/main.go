package main

import (
	"os"

	"github.com/gnolang/cflow/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
