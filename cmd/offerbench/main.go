package main

import (
	"os"

	"github.com/cultuurnet/offerbench/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
