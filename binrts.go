package main

import (
	"os"

	"github.com/binrts/binrts/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
