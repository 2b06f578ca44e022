package main

import (
	"os"

	"github.com/ldsn-cm/ldsn/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
