package main

import (
	"os"

	"github.com/kamusis/cubepub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
