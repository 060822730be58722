package main

import (
	"os"

	opsdeckcmder "github.com/papercomputeco/opsdeck/cmd/opsdeck"
)

func main() {
	cmd := opsdeckcmder.NewOpsdeckCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
