package main

import (
	"fmt"
	"os"

	"gpud/internal/gpuctl"
)

func main() {
	if err := gpuctl.Main(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
