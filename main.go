package main

import (
	"fmt"
	"os"

	"github.com/Raghu963/globus-sample-data-portal/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
