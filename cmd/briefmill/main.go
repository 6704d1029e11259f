package main

import (
	"errors"
	"fmt"
	"os"

	"briefmill/internal/cli"
	"briefmill/internal/pipeline"
)

func main() {
	err := cli.Run(os.Args[1:])
	if err == nil {
		return
	}

	// An operator saying no is a clean exit, not a failure.
	if errors.Is(err, pipeline.ErrDeclined) {
		fmt.Println(err)
		return
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	var exitErr *pipeline.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
