package main

import (
	"fmt"
	"os"

	appErrors "github.com/noah-isme/sma-attendance-report/pkg/errors"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		e := appErrors.FromError(err)
		fmt.Fprintln(os.Stderr, "error:", e.Error())
		os.Exit(e.ExitCode)
	}
}
