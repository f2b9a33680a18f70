package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"zapzap/internal/records"
	"zapzap/internal/services"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err and, for known failure classes, one line telling
// the operator what to do next.
func reportError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, "Hint:", hint)
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return "set the missing credential in the config file (zapzap config init writes a sample)"
	case errors.Is(err, records.ErrNotFound), errors.Is(err, services.ErrNotFound):
		return "run zapzap list to see known video ids"
	case errors.Is(err, services.ErrValidation):
		return "check the command arguments and the video's current stage (zapzap show <id>)"
	case errors.Is(err, services.ErrTimeout), errors.Is(err, services.ErrTransient):
		return "the remote service did not answer in time; retry shortly"
	default:
		return ""
	}
}
