// Package errors derives stable error class names for metric tags.
package errors

import (
	"context"
	goerrors "errors"
	"os/exec"
	"reflect"
	"strings"

	apperrors "github.com/imgforge/imgforge-api/internal/errors"
)

// Classify returns a short, stable name for err. Context errors and exit
// statuses get fixed names; application errors use their code; anything else
// is named after its innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	var exitErr *exec.ExitError
	if goerrors.As(err, &exitErr) {
		return "exit_status"
	}

	if code := apperrors.GetCode(err); code != "" {
		return "app_" + string(code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
