// Package exec provides shell command execution helpers. Command lines
// and their output are logged with URL-embedded credentials redacted.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
)

// credentialPattern matches userinfo embedded in http(s) URLs, e.g. the
// token in https://TOKEN@github.com/owner/repo.git.
var credentialPattern = regexp.MustCompile(`(https?://)[^@/\s]+@`)

// Redact masks URL-embedded credentials in s so that tokens never reach
// logs or error messages.
func Redact(s string) string {
	return credentialPattern.ReplaceAllString(s, "${1}***@")
}

// Ex executes the named command in the given directory and returns
// combined stdout+stderr output. Pass empty dir to use the current
// working directory. The returned output is raw; callers embedding it
// in errors should pass it through Redact first.
func Ex(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	args := strings.Join(arg, " ")

	slog.Info(
		"executing",
		"cmd", name,
		"args", Redact(args),
	)

	cmd := exec.CommandContext(ctx, name, arg...)
	if dir != "" {
		cmd.Dir = dir
	}

	by, err := cmd.CombinedOutput()

	slog.Info("output", "result", Redact(string(by)))

	if err != nil {
		return string(by), fmt.Errorf(
			"%s: %s %s: %w",
			errCtx, name, Redact(args), err,
		)
	}

	return string(by), nil
}
