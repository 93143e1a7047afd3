package utils

import (
	"fmt"
	"os/exec"
	"strings"

	log "pidrive/logger"
)

// RunCheckOutput runs a command, returning its stdout. A non-zero exit
// status is an error carrying the command's stderr for context.
func RunCheckOutput(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		log.Debugf("command %s %v failed: %v, stderr: %s", name, args, err, stderr.String())
		return "", fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}
