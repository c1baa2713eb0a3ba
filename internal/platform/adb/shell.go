package adb

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Shell runs shell commands on one device.
type Shell interface {
	// Shell runs cmd through "adb shell" and returns its trimmed output.
	Shell(ctx context.Context, cmd string) (string, error)
}

var serialPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// ValidateSerial rejects serials that could smuggle extra arguments or
// shell syntax into the adb command line.
func ValidateSerial(serial string) error {
	if serial == "" {
		return nil
	}
	if len(serial) > 256 {
		return fmt.Errorf("device serial too long (max 256 characters)")
	}
	if !serialPattern.MatchString(serial) {
		return fmt.Errorf("invalid device serial %q", serial)
	}
	return nil
}

// ExecShell runs commands with the adb binary.
type ExecShell struct {
	adbPath string
	serial  string
}

// NewExecShell returns a Shell for serial. An empty serial targets the
// only attached device.
func NewExecShell(adbPath, serial string) (*ExecShell, error) {
	if err := ValidateSerial(serial); err != nil {
		return nil, err
	}
	if adbPath == "" {
		adbPath = "adb"
	}
	return &ExecShell{adbPath: adbPath, serial: serial}, nil
}

func (s *ExecShell) Shell(ctx context.Context, cmd string) (string, error) {
	var args []string
	if s.serial != "" {
		args = append(args, "-s", s.serial)
	}
	args = append(args, "shell", cmd)
	out, err := exec.CommandContext(ctx, s.adbPath, args...).CombinedOutput()
	res := strings.TrimSpace(string(out))
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("adb shell %q: %w: %s", cmd, err, res)
	}
	return res, nil
}
