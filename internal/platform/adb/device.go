package adb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

// Key codes used for navigation and text editing.
const (
	KeyHome    = 3
	KeyBack    = 4
	KeyDelete  = 67
	KeyMoveEnd = 123
)

const (
	defaultDumpPath   = "/data/local/tmp/uibridge.xml"
	defaultRetries    = 3
	defaultRetryDelay = 500 * time.Millisecond
	baselineDPI       = 160
)

// Device issues the shell commands the backend is built from.
type Device struct {
	sh         Shell
	dumpPath   string
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewDevice wraps sh. Zero values select defaults.
func NewDevice(sh Shell, dumpPath string, retries int, logger *zap.Logger) *Device {
	if dumpPath == "" {
		dumpPath = defaultDumpPath
	}
	if retries <= 0 {
		retries = defaultRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{
		sh:         sh,
		dumpPath:   dumpPath,
		retries:    retries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
}

// Dump returns the current uiautomator hierarchy document. Dumps are
// flaky on busy screens, so failed attempts are retried after killing any
// wedged uiautomator process.
func (d *Device) Dump(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		if attempt > 0 {
			d.sh.Shell(ctx, "pkill uiautomator")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}
		out, err := d.sh.Shell(ctx, fmt.Sprintf("uiautomator dump %s >/dev/null && cat %s", d.dumpPath, d.dumpPath))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			if doc, ok := trimDocument(out); ok {
				return doc, nil
			}
			err = errors.New("no hierarchy document in output")
		}
		lastErr = err
		d.logger.Debug("hierarchy dump failed", zap.Int("attempt", attempt+1), zap.Int("max_attempts", d.retries), zap.Error(err))
	}
	return nil, fmt.Errorf("dump hierarchy after %d attempts: %w", d.retries, lastErr)
}

// trimDocument cuts adb noise printed around the document.
func trimDocument(out string) ([]byte, bool) {
	start := strings.Index(out, "<?xml")
	if start < 0 {
		start = strings.Index(out, "<hierarchy")
	}
	end := strings.LastIndex(out, ">")
	if start < 0 || end < start {
		return nil, false
	}
	return []byte(out[start : end+1]), true
}

// Density returns physical pixels per dp from "wm density". An override
// density wins over the physical one.
func (d *Device) Density(ctx context.Context) (float64, error) {
	out, err := d.sh.Shell(ctx, "wm density")
	if err != nil {
		return 0, fmt.Errorf("query density: %w", err)
	}
	var physical, override int
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Physical density":
			physical = n
		case "Override density":
			override = n
		}
	}
	dpi := physical
	if override > 0 {
		dpi = override
	}
	if dpi == 0 {
		return 0, fmt.Errorf("query density: unexpected output %q", out)
	}
	return float64(dpi) / baselineDPI, nil
}

// Tap taps at p.
func (d *Device) Tap(ctx context.Context, p model.Point) error {
	_, err := d.sh.Shell(ctx, fmt.Sprintf("input tap %d %d", p.X, p.Y))
	return err
}

// Swipe drags from one point to another over dur. A swipe that does not
// move is a long press.
func (d *Device) Swipe(ctx context.Context, from, to model.Point, dur time.Duration) error {
	_, err := d.sh.Shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", from.X, from.Y, to.X, to.Y, dur.Milliseconds()))
	return err
}

// Text types text into the focused field.
func (d *Device) Text(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := checkInputText(text); err != nil {
		return err
	}
	// input text rewrites every %s to a space, so a literal %s is split
	// across two commands.
	for _, chunk := range splitPercentS(text) {
		if _, err := d.sh.Shell(ctx, "input text "+escapeInput(chunk)); err != nil {
			return err
		}
	}
	return nil
}

// KeyEvent sends one or more key codes in a single command.
func (d *Device) KeyEvent(ctx context.Context, codes ...int) error {
	if len(codes) == 0 {
		return nil
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	_, err := d.sh.Shell(ctx, "input keyevent "+strings.Join(parts, " "))
	return err
}

// checkInputText rejects what input text cannot type: non-ASCII runes need
// an input method, and control characters would end the shell command.
func checkInputText(text string) error {
	for _, r := range text {
		switch {
		case r > 127:
			return fmt.Errorf("input text %q: non-ASCII text needs an input method: %w", text, platform.ErrUnsupported)
		case r < 0x20 || r == 0x7f:
			return fmt.Errorf("input text %q: control character %U: %w", text, r, platform.ErrUnsupported)
		}
	}
	return nil
}

func splitPercentS(text string) []string {
	var out []string
	for {
		i := strings.Index(text, "%s")
		if i < 0 {
			return append(out, text)
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
}

var shellSpecials = strings.NewReplacer(
	`\`, `\\`, `'`, `\'`, `"`, `\"`, "`", "\\`", `$`, `\$`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`&`, `\&`, `|`, `\|`, `;`, `\;`, `<`, `\<`, `>`, `\>`,
	`#`, `\#`, `!`, `\!`, `~`, `\~`, `*`, `\*`, `?`, `\?`,
	`%`, `\%`, ` `, `%s`,
)

// escapeInput escapes checked text for "input text": spaces become %s and
// shell metacharacters are backslash-escaped.
func escapeInput(text string) string {
	return shellSpecials.Replace(text)
}
