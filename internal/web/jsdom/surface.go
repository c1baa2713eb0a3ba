// Package jsdom runs the web probe inside goja against a scripted DOM
// fixture, standing in for a real embedded web surface.
package jsdom

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/mj1618/uibridge/internal/model"
)

//go:embed dom.js
var domScript string

// Event is one DOM event recorded by the fixture.
type Event struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Surface is a platform.WebSurface backed by a goja runtime.
//
// A fixture is a JSON document:
//
//	{"scrollX": 0, "scrollY": 0, "body": {"tag": "BODY", "rect": [l, t, r, b], "children": [...]}}
//
// where each element may also set id, class, type, value, text, attrs,
// checked, selected, disabled, onclick and scroll ([scrollWidth, scrollHeight]).
type Surface struct {
	mu      sync.Mutex
	id      string
	bounds  model.Rect
	fixture string
	vm      *goja.Runtime

	// BlockInjection makes probe installation a no-op, as on a page whose
	// content security policy rejects it.
	BlockInjection bool
}

// New builds a surface from fixture JSON. bounds is the surface's
// on-screen rectangle in pixels.
func New(id string, bounds model.Rect, fixture []byte) (*Surface, error) {
	if !json.Valid(fixture) {
		return nil, fmt.Errorf("jsdom: fixture is not valid JSON")
	}
	s := &Surface{id: id, bounds: bounds, fixture: string(fixture)}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads a fixture file.
func Load(path, id string, bounds model.Rect) (*Surface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsdom: %w", err)
	}
	return New(id, bounds, data)
}

func (s *Surface) reset() error {
	vm := goja.New()
	if err := vm.Set("window", vm.GlobalObject()); err != nil {
		return fmt.Errorf("jsdom: %w", err)
	}
	if _, err := vm.RunString("(" + domScript + ")(" + s.fixture + ");"); err != nil {
		return fmt.Errorf("jsdom: build document: %w", err)
	}
	s.vm = vm
	return nil
}

// Reload discards the page, including any installed bridge.
func (s *Surface) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reset()
}

func (s *Surface) ID() string { return s.id }

func (s *Surface) Bounds() model.Rect { return s.bounds }

// EvaluateScript runs script and returns its completion value JSON-encoded,
// the way embedded web views report results: strings arrive quoted and
// undefined arrives as null.
func (s *Surface) EvaluateScript(ctx context.Context, script string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BlockInjection && strings.Contains(script, "window.__uibridge = {") {
		return `"blocked"`, nil
	}

	vm := s.vm
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer func() {
		stop()
		vm.ClearInterrupt()
	}()

	v, err := vm.RunString(script)
	if err != nil {
		return "", fmt.Errorf("jsdom: evaluate: %w", err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "null", nil
	}
	b, err := json.Marshal(v.Export())
	if err != nil {
		return "", fmt.Errorf("jsdom: encode result: %w", err)
	}
	return string(b), nil
}

// Events returns the DOM events fired so far.
func (s *Surface) Events() ([]Event, error) {
	raw, err := s.EvaluateScript(context.Background(), "JSON.stringify(window.__domEvents)")
	if err != nil {
		return nil, err
	}
	var encoded string
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil, fmt.Errorf("jsdom: events: %w", err)
	}
	var events []Event
	if err := json.Unmarshal([]byte(encoded), &events); err != nil {
		return nil, fmt.Errorf("jsdom: events: %w", err)
	}
	return events, nil
}
