package dispatch

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mj1618/uibridge/internal/platform"
)

// ActionKind names an action the dispatcher executes.
type ActionKind string

const (
	ActionClick     ActionKind = "click"
	ActionInput     ActionKind = "input"
	ActionScroll    ActionKind = "scroll"
	ActionLongClick ActionKind = "long-click"
	ActionBack      ActionKind = "go-back"
	ActionHome      ActionKind = "go-home"
)

// Actions lists every recognized kind.
var Actions = []ActionKind{ActionClick, ActionInput, ActionScroll, ActionLongClick, ActionBack, ActionHome}

// ParseActionKind matches a name case-insensitively. Underscores are
// accepted in place of dashes.
func ParseActionKind(name string) (ActionKind, bool) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for _, k := range Actions {
		if string(k) == n {
			return k, true
		}
	}
	return "", false
}

// NeedsTarget reports whether the action operates on an indexed node.
func (k ActionKind) NeedsTarget() bool {
	return k != ActionBack && k != ActionHome
}

// Request is one validated action request.
type Request struct {
	Action     ActionKind
	Index      int
	Text       string
	Direction  platform.Direction
	Generation string // NodeMap generation, "" for the latest snapshot
}

// ParseActionMessage parses a controller action object:
//
//	{"name": "input", "parameters": {"index": 4, "input_text": "hello"}}
func ParseActionMessage(raw string) (Request, error) {
	if !gjson.Valid(raw) {
		return Request{}, malformed("", "not valid JSON")
	}
	msg := gjson.Parse(raw)
	if !msg.IsObject() {
		return Request{}, malformed("", "expected a JSON object")
	}
	name := msg.Get("name")
	if name.Type != gjson.String || name.String() == "" {
		return Request{}, malformed("", "missing action name")
	}
	return parseParameters(name.String(), msg.Get("parameters"))
}

// ParseRequest validates an action given as a name and loosely typed
// parameters, as tool calls and command flags supply them.
func ParseRequest(name string, params map[string]any) (Request, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return Request{}, malformed(name, "parameters: %v", err)
	}
	return parseParameters(name, gjson.ParseBytes(b))
}

func parseParameters(name string, params gjson.Result) (Request, error) {
	kind, ok := ParseActionKind(name)
	if !ok {
		return Request{}, malformed(name, "unknown action")
	}
	if params.Exists() && !params.IsObject() {
		return Request{}, malformed(name, "parameters must be an object")
	}
	req := Request{Action: kind}

	if gen := params.Get("generation"); gen.Exists() {
		if gen.Type != gjson.String {
			return Request{}, malformed(name, "generation must be a string")
		}
		req.Generation = gen.String()
	}

	if !kind.NeedsTarget() {
		return req, nil
	}
	idx, err := parseIndex(name, params.Get("index"))
	if err != nil {
		return Request{}, err
	}
	req.Index = idx

	switch kind {
	case ActionInput:
		text := params.Get("input_text")
		if !text.Exists() {
			text = params.Get("text")
		}
		if !text.Exists() {
			return Request{}, malformed(name, "missing input_text")
		}
		if text.Type != gjson.String {
			return Request{}, malformed(name, "input_text must be a string")
		}
		req.Text = text.String()
	case ActionScroll:
		dir := params.Get("direction")
		if dir.Type != gjson.String {
			return Request{}, malformed(name, "missing direction")
		}
		d, err := platform.ParseDirection(dir.String())
		if err != nil {
			return Request{}, malformed(name, "%v", err)
		}
		req.Direction = d
	}
	return req, nil
}

func parseIndex(name string, v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
			return 0, malformed(name, "index %s is not a non-negative integer", v.Raw)
		}
		return int(f), nil
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.String()))
		if err != nil || n < 0 {
			return 0, malformed(name, "index %q is not a non-negative integer", v.String())
		}
		return n, nil
	case gjson.Null:
		if !v.Exists() {
			return 0, malformed(name, "missing index")
		}
	}
	return 0, malformed(name, "index must be an integer, got %s", v.Raw)
}
