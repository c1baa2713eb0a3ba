package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mj1618/uibridge/internal/model"
)

// ErrEmptyResult is returned for blank, null or undefined script results.
var ErrEmptyResult = errors.New("empty script result")

const maxDepth = 512

// unwrap strips the JSON string encoding engines apply to string results.
// Doubly encoded results are unwrapped until a non-string value remains.
func unwrap(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for i := 0; i < 3; i++ {
		switch s {
		case "", "null", "undefined":
			return "", ErrEmptyResult
		}
		if !gjson.Valid(s) {
			return "", fmt.Errorf("malformed script result %q", truncate(s, 80))
		}
		r := gjson.Parse(s)
		if r.Type != gjson.String {
			return s, nil
		}
		s = strings.TrimSpace(r.String())
	}
	return "", fmt.Errorf("script result nested too deeply")
}

// DecodeTree parses a getElementTree result. Unknown fields are ignored,
// missing ones take their zero value and enabled defaults to true.
func DecodeTree(raw string) (*model.GenericElement, error) {
	s, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	r := gjson.Parse(s)
	if !r.IsObject() {
		return nil, fmt.Errorf("tree result is %s, not an object", r.Type)
	}
	return decodeNode(r, 0), nil
}

func decodeNode(r gjson.Result, depth int) *model.GenericElement {
	el := &model.GenericElement{
		ResourceID:    r.Get("resourceId").String(),
		ClassName:     r.Get("className").String(),
		Text:          r.Get("text").String(),
		ContentDesc:   r.Get("contentDesc").String(),
		Bounds:        decodeBounds(r.Get("bounds")),
		Clickable:     r.Get("clickable").Bool(),
		LongClickable: r.Get("longClickable").Bool(),
		Checkable:     r.Get("checkable").Bool(),
		Checked:       r.Get("checked").Bool(),
		Scrollable:    r.Get("scrollable").Bool(),
		Selected:      r.Get("selected").Bool(),
		Enabled:       true,
		Important:     r.Get("important").Bool(),
		Index:         int(r.Get("index").Int()),
	}
	if enabled := r.Get("enabled"); enabled.Exists() {
		el.Enabled = enabled.Bool()
	}
	r.Get("additionalProps").ForEach(func(k, v gjson.Result) bool {
		el.SetProp(k.String(), v.String())
		return true
	})
	if depth >= maxDepth {
		return el
	}
	r.Get("children").ForEach(func(_, child gjson.Result) bool {
		if child.IsObject() {
			el.Children = append(el.Children, decodeNode(child, depth+1))
		}
		return true
	})
	return el
}

func decodeBounds(b gjson.Result) model.Rect {
	if b.Type == gjson.String {
		r, _ := model.ParseRect(b.String())
		return r
	}
	if b.IsArray() {
		v := b.Array()
		if len(v) == 4 {
			return model.Rect{Left: int(v[0].Int()), Top: int(v[1].Int()), Right: int(v[2].Int()), Bottom: int(v[3].Int())}
		}
		return model.Rect{}
	}
	return model.Rect{
		Left:   int(b.Get("left").Int()),
		Top:    int(b.Get("top").Int()),
		Right:  int(b.Get("right").Int()),
		Bottom: int(b.Get("bottom").Int()),
	}
}

// decodeBool reads a boolean script result, tolerating string encoding.
func decodeBool(raw string) (bool, error) {
	s, err := unwrap(raw)
	if err != nil {
		return false, err
	}
	r := gjson.Parse(s)
	switch r.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	}
	return false, fmt.Errorf("expected boolean result, got %q", truncate(s, 40))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
