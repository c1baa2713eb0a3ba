package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ChangeType represents the kind of UI change detected.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// UIChange represents a single change between two snapshots.
type UIChange struct {
	Type    ChangeType           `json:"type"`
	TS      int64                `json:"ts"`
	Element *FlatElement         `json:"el,omitempty"`  // For added: the full element
	Key     string               `json:"key,omitempty"` // Identity hash the match was made on
	Path    string               `json:"p,omitempty"`
	Class   string               `json:"cls,omitempty"`     // For removed
	Text    string               `json:"t,omitempty"`       // For removed
	Changes map[string][2]string `json:"changes,omitempty"` // For changed: field diffs
}

// identityKey hashes the attributes that survive a re-render. Indices are
// only meaningful inside one snapshot and never take part.
func identityKey(el FlatElement) string {
	h := sha256.New()
	h.Write([]byte(el.Path))
	h.Write([]byte{0})
	h.Write([]byte(el.ResourceID))
	h.Write([]byte{0})
	h.Write([]byte(el.PageType))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// DiffSnapshots compares two flattened snapshots. Elements are matched by
// identity key (path, resource id, engine); repeated keys are paired in
// order of appearance.
func DiffSnapshots(prev, curr []FlatElement) []UIChange {
	prevByKey := make(map[string][]FlatElement, len(prev))
	for _, el := range prev {
		k := identityKey(el)
		prevByKey[k] = append(prevByKey[k], el)
	}

	var changes []UIChange
	now := time.Now().Unix()

	for _, el := range curr {
		k := identityKey(el)
		queue := prevByKey[k]
		if len(queue) == 0 {
			elCopy := el
			changes = append(changes, UIChange{
				Type:    ChangeAdded,
				TS:      now,
				Element: &elCopy,
				Key:     k,
				Path:    el.Path,
			})
			continue
		}
		prevEl := queue[0]
		prevByKey[k] = queue[1:]
		if diffs := diffProperties(prevEl, el); len(diffs) > 0 {
			changes = append(changes, UIChange{
				Type:    ChangeChanged,
				TS:      now,
				Key:     k,
				Path:    el.Path,
				Changes: diffs,
			})
		}
	}

	// Whatever was not consumed above is gone.
	for _, el := range prev {
		k := identityKey(el)
		queue := prevByKey[k]
		if len(queue) == 0 || queue[0] != el {
			continue
		}
		prevByKey[k] = queue[1:]
		changes = append(changes, UIChange{
			Type:  ChangeRemoved,
			TS:    now,
			Key:   k,
			Path:  el.Path,
			Class: el.Class,
			Text:  el.Text,
		})
	}

	return changes
}

// diffProperties compares two elements and returns changed fields.
func diffProperties(prev, curr FlatElement) map[string][2]string {
	diffs := make(map[string][2]string)

	if prev.Text != curr.Text {
		diffs["t"] = [2]string{prev.Text, curr.Text}
	}
	if prev.ContentDesc != curr.ContentDesc {
		diffs["d"] = [2]string{prev.ContentDesc, curr.ContentDesc}
	}
	if prev.Bounds != curr.Bounds {
		diffs["b"] = [2]string{prev.Bounds, curr.Bounds}
	}
	if prev.Checked != curr.Checked {
		diffs["checked"] = [2]string{formatBool(prev.Checked), formatBool(curr.Checked)}
	}
	if prev.Selected != curr.Selected {
		diffs["s"] = [2]string{formatBool(prev.Selected), formatBool(curr.Selected)}
	}
	if prev.Disabled != curr.Disabled {
		diffs["disabled"] = [2]string{formatBool(prev.Disabled), formatBool(curr.Disabled)}
	}

	if len(diffs) == 0 {
		return nil
	}
	return diffs
}
