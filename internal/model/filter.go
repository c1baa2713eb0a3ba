package model

import "strings"

// FilterByText returns the flattened nodes whose text, content description
// or resource id contains text (case-insensitive), in pre-order.
func FilterByText(root *GenericElement, text string) []FlatElement {
	flat := Flatten(root)
	if text == "" {
		return flat
	}
	textLower := strings.ToLower(text)
	var result []FlatElement
	for _, el := range flat {
		if textMatches(el, textLower) {
			result = append(result, el)
		}
	}
	return result
}

func textMatches(el FlatElement, textLower string) bool {
	return strings.Contains(strings.ToLower(el.Text), textLower) ||
		strings.Contains(strings.ToLower(el.ContentDesc), textLower) ||
		strings.Contains(strings.ToLower(el.ResourceID), textLower)
}

// FilterClickable keeps only nodes that accept a direct click.
func FilterClickable(elements []FlatElement) []FlatElement {
	var result []FlatElement
	for _, el := range elements {
		if el.Clickable && !el.Disabled {
			result = append(result, el)
		}
	}
	return result
}

// PruneStyling removes pure styling leaves from the tree in place. A
// container whose children were all styling leaves stays in the tree with
// no children.
func PruneStyling(root *GenericElement) {
	if root == nil {
		return
	}
	kept := root.Children[:0]
	for _, child := range root.Children {
		PruneStyling(child)
		if IsStylingOnly(child) {
			continue
		}
		kept = append(kept, child)
	}
	for i := len(kept); i < len(root.Children); i++ {
		root.Children[i] = nil
	}
	root.Children = kept
}

// PruneEmptyGroupsFlat drops anonymous layout containers (no id, label or
// interaction flags) from a flattened list. Paths are left as they are.
func PruneEmptyGroupsFlat(elements []FlatElement) []FlatElement {
	var result []FlatElement
	for _, el := range elements {
		if el.ResourceID == "" && el.Text == "" && el.ContentDesc == "" &&
			!el.Clickable && !el.Scrollable && isLayoutClass(el.Class) {
			continue
		}
		result = append(result, el)
	}
	return result
}

func isLayoutClass(short string) bool {
	return strings.HasSuffix(short, "Layout") || short == "ViewGroup" || short == "DIV" || short == "SPAN"
}
