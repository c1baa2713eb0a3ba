package model

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

const (
	hierarchyTag = "hierarchy"
	nodeTag      = "node"
)

// MarshalHierarchy serializes the tree into the hierarchy document sent to
// the controller. The root itself is the first <node> so that parsing the
// document reconstructs every node in the same pre-order sequence.
func MarshalHierarchy(root *GenericElement) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("marshal hierarchy: nil tree")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	h := doc.CreateElement(hierarchyTag)
	h.CreateAttr("rotation", "0")
	writeNode(h, root)
	doc.Indent(2)
	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal hierarchy: %w", err)
	}
	return b, nil
}

func writeNode(parent *etree.Element, el *GenericElement) {
	n := parent.CreateElement(nodeTag)
	n.CreateAttr("index", strconv.Itoa(el.Index))
	n.CreateAttr("resource-id", el.ResourceID)
	n.CreateAttr("class", el.ClassName)
	n.CreateAttr("text", el.Text)
	n.CreateAttr("content-desc", el.ContentDesc)
	n.CreateAttr("checkable", formatBool(el.Checkable))
	n.CreateAttr("checked", formatBool(el.Checked))
	n.CreateAttr("clickable", formatBool(el.Clickable))
	n.CreateAttr("enabled", formatBool(el.Enabled))
	n.CreateAttr("scrollable", formatBool(el.Scrollable))
	n.CreateAttr("long-clickable", formatBool(el.LongClickable))
	n.CreateAttr("selected", formatBool(el.Selected))
	if el.NAF {
		n.CreateAttr("NAF", "true")
	}
	if el.PageType != "" {
		n.CreateAttr("page-type", string(el.PageType))
	}
	n.CreateAttr("bounds", el.Bounds.String())
	for _, child := range el.Children {
		writeNode(n, child)
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ParseHierarchy parses a hierarchy document, either one produced by
// MarshalHierarchy or a uiautomator dump. When the document holds several
// top-level nodes they are wrapped in a synthetic "hierarchy" node.
func ParseHierarchy(data []byte) (*GenericElement, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse hierarchy: %w", err)
	}
	h := doc.SelectElement(hierarchyTag)
	if h == nil {
		return nil, fmt.Errorf("parse hierarchy: missing <%s> root", hierarchyTag)
	}
	tops := h.SelectElements(nodeTag)
	switch len(tops) {
	case 0:
		return nil, fmt.Errorf("parse hierarchy: no nodes")
	case 1:
		return readNode(tops[0])
	}
	wrapper := &GenericElement{ClassName: hierarchyTag, Enabled: true}
	for _, t := range tops {
		child, err := readNode(t)
		if err != nil {
			return nil, err
		}
		wrapper.Children = append(wrapper.Children, child)
	}
	return wrapper, nil
}

func readNode(n *etree.Element) (*GenericElement, error) {
	el := &GenericElement{
		ResourceID:    n.SelectAttrValue("resource-id", ""),
		ClassName:     n.SelectAttrValue("class", ""),
		Text:          n.SelectAttrValue("text", ""),
		ContentDesc:   n.SelectAttrValue("content-desc", ""),
		Checkable:     parseBool(n, "checkable"),
		Checked:       parseBool(n, "checked"),
		Clickable:     parseBool(n, "clickable"),
		Enabled:       parseBool(n, "enabled"),
		Scrollable:    parseBool(n, "scrollable"),
		LongClickable: parseBool(n, "long-clickable"),
		Selected:      parseBool(n, "selected"),
		NAF:           parseBool(n, "NAF"),
		PageType:      PageType(n.SelectAttrValue("page-type", "")),
	}
	if raw := n.SelectAttrValue("index", ""); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse hierarchy: node index %q: %w", raw, err)
		}
		el.Index = idx
	}
	if raw := n.SelectAttrValue("bounds", ""); raw != "" {
		r, err := ParseRect(raw)
		if err != nil {
			return nil, fmt.Errorf("parse hierarchy: %w", err)
		}
		el.Bounds = r
	}
	for _, c := range n.SelectElements(nodeTag) {
		child, err := readNode(c)
		if err != nil {
			return nil, err
		}
		el.Children = append(el.Children, child)
	}
	return el, nil
}

func parseBool(n *etree.Element, key string) bool {
	return n.SelectAttrValue(key, "false") == "true"
}
