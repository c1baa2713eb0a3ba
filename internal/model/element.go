package model

// PageType tags which rendering engine produced a node.
type PageType string

const (
	PageNative  PageType = "Native"
	PageWebView PageType = "WebView"
	PageMixed   PageType = "Mixed" // synthetic merge root only
)

// Valid reports whether p is one of the known engine tags.
func (p PageType) Valid() bool {
	switch p {
	case PageNative, PageWebView, PageMixed:
		return true
	}
	return false
}

// Well-known additionalProps keys.
const (
	PropSource    = "source"
	PropContainer = "container"
	PropTagName   = "tagName"
)

// Values stored under PropSource.
const (
	SourceNative        = "native"
	SourceWeb           = "web"
	SourceAccessibility = "accessibility"
)

// LiveControl is a non-owning handle to the on-device control a node was
// read from. It is only meaningful while the screen that produced the
// snapshot is alive.
type LiveControl interface {
	Attached() bool
}

// GenericElement is a node in the unified UI tree.
type GenericElement struct {
	ResourceID  string `json:"id,omitempty"   yaml:"id,omitempty"`
	ClassName   string `json:"cls"            yaml:"cls"`
	Text        string `json:"t,omitempty"    yaml:"t,omitempty"`
	ContentDesc string `json:"d,omitempty"    yaml:"d,omitempty"`
	Bounds      Rect   `json:"b"              yaml:"b"`

	Clickable     bool `json:"click,omitempty"     yaml:"click,omitempty"`
	LongClickable bool `json:"longclick,omitempty" yaml:"longclick,omitempty"`
	Checkable     bool `json:"checkable,omitempty" yaml:"checkable,omitempty"`
	Checked       bool `json:"checked,omitempty"   yaml:"checked,omitempty"`
	Scrollable    bool `json:"scroll,omitempty"    yaml:"scroll,omitempty"`
	Selected      bool `json:"s,omitempty"         yaml:"s,omitempty"`
	Enabled       bool `json:"e"                   yaml:"e"`
	Important     bool `json:"imp,omitempty"       yaml:"imp,omitempty"`
	NAF           bool `json:"naf,omitempty"       yaml:"naf,omitempty"`

	Index           int               `json:"i"               yaml:"i"`
	PageType        PageType          `json:"pt,omitempty"    yaml:"pt,omitempty"`
	AdditionalProps map[string]string `json:"props,omitempty" yaml:"props,omitempty"`
	Children        []*GenericElement `json:"c,omitempty"     yaml:"c,omitempty"`

	// View is never serialized and never owned by the tree.
	View LiveControl `json:"-" yaml:"-"`
}

// ErrorResourceID and ErrorClassName mark synthetic error nodes.
const (
	ErrorResourceID = "error"
	ErrorClassName  = "Error"
)

// ErrorElement returns a single synthetic node describing an extraction
// failure. Downstream code treats it like any other tree.
func ErrorElement(message string) *GenericElement {
	return &GenericElement{
		ResourceID: ErrorResourceID,
		ClassName:  ErrorClassName,
		Text:       message,
		Enabled:    true,
	}
}

// IsError reports whether el is a synthetic error node.
func (el *GenericElement) IsError() bool {
	return el != nil && el.ResourceID == ErrorResourceID && el.ClassName == ErrorClassName
}

// Prop returns an additionalProps value, or "" when unset.
func (el *GenericElement) Prop(key string) string {
	if el.AdditionalProps == nil {
		return ""
	}
	return el.AdditionalProps[key]
}

// SetProp sets an additionalProps value, allocating the map when needed.
func (el *GenericElement) SetProp(key, value string) {
	if el.AdditionalProps == nil {
		el.AdditionalProps = make(map[string]string)
	}
	el.AdditionalProps[key] = value
}

// CanClick reports whether el accepts a direct click.
func (el *GenericElement) CanClick() bool {
	return el.Clickable && el.Enabled
}

// Walk visits root and its descendants in pre-order. Returning false from
// fn stops the walk at that node's subtree without visiting its children.
func Walk(root *GenericElement, fn func(el *GenericElement, depth int) bool) {
	walk(root, 0, fn)
}

func walk(el *GenericElement, depth int, fn func(*GenericElement, int) bool) {
	if el == nil {
		return
	}
	if !fn(el, depth) {
		return
	}
	for _, child := range el.Children {
		walk(child, depth+1, fn)
	}
}

// Count returns the number of nodes in the tree rooted at root.
func Count(root *GenericElement) int {
	n := 0
	Walk(root, func(*GenericElement, int) bool {
		n++
		return true
	})
	return n
}

// TagTree sets pageType and the source prop on every node under root.
func TagTree(root *GenericElement, pt PageType, source string) {
	Walk(root, func(el *GenericElement, _ int) bool {
		el.PageType = pt
		if source != "" {
			el.SetProp(PropSource, source)
		}
		return true
	})
}
