package model

// FlatElement is an element with a path breadcrumb instead of children.
type FlatElement struct {
	Index       int      `yaml:"i"              json:"i"`
	Class       string   `yaml:"cls"            json:"cls"`
	ResourceID  string   `yaml:"id,omitempty"   json:"id,omitempty"`
	Text        string   `yaml:"t,omitempty"    json:"t,omitempty"`
	ContentDesc string   `yaml:"d,omitempty"    json:"d,omitempty"`
	Bounds      string   `yaml:"b"              json:"b"`
	PageType    PageType `yaml:"pt,omitempty"   json:"pt,omitempty"`
	Clickable   bool     `yaml:"click,omitempty"  json:"click,omitempty"`
	Scrollable  bool     `yaml:"scroll,omitempty" json:"scroll,omitempty"`
	Checked     bool     `yaml:"checked,omitempty" json:"checked,omitempty"`
	Selected    bool     `yaml:"s,omitempty"    json:"s,omitempty"`
	Disabled    bool     `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Path        string   `yaml:"p,omitempty"    json:"p,omitempty"`
}

// Flatten converts a tree into a flat pre-order list. Each element gets a
// path string of short class names joined with " > ".
func Flatten(root *GenericElement) []FlatElement {
	var result []FlatElement
	if root != nil {
		flattenRecursive(root, "", &result)
	}
	return result
}

func flattenRecursive(el *GenericElement, parentPath string, result *[]FlatElement) {
	short := ShortClass(el.ClassName)
	currentPath := short
	if parentPath != "" {
		currentPath = parentPath + " > " + short
	}

	*result = append(*result, FlatElement{
		Index:       el.Index,
		Class:       short,
		ResourceID:  el.ResourceID,
		Text:        el.Text,
		ContentDesc: el.ContentDesc,
		Bounds:      el.Bounds.String(),
		PageType:    el.PageType,
		Clickable:   el.Clickable,
		Scrollable:  el.Scrollable,
		Checked:     el.Checked,
		Selected:    el.Selected,
		Disabled:    !el.Enabled,
		Path:        currentPath,
	})

	for _, child := range el.Children {
		flattenRecursive(child, currentPath, result)
	}
}
