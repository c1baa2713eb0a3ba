package model

import "strings"

// ScrollContainerClasses lists list and scroll container types whose item
// clicks are dispatched by the container itself.
var ScrollContainerClasses = map[string]bool{
	"android.widget.ListView":                    true,
	"android.widget.GridView":                    true,
	"android.widget.AbsListView":                 true,
	"android.widget.ScrollView":                  true,
	"android.widget.HorizontalScrollView":        true,
	"android.widget.ExpandableListView":          true,
	"androidx.recyclerview.widget.RecyclerView":  true,
	"android.support.v7.widget.RecyclerView":     true,
	"androidx.core.widget.NestedScrollView":      true,
	"android.support.v4.widget.NestedScrollView": true,
	"androidx.viewpager.widget.ViewPager":        true,
	"androidx.viewpager2.widget.ViewPager2":      true,
}

// IsScrollContainer reports whether el is flagged scrollable or belongs to
// a known list/scroll container class.
func IsScrollContainer(el *GenericElement) bool {
	return el.Scrollable || ScrollContainerClasses[el.ClassName]
}

// ShortClass strips the package qualifier from a class name:
// "android.widget.Button" becomes "Button". Web tag names pass through.
func ShortClass(className string) string {
	if i := strings.LastIndexByte(className, '.'); i >= 0 && i < len(className)-1 {
		return className[i+1:]
	}
	return className
}

// stylingClasses are native types that never carry semantic content on
// their own.
var stylingClasses = map[string]bool{
	"android.view.View":            true,
	"android.widget.Space":         true,
	"androidx.legacy.widget.Space": true,
	"android.view.ViewStub":        true,
}

// IsStylingOnly reports whether el is a pure styling leaf: a decorative
// type with no children, no label, no id and no interaction flags.
func IsStylingOnly(el *GenericElement) bool {
	if !stylingClasses[el.ClassName] || len(el.Children) > 0 {
		return false
	}
	if el.ResourceID != "" || el.Text != "" || el.ContentDesc != "" {
		return false
	}
	return !el.Clickable && !el.LongClickable && !el.Checkable && !el.Scrollable && !el.Selected
}

// HasWebContent reports whether the tree contains any WebView-tagged node.
func HasWebContent(root *GenericElement) bool {
	found := false
	Walk(root, func(el *GenericElement, _ int) bool {
		if el.PageType == PageWebView {
			found = true
		}
		return !found
	})
	return found
}
