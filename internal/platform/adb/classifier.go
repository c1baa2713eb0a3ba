package adb

import "github.com/mj1618/uibridge/internal/platform"

// Classifier tells native screens from WebView screens by the classes in
// the latest dump.
type Classifier struct{}

func (Classifier) Classify(screen platform.Screen) platform.PageKind {
	root, err := screen.Root()
	if err != nil {
		return platform.PageUnknown
	}
	if _, ok := screen.WebSurface(); ok || containsClass(root, WebViewClass) {
		return platform.PageEmbeddedWeb
	}
	return platform.PageNative
}

func containsClass(v platform.View, class string) bool {
	if v.State().ClassName == class {
		return true
	}
	for _, c := range v.Children() {
		if containsClass(c, class) {
			return true
		}
	}
	return false
}
