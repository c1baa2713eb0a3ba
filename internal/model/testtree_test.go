package model

// sampleTree builds a small native screen:
//
//	FrameLayout
//	├── TextView "Title"
//	├── LinearLayout
//	│   ├── Button "OK"
//	│   └── Button "Cancel" (disabled)
//	└── ListView (scrollable)
func sampleTree() *GenericElement {
	return &GenericElement{
		ClassName: "android.widget.FrameLayout",
		Bounds:    Rect{0, 0, 1080, 1920},
		Enabled:   true,
		Children: []*GenericElement{
			{ClassName: "android.widget.TextView", Text: "Title", Bounds: Rect{0, 0, 1080, 100}, Enabled: true},
			{
				ClassName: "android.widget.LinearLayout",
				Bounds:    Rect{0, 100, 1080, 300},
				Enabled:   true,
				Children: []*GenericElement{
					{ResourceID: "ok", ClassName: "android.widget.Button", Text: "OK", Bounds: Rect{0, 100, 540, 300}, Clickable: true, Enabled: true},
					{ResourceID: "cancel", ClassName: "android.widget.Button", Text: "Cancel", Bounds: Rect{540, 100, 1080, 300}, Clickable: true},
				},
			},
			{ResourceID: "list", ClassName: "android.widget.ListView", Bounds: Rect{0, 300, 1080, 1920}, Scrollable: true, Enabled: true},
		},
	}
}
