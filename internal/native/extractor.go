// Package native reads and drives the platform scene graph.
package native

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/uithread"
)

// Extractor converts the native scene graph into a GenericElement tree.
type Extractor struct {
	looper *uithread.Looper
	logger *zap.Logger
}

// NewExtractor creates an Extractor that reads views on looper.
func NewExtractor(looper *uithread.Looper, logger *zap.Logger) *Extractor {
	return &Extractor{looper: looper, logger: logger.Named("native")}
}

// Extract performs one traversal of the visible scene graph on the UI
// thread. Bounds are converted to dp here. On failure it returns a single
// synthetic error node instead of an error.
func (e *Extractor) Extract(ctx context.Context, screen platform.Screen) *model.GenericElement {
	var root *model.GenericElement
	err := e.looper.Call(ctx, func() error {
		v, err := screen.Root()
		if err != nil {
			return err
		}
		if v == nil || !v.Attached() {
			return platform.ErrNoActiveScreen
		}
		root = convert(v, v.State(), density(screen))
		return nil
	})
	if err != nil {
		e.logger.Warn("native extraction unavailable", zap.Error(err))
		return model.ErrorElement(fmt.Sprintf("native extraction unavailable: %v", err))
	}
	model.PruneStyling(root)
	e.logger.Debug("native tree extracted", zap.Int("nodes", model.Count(root)))
	return root
}

func convert(v platform.View, st platform.ViewState, d float64) *model.GenericElement {
	el := &model.GenericElement{
		ResourceID:    st.ID,
		ClassName:     st.ClassName,
		Text:          st.Text,
		ContentDesc:   st.ContentDesc,
		Bounds:        st.Bounds.Scale(d),
		Clickable:     st.Clickable,
		LongClickable: st.LongClickable,
		Checkable:     st.Checkable,
		Checked:       st.Checked,
		Scrollable:    st.Scrollable,
		Selected:      st.Selected,
		Enabled:       st.Enabled,
		Important:     st.Important,
		NAF:           st.NAF,
		View:          v,
	}
	for _, child := range v.Children() {
		cst := child.State()
		if !cst.Visible {
			continue
		}
		el.Children = append(el.Children, convert(child, cst, d))
	}
	return el
}

func density(screen platform.Screen) float64 {
	if d := screen.Density(); d > 0 {
		return d
	}
	return 1
}
