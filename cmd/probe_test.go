package cmd

import (
	"testing"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/web"
	"github.com/mj1618/uibridge/internal/web/jsdom"
)

func TestProbeSurface(t *testing.T) {
	surface, err := jsdom.Load("../internal/web/testdata/signup.json", "probe", model.Rect{Right: 360, Bottom: 640})
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	ext := web.NewExtractor(web.Options{}, zap.NewNop())

	result := probeSurface(t.Context(), ext, surface)
	if result.Root.IsError() {
		t.Fatalf("unexpected error node: %s", result.Root.Text)
	}
	if result.Kind != "EmbeddedWeb" {
		t.Errorf("expected kind EmbeddedWeb, got %q", result.Kind)
	}
	if result.Nodes != 9 {
		t.Errorf("expected 9 nodes, got %d", result.Nodes)
	}
	if result.Generation == "" {
		t.Error("expected a generation")
	}
	model.Walk(result.Root, func(el *model.GenericElement, _ int) bool {
		if el.PageType != model.PageWebView {
			t.Errorf("node %d tagged %q", el.Index, el.PageType)
		}
		if el.Prop(model.PropSource) != model.SourceWeb {
			t.Errorf("node %d source %q", el.Index, el.Prop(model.PropSource))
		}
		return true
	})
}

func TestProbeSurface_MissingFixture(t *testing.T) {
	if _, err := jsdom.Load("testdata/missing.json", "probe", model.Rect{}); err == nil {
		t.Error("expected error for a missing fixture")
	}
}
