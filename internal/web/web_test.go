package web

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/platform/platformtest"
	"github.com/mj1618/uibridge/internal/web/jsdom"
)

// countingSurface records every script sent to the wrapped surface.
type countingSurface struct {
	platform.WebSurface
	mu      sync.Mutex
	scripts []string
}

func (c *countingSurface) EvaluateScript(ctx context.Context, script string) (string, error) {
	c.mu.Lock()
	c.scripts = append(c.scripts, script)
	c.mu.Unlock()
	return c.WebSurface.EvaluateScript(ctx, script)
}

func (c *countingSurface) count(pred func(string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.scripts {
		if pred(s) {
			n++
		}
	}
	return n
}

func isProbe(s string) bool { return s == ProbeScript() }
func isReady(s string) bool { return s == readyScript }

func loadSignup(t *testing.T) (*jsdom.Surface, *countingSurface) {
	t.Helper()
	data, err := os.ReadFile("testdata/signup.json")
	require.NoError(t, err)
	dom, err := jsdom.New("wv1", model.Rect{Left: 0, Top: 200, Right: 1080, Bottom: 2200}, data)
	require.NoError(t, err)
	return dom, &countingSurface{WebSurface: dom}
}

func byID(root *model.GenericElement, id string) *model.GenericElement {
	var found *model.GenericElement
	model.Walk(root, func(el *model.GenericElement, _ int) bool {
		if el.ResourceID == id {
			found = el
		}
		return found == nil
	})
	return found
}

func TestExtract_ProbeSerializesDOM(t *testing.T) {
	_, surface := loadSignup(t)
	ext := NewExtractor(Options{}, zaptest.NewLogger(t))

	root := ext.Extract(context.Background(), surface)
	require.False(t, root.IsError(), "unexpected error node: %s", root.Text)

	assert.Equal(t, "BODY", root.ClassName)
	assert.Empty(t, root.Text, "text is only attached at leaves")
	assert.Equal(t, 9, model.Count(root), "STYLE is skipped")

	var got []int
	model.Walk(root, func(el *model.GenericElement, _ int) bool {
		got = append(got, el.Index)
		return true
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, got)

	card := byID(root, "card")
	require.NotNil(t, card)
	assert.Empty(t, card.Text)
	assert.Equal(t, "Welcome home", card.Children[0].Text)
	assert.Equal(t, "card", card.Prop("className"))

	goBtn := byID(root, "go")
	assert.True(t, goBtn.Clickable)
	assert.Equal(t, model.Rect{Left: 10, Top: 200, Right: 110, Bottom: 250}, goBtn.Bounds, "document coordinates, not viewport")

	email := byID(root, "email")
	assert.Equal(t, "Email", email.ContentDesc)
	assert.Equal(t, "INPUT", email.Prop(model.PropTagName))
	assert.Equal(t, "email", email.Prop("name"))

	agree := byID(root, "agree")
	assert.True(t, agree.Checkable)
	assert.True(t, agree.Checked)

	feed := byID(root, "feed")
	assert.True(t, feed.Scrollable)
	assert.Len(t, feed.Children[0].Text, 100)

	closeBtn := root.Children[len(root.Children)-1]
	assert.True(t, closeBtn.Clickable)
	assert.Equal(t, "Close", closeBtn.ContentDesc)
	assert.False(t, closeBtn.LongClickable)
}

func TestExtract_InjectsOnceAndReusesBridge(t *testing.T) {
	_, surface := loadSignup(t)
	ext := NewExtractor(Options{}, zaptest.NewLogger(t))

	first := ext.Extract(context.Background(), surface)
	second := ext.Extract(context.Background(), surface)
	require.False(t, first.IsError())
	require.False(t, second.IsError())
	assert.Equal(t, 1, surface.count(isProbe))
	assert.Equal(t, 0, second.Index, "counter restarts on every call")
}

func TestExtract_ReinjectsAfterReload(t *testing.T) {
	dom, surface := loadSignup(t)
	ext := NewExtractor(Options{}, zaptest.NewLogger(t))

	require.False(t, ext.Extract(context.Background(), surface).IsError())
	require.NoError(t, dom.Reload())
	require.False(t, ext.Extract(context.Background(), surface).IsError())
	assert.Equal(t, 2, surface.count(isProbe))
}

func TestExtract_BridgeNeverInstalls(t *testing.T) {
	dom, surface := loadSignup(t)
	dom.BlockInjection = true
	ext := NewExtractor(Options{}, zaptest.NewLogger(t))

	root := ext.Extract(context.Background(), surface)
	assert.True(t, root.IsError())
	assert.Contains(t, root.Text, ErrBridgeNotReady.Error())
	assert.Equal(t, 1, surface.count(isProbe), "exactly one retry")
	assert.Equal(t, 2, surface.count(isReady))
}

func TestExtract_DefensiveParsing(t *testing.T) {
	results := map[string]string{
		"null":             "null",
		"undefined":        "undefined",
		"blank":            "   ",
		"quoted null":      `"null"`,
		"malformed":        `{"resourceId": "x",`,
		"quoted malformed": `"{\"resourceId\": "`,
		"array":            `[1,2,3]`,
		"number":           `42`,
	}
	for name, result := range results {
		t.Run(name, func(t *testing.T) {
			surface := &platformtest.WebSurface{SurfaceID: "wv", Handler: func(script string) (string, error) {
				if script == readyScript {
					return "true", nil
				}
				return result, nil
			}}
			root := NewExtractor(Options{}, zaptest.NewLogger(t)).Extract(context.Background(), surface)
			assert.True(t, root.IsError())
			assert.Empty(t, root.Children)
		})
	}
}

func TestExtract_ProbeReportedError(t *testing.T) {
	surface := &platformtest.WebSurface{SurfaceID: "wv", Handler: func(script string) (string, error) {
		if script == readyScript {
			return "true", nil
		}
		return `"{\"resourceId\":\"error\",\"className\":\"Error\",\"text\":\"probe failed: boom\"}"`, nil
	}}
	root := NewExtractor(Options{}, zaptest.NewLogger(t)).Extract(context.Background(), surface)
	assert.True(t, root.IsError())
	assert.Equal(t, "probe failed: boom", root.Text)
}

func TestExtract_TimesOut(t *testing.T) {
	surface := &platformtest.WebSurface{SurfaceID: "wv", Handler: func(string) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "true", nil
	}}
	root := NewExtractor(Options{ProbeTimeout: 10 * time.Millisecond}, zaptest.NewLogger(t)).Extract(context.Background(), surface)
	assert.True(t, root.IsError())
}

func TestExtract_CSSRatioScalesBounds(t *testing.T) {
	_, surface := loadSignup(t)
	root := NewExtractor(Options{CSSPxPerDp: 2}, zaptest.NewLogger(t)).Extract(context.Background(), surface)
	require.False(t, root.IsError())
	assert.Equal(t, model.Rect{Left: 5, Top: 100, Right: 55, Bottom: 125}, byID(root, "go").Bounds)
}

func TestDecodeTree(t *testing.T) {
	raw := `{"resourceId":"a","className":"DIV","bounds":"[1,2][3,4]","children":[7,"x",{"className":"SPAN","enabled":false,"bounds":[5,6,7,8]}]}`
	root, err := DecodeTree(raw)
	require.NoError(t, err)
	assert.True(t, root.Enabled, "enabled defaults to true")
	assert.Equal(t, model.Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}, root.Bounds)
	require.Len(t, root.Children, 1, "non-object children are ignored")
	assert.False(t, root.Children[0].Enabled)
	assert.Equal(t, model.Rect{Left: 5, Top: 6, Right: 7, Bottom: 8}, root.Children[0].Bounds)

	_, err = DecodeTree("undefined")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestExecutor_ClickAndInput(t *testing.T) {
	dom, surface := loadSignup(t)
	x := NewExecutor(Options{}, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, x.Click(ctx, surface, &model.GenericElement{ResourceID: "go"}))
	text := `He said "hi" </script> & left`
	require.NoError(t, x.SetInput(ctx, surface, &model.GenericElement{ResourceID: "email"}, text))

	events, err := dom.Events()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, jsdom.Event{Type: "click", ID: "go"}, events[0])
	assert.Equal(t, jsdom.Event{Type: "input", ID: "email", Value: text}, events[1])
	assert.Equal(t, "change", events[2].Type)
}

func TestExecutor_Failures(t *testing.T) {
	_, surface := loadSignup(t)
	x := NewExecutor(Options{}, zaptest.NewLogger(t))
	ctx := context.Background()

	assert.ErrorIs(t, x.Click(ctx, surface, &model.GenericElement{}), ErrNotAddressable)
	assert.ErrorIs(t, x.SetInput(ctx, surface, &model.GenericElement{}, "x"), ErrNotAddressable)
	assert.ErrorIs(t, x.Click(ctx, surface, &model.GenericElement{ResourceID: "nope"}), ErrElementMissing)
	assert.ErrorIs(t, x.LongClick(ctx, surface, &model.GenericElement{ResourceID: "go"}), platform.ErrUnsupported)
}

func TestExecutor_ScreenCenter(t *testing.T) {
	_, surface := loadSignup(t)
	x := NewExecutor(Options{}, zaptest.NewLogger(t))

	// Surface at [0,200][1080,2200] px with density 3 starts at dp (0,67).
	// "go" is centered at document (60,225) and the page is scrolled by 100.
	p, err := x.ScreenCenter(context.Background(), surface, &model.GenericElement{Bounds: model.Rect{Left: 10, Top: 200, Right: 110, Bottom: 250}}, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 60, Y: 192}, p)
}

func TestCallScript_QuotesArguments(t *testing.T) {
	s, err := callScript("setInputValue", `a"b`, "line\nbreak")
	require.NoError(t, err)
	assert.Equal(t, `window.__uibridge.setInputValue("a\"b","line\nbreak")`, s)
	assert.False(t, strings.Contains(s, "\n"))
}
