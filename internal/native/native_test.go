package native

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/platform/platformtest"
	"github.com/mj1618/uibridge/internal/uithread"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	looper *uithread.Looper
	screen *platformtest.Screen
	touch  *platformtest.Touch
	button *platformtest.View
	field  *platformtest.View
	ext    *Extractor
	exec   *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	looper := uithread.New(nil, logger)
	looper.Start()
	t.Cleanup(looper.Stop)

	button := platformtest.NewView("android.widget.Button", model.Rect{Left: 0, Top: 200, Right: 400, Bottom: 400}).With(func(st *platform.ViewState) {
		st.ID = "submit"
		st.Text = "Submit"
		st.Clickable = true
		st.LongClickable = true
	})
	field := platformtest.NewView("android.widget.EditText", model.Rect{Left: 0, Top: 400, Right: 800, Bottom: 600}).With(func(st *platform.ViewState) {
		st.ID = "name"
		st.Clickable = true
	})
	hidden := platformtest.NewView("android.widget.TextView", model.Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}).With(func(st *platform.ViewState) {
		st.Visible = false
		st.Text = "secret"
	})
	spacer := platformtest.NewView("android.widget.Space", model.Rect{Left: 0, Top: 600, Right: 800, Bottom: 620})
	emptyGroup := platformtest.NewView("android.widget.FrameLayout", model.Rect{Left: 0, Top: 620, Right: 800, Bottom: 700})
	root := platformtest.NewView("android.widget.LinearLayout", model.Rect{Left: 0, Top: 0, Right: 800, Bottom: 1600}, button, field, hidden, spacer, emptyGroup)

	screen := platformtest.NewScreen(root, 2)
	touch := &platformtest.Touch{}
	return &fixture{
		looper: looper,
		screen: screen,
		touch:  touch,
		button: button,
		field:  field,
		ext:    NewExtractor(looper, logger),
		exec: NewExecutor(looper, ExecutorOptions{
			Screen:            screen,
			Actions:           platformtest.Actions{},
			Touch:             touch,
			Navigator:         touch,
			LongPressDuration: 800 * time.Millisecond,
		}, logger),
	}
}

func TestExtract_ConvertsToDpAndKeepsBackReferences(t *testing.T) {
	f := newFixture(t)
	root := f.ext.Extract(context.Background(), f.screen)

	require.False(t, root.IsError())
	assert.Equal(t, model.Rect{Left: 0, Top: 0, Right: 400, Bottom: 800}, root.Bounds)
	require.Len(t, root.Children, 3, "hidden view and styling spacer are dropped, empty container stays")

	btn := root.Children[0]
	assert.Equal(t, "submit", btn.ResourceID)
	assert.Equal(t, model.Rect{Left: 0, Top: 100, Right: 200, Bottom: 200}, btn.Bounds)
	assert.True(t, btn.Clickable)
	assert.Same(t, f.button, btn.View)

	assert.Equal(t, "android.widget.FrameLayout", root.Children[2].ClassName)
	assert.Empty(t, root.Children[2].Children)
}

func TestExtract_DoesNotMutateSceneGraph(t *testing.T) {
	f := newFixture(t)
	before := f.button.State()
	f.ext.Extract(context.Background(), f.screen)
	assert.Equal(t, before, f.button.State())
}

func TestExtract_NoActiveScreenYieldsErrorNode(t *testing.T) {
	f := newFixture(t)
	f.screen.SetRoot(nil)
	root := f.ext.Extract(context.Background(), f.screen)
	assert.True(t, root.IsError())
	assert.Contains(t, root.Text, "no active screen")

	f.screen.FailRoot(errors.New("activity destroyed"))
	root = f.ext.Extract(context.Background(), f.screen)
	assert.True(t, root.IsError())
}

func TestExecutor_ClickUsesLiveView(t *testing.T) {
	f := newFixture(t)
	root := f.ext.Extract(context.Background(), f.screen)
	require.NoError(t, f.exec.Click(context.Background(), root.Children[0]))
	assert.Equal(t, 1, f.button.Clicks)
	assert.Empty(t, f.touch.Gestures())
}

func TestExecutor_ClickReResolvesDetachedViewByID(t *testing.T) {
	f := newFixture(t)
	el := &model.GenericElement{ResourceID: "submit", View: platformtest.NewView("x", model.Rect{})}
	el.View.(*platformtest.View).Detach()
	require.NoError(t, f.exec.Click(context.Background(), el))
	assert.Equal(t, 1, f.button.Clicks)
}

func TestExecutor_ClickWithoutLiveViewTaps(t *testing.T) {
	f := newFixture(t)
	root := f.ext.Extract(context.Background(), f.screen)
	el := root.Children[0]
	f.button.Detach()
	el.ResourceID = "gone"

	require.NoError(t, f.exec.Click(context.Background(), el))
	assert.Zero(t, f.button.Clicks)
	g := f.touch.Gestures()
	require.Len(t, g, 1)
	assert.Equal(t, "tap", g[0].Kind)
	assert.Equal(t, model.Point{X: 200, Y: 300}, g[0].From)
}

func TestExecutor_ClickErrors(t *testing.T) {
	f := newFixture(t)
	f.button.Reject = true
	err := f.exec.Click(context.Background(), &model.GenericElement{View: f.button})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, f.touch.Gestures(), "a refusing view is not tapped")

	f.touch.Err = errors.New("device offline")
	err = f.exec.Click(context.Background(), &model.GenericElement{ResourceID: "missing"})
	assert.EqualError(t, err, "device offline")
}

func TestExecutor_LongClickFallsBackToPress(t *testing.T) {
	f := newFixture(t)
	root := f.ext.Extract(context.Background(), f.screen)

	require.NoError(t, f.exec.LongClick(context.Background(), root.Children[0]))
	assert.Equal(t, 1, f.button.LongClicks)

	// EditText is not long-clickable: coordinate press at its center, in px.
	require.NoError(t, f.exec.LongClick(context.Background(), root.Children[1]))
	g := f.touch.Gestures()
	require.Len(t, g, 1)
	assert.Equal(t, "longpress", g[0].Kind)
	assert.Equal(t, model.Point{X: 400, Y: 500}, g[0].From)
	assert.Equal(t, 800*time.Millisecond, g[0].Duration)
}

func TestExecutor_SetInput(t *testing.T) {
	f := newFixture(t)
	root := f.ext.Extract(context.Background(), f.screen)
	require.NoError(t, f.exec.SetInput(context.Background(), root.Children[1], "Ada"))
	assert.Equal(t, []string{"Ada"}, f.field.Texts)

	// No live view and no id: tap then type.
	orphan := &model.GenericElement{Bounds: model.Rect{Left: 10, Top: 10, Right: 30, Bottom: 30}}
	require.NoError(t, f.exec.SetInput(context.Background(), orphan, "hi"))
	g := f.touch.Gestures()
	require.Len(t, g, 2)
	assert.Equal(t, "tap", g[0].Kind)
	assert.Equal(t, model.Point{X: 40, Y: 40}, g[0].From)
	assert.Equal(t, platformtest.Gesture{Kind: "text", Text: "hi"}, g[1])
}

func TestExecutor_DragAndNavigation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.exec.Drag(ctx, model.Point{X: 100, Y: 300}, model.Point{X: 100, Y: 100}, 300*time.Millisecond))
	require.NoError(t, f.exec.Back(ctx))
	require.NoError(t, f.exec.Home(ctx))

	g := f.touch.Gestures()
	require.Len(t, g, 3)
	assert.Equal(t, model.Point{X: 200, Y: 600}, g[0].From)
	assert.Equal(t, model.Point{X: 200, Y: 200}, g[0].To)
	assert.Equal(t, "back", g[1].Kind)
	assert.Equal(t, "home", g[2].Kind)
}

func TestExecutor_TouchErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.touch.Err = errors.New("device offline")
	assert.EqualError(t, f.exec.TapAt(context.Background(), model.Point{X: 1, Y: 1}), "device offline")
}
