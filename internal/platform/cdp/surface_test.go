package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/uibridge/internal/model"
)

func fakeSurface(t *testing.T, eval func(script string) (json.RawMessage, error)) *Surface {
	return &Surface{
		id:     "page-1",
		bounds: func() model.Rect { return model.Rect{Top: 100, Right: 1080, Bottom: 2000} },
		evaluate: func(_ context.Context, script string) (json.RawMessage, error) {
			return eval(script)
		},
		logger: zaptest.NewLogger(t),
	}
}

func TestEvaluateScript_ReturnsJSON(t *testing.T) {
	var seen string
	s := fakeSurface(t, func(script string) (json.RawMessage, error) {
		seen = script
		return json.RawMessage(`"{\"resourceId\":\"a\"}"`), nil
	})

	got, err := s.EvaluateScript(context.Background(), "window.__uibridge.getElementTree()")
	require.NoError(t, err)
	assert.Equal(t, `"{\"resourceId\":\"a\"}"`, got)
	assert.Equal(t, "window.__uibridge.getElementTree()", seen)
	assert.Equal(t, "page-1", s.ID())
	assert.Equal(t, model.Rect{Top: 100, Right: 1080, Bottom: 2000}, s.Bounds())
}

func TestEvaluateScript_NullishResults(t *testing.T) {
	for name, eval := range map[string]func(string) (json.RawMessage, error){
		"undefined": func(string) (json.RawMessage, error) { return nil, chromedp.ErrJSUndefined },
		"null":      func(string) (json.RawMessage, error) { return nil, chromedp.ErrJSNull },
		"empty":     func(string) (json.RawMessage, error) { return nil, nil },
	} {
		t.Run(name, func(t *testing.T) {
			got, err := fakeSurface(t, eval).EvaluateScript(context.Background(), "void 0")
			require.NoError(t, err)
			assert.Equal(t, "null", got)
		})
	}
}

func TestEvaluateScript_WrapsErrors(t *testing.T) {
	boom := errors.New("exception: ReferenceError")
	s := fakeSurface(t, func(string) (json.RawMessage, error) { return nil, boom })

	_, err := s.EvaluateScript(context.Background(), "nope()")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "page-1")
}

func TestClose_Idempotent(t *testing.T) {
	calls := 0
	s := fakeSurface(t, nil)
	s.cancel = func() { calls++ }
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestBounds_NilFunc(t *testing.T) {
	s := &Surface{}
	assert.True(t, s.Bounds().Empty())
}

func TestRunActions_HonorsCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A context with no chromedp allocator fails fast; a cancelled caller
	// context takes precedence in the returned error.
	err := runActions(context.Background(), ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithin(t *testing.T) {
	require.NoError(t, within(context.Background(), func() error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)
	err := within(ctx, func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
