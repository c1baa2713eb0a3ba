package jsdom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/uibridge/internal/model"
)

const fixture = `{"scrollY": 40, "body": {"tag": "body", "rect": [0, 0, 100, 400], "children": [
	{"tag": "button", "id": "b", "text": "Hi", "rect": [0, 50, 50, 80]}
]}}`

func newSurface(t *testing.T) *Surface {
	t.Helper()
	s, err := New("wv", model.Rect{Right: 300, Bottom: 600}, []byte(fixture))
	require.NoError(t, err)
	return s
}

func TestEvaluateScript_EncodesResults(t *testing.T) {
	s := newSurface(t)
	ctx := context.Background()

	cases := []struct{ script, want string }{
		{"1 + 1", "2"},
		{"'x'", `"x"`},
		{"undefined", "null"},
		{"null", "null"},
		{"document.body.tagName", `"BODY"`},
		{"document.getElementById('b').textContent", `"Hi"`},
		{"document.getElementById('b').getBoundingClientRect().top", "10"},
	}
	for _, tc := range cases {
		got, err := s.EvaluateScript(ctx, tc.script)
		require.NoError(t, err, tc.script)
		assert.Equal(t, tc.want, got, tc.script)
	}
}

func TestEvaluateScript_Errors(t *testing.T) {
	s := newSurface(t)

	_, err := s.EvaluateScript(context.Background(), "this is not js")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.EvaluateScript(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.EvaluateScript(ctx, "for (;;) {}")
	assert.Error(t, err)

	got, err := s.EvaluateScript(context.Background(), "'still usable'")
	require.NoError(t, err)
	assert.Equal(t, `"still usable"`, got)
}

func TestReloadDropsGlobals(t *testing.T) {
	s := newSurface(t)
	ctx := context.Background()

	_, err := s.EvaluateScript(ctx, "window.marker = 1")
	require.NoError(t, err)
	require.NoError(t, s.Reload())

	got, err := s.EvaluateScript(ctx, "typeof window.marker")
	require.NoError(t, err)
	assert.Equal(t, `"undefined"`, got)
}

func TestEvents(t *testing.T) {
	s := newSurface(t)
	_, err := s.EvaluateScript(context.Background(), "document.getElementById('b').click()")
	require.NoError(t, err)

	events, err := s.Events()
	require.NoError(t, err)
	assert.Equal(t, []Event{{Type: "click", ID: "b"}}, events)
}

func TestNewRejectsInvalidFixture(t *testing.T) {
	_, err := New("wv", model.Rect{}, []byte("{"))
	assert.Error(t, err)

	_, err = Load("testdata/missing.json", "wv", model.Rect{})
	assert.Error(t, err)
}
