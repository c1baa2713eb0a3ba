package adb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

const loginDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?><hierarchy rotation="0">` +
	`<node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.example" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" focusable="false" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[0,0][1080,2340]">` +
	`<node index="0" text="Sign in" resource-id="com.example:id/login" class="android.widget.Button" package="com.example" content-desc="" checkable="false" checked="false" clickable="true" enabled="true" focusable="true" focused="false" scrollable="false" long-clickable="false" password="false" selected="false" bounds="[100,200][500,300]" />` +
	`<node index="1" text="bob" resource-id="com.example:id/user" class="android.widget.EditText" package="com.example" content-desc="" checkable="false" checked="false" clickable="true" enabled="true" focusable="true" focused="false" scrollable="false" long-clickable="true" password="false" selected="false" bounds="[100,400][980,500]" />` +
	`</node></hierarchy>`

// movedDump is loginDump with the button shifted down.
const movedDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?><hierarchy rotation="0">` +
	`<node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.example" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" bounds="[0,0][1080,2340]">` +
	`<node index="0" text="Sign in" resource-id="com.example:id/login" class="android.widget.Button" package="com.example" content-desc="" checkable="false" checked="false" clickable="true" enabled="true" bounds="[100,600][500,700]" />` +
	`<node index="1" text="bob" resource-id="com.example:id/user" class="android.widget.EditText" package="com.example" content-desc="" checkable="false" checked="false" clickable="true" enabled="true" bounds="[100,400][980,500]" />` +
	`</node></hierarchy>`

const webDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?><hierarchy rotation="0">` +
	`<node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.example" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" bounds="[0,0][1080,2340]">` +
	`<node index="0" text="" resource-id="com.example:id/web" class="android.webkit.WebView" package="com.example" content-desc="" checkable="false" checked="false" clickable="false" enabled="true" scrollable="true" bounds="[0,300][1080,2340]" />` +
	`</node></hierarchy>`

type fakeShell struct {
	mu       sync.Mutex
	cmds     []string
	dumps    []string // consumed in order, the last one repeats
	failing  int      // number of dumps that fail before one succeeds
	density  string
	inputErr error
}

func (f *fakeShell) Shell(_ context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	switch {
	case strings.HasPrefix(cmd, "uiautomator dump"):
		if f.failing > 0 {
			f.failing--
			return "ERROR: could not get idle state.", errors.New("exit status 137")
		}
		if len(f.dumps) == 0 {
			return "", errors.New("no dump scripted")
		}
		out := f.dumps[0]
		if len(f.dumps) > 1 {
			f.dumps = f.dumps[1:]
		}
		return out + "\nUI hierchary dumped to: /dev/tty", nil
	case cmd == "wm density":
		return f.density, nil
	case strings.HasPrefix(cmd, "input"):
		return "", f.inputErr
	}
	return "", nil
}

func (f *fakeShell) commands(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.cmds {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func newTestDevice(t *testing.T, sh *fakeShell) *Device {
	d := NewDevice(sh, "", 3, zaptest.NewLogger(t))
	d.retryDelay = 0
	return d
}

func newTestScreen(t *testing.T, sh *fakeShell) (*Screen, *time.Time) {
	now := time.Unix(1000, 0)
	s := NewScreen(newTestDevice(t, sh), ScreenOptions{Density: 2.75, MaxAge: time.Second}, zaptest.NewLogger(t))
	s.now = func() time.Time { return now }
	return s, &now
}

func TestDump_RetriesAndTrims(t *testing.T) {
	sh := &fakeShell{dumps: []string{"WARNING: linker noise\n" + loginDump}, failing: 2}
	doc, err := newTestDevice(t, sh).Dump(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "<?xml"))
	assert.True(t, strings.HasSuffix(string(doc), "</hierarchy>"))
	assert.Len(t, sh.commands("pkill uiautomator"), 2)
	assert.Equal(t, "uiautomator dump /data/local/tmp/uibridge.xml >/dev/null && cat /data/local/tmp/uibridge.xml",
		sh.commands("uiautomator dump")[0])
}

func TestDump_GivesUp(t *testing.T) {
	sh := &fakeShell{failing: 10}
	_, err := newTestDevice(t, sh).Dump(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Len(t, sh.commands("uiautomator dump"), 3)
}

func TestDump_NoDocument(t *testing.T) {
	sh := &fakeShell{dumps: []string{"nothing here"}}
	_, err := newTestDevice(t, sh).Dump(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hierarchy document")
}

func TestDensity(t *testing.T) {
	tests := []struct {
		out  string
		want float64
	}{
		{"Physical density: 440", 2.75},
		{"Physical density: 420\nOverride density: 480", 3},
		{"Physical density: 160\r\n", 1},
	}
	for _, tt := range tests {
		got, err := newTestDevice(t, &fakeShell{density: tt.out}).Density(context.Background())
		require.NoError(t, err, tt.out)
		assert.InDelta(t, tt.want, got, 1e-9, tt.out)
	}

	_, err := newTestDevice(t, &fakeShell{density: "unknown command"}).Density(context.Background())
	assert.Error(t, err)
}

func TestInputCommands(t *testing.T) {
	sh := &fakeShell{}
	in := NewInput(newTestDevice(t, sh))
	ctx := context.Background()

	require.NoError(t, in.Tap(ctx, model.Point{X: 300, Y: 250}))
	require.NoError(t, in.LongPress(ctx, model.Point{X: 10, Y: 20}, time.Second))
	require.NoError(t, in.Drag(ctx, model.Point{X: 540, Y: 1800}, model.Point{X: 540, Y: 700}, 300*time.Millisecond))
	require.NoError(t, in.InputText(ctx, "hello world & co"))
	require.NoError(t, in.Back(ctx))
	require.NoError(t, in.Home(ctx))

	assert.Equal(t, []string{
		"input tap 300 250",
		"input swipe 10 20 10 20 1000",
		"input swipe 540 1800 540 700 300",
		`input text hello%sworld%s\&%sco`,
		"input keyevent 4",
		"input keyevent 3",
	}, sh.commands("input"))

	err := in.InputText(ctx, "héllo")
	assert.ErrorIs(t, err, platform.ErrUnsupported)
}

func TestEscapeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"a b", "a%sb"},
		{`it's $5 (ok)`, `it\'s%s\$5%s\(ok\)`},
		{`a|b;c`, `a\|b\;c`},
		{"100% sure", `100\%%s` + "sure"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeInput(tt.in), tt.in)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr error
	}{
		{name: "empty", in: ""},
		{name: "plain", in: "hi there", want: []string{"input text hi%sthere"}},
		{name: "percent", in: "50%", want: []string{`input text 50\%`}},
		{name: "literal percent s", in: "a%sb%s", want: []string{`input text a\%`, "input text sb\\%", "input text s"}},
		{name: "newline", in: "a\nreboot", wantErr: platform.ErrUnsupported},
		{name: "carriage return", in: "a\rb", wantErr: platform.ErrUnsupported},
		{name: "tab", in: "a\tb", wantErr: platform.ErrUnsupported},
		{name: "nul", in: "a\x00b", wantErr: platform.ErrUnsupported},
		{name: "delete", in: "a\x7fb", wantErr: platform.ErrUnsupported},
		{name: "non-ascii", in: "héllo", wantErr: platform.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh := &fakeShell{}
			err := newTestDevice(t, sh).Text(context.Background(), tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, sh.commands("input"), "nothing reaches the shell")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sh.commands("input"))
		})
	}
}

func TestScreen_RootFromDump(t *testing.T) {
	sh := &fakeShell{dumps: []string{loginDump}}
	s, _ := newTestScreen(t, sh)

	root, err := s.Root()
	require.NoError(t, err)
	assert.Equal(t, 2.75, s.Density())
	assert.Equal(t, "android.widget.FrameLayout", root.State().ClassName)

	kids := root.Children()
	require.Len(t, kids, 2)
	login := kids[0].State()
	assert.Equal(t, "login", login.ID)
	assert.Equal(t, "Sign in", login.Text)
	assert.True(t, login.Clickable)
	assert.True(t, login.Visible)
	assert.Equal(t, model.Rect{Left: 100, Top: 200, Right: 500, Bottom: 300}, login.Bounds)
	assert.True(t, kids[1].State().LongClickable)
	assert.True(t, kids[0].Attached())

	_, ok := s.WebSurface()
	assert.False(t, ok)
}

func TestScreen_CachesWithinMaxAge(t *testing.T) {
	sh := &fakeShell{dumps: []string{loginDump, movedDump}}
	s, now := newTestScreen(t, sh)

	first, err := s.Root()
	require.NoError(t, err)
	*now = now.Add(500 * time.Millisecond)
	again, err := s.Root()
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Len(t, sh.commands("uiautomator dump"), 1)

	*now = now.Add(time.Second)
	_, err = s.Root()
	require.NoError(t, err)
	assert.Len(t, sh.commands("uiautomator dump"), 2)
}

func TestScreen_AttachmentFollowsDumps(t *testing.T) {
	sh := &fakeShell{dumps: []string{loginDump, movedDump}}
	s, _ := newTestScreen(t, sh)

	root, err := s.Root()
	require.NoError(t, err)
	login, user := root.Children()[0], root.Children()[1]

	changes, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, changes)
	assert.False(t, login.Attached(), "moved button is a different view")
	assert.True(t, user.Attached(), "unchanged field survives the refresh")
}

func TestScreen_DumpFailure(t *testing.T) {
	s, _ := newTestScreen(t, &fakeShell{failing: 10})
	_, err := s.Root()
	assert.ErrorIs(t, err, platform.ErrNoActiveScreen)
}

type stubSurface struct{}

func (stubSurface) ID() string                                             { return "page-1" }
func (stubSurface) Bounds() model.Rect                                     { return model.Rect{} }
func (stubSurface) EvaluateScript(context.Context, string) (string, error) { return "null", nil }

func TestClassifier(t *testing.T) {
	native, _ := newTestScreen(t, &fakeShell{dumps: []string{loginDump}})
	assert.Equal(t, platform.PageNative, Classifier{}.Classify(native))

	web, _ := newTestScreen(t, &fakeShell{dumps: []string{webDump}})
	assert.Equal(t, platform.PageEmbeddedWeb, Classifier{}.Classify(web))
	_, ok := web.WebSurface()
	assert.False(t, ok, "no devtools surface attached")
	web.SetWebSurface(stubSurface{})
	w, ok := web.WebSurface()
	require.True(t, ok)
	assert.Equal(t, "page-1", w.ID())
	assert.Equal(t, model.Rect{Top: 300, Right: 1080, Bottom: 2340}, web.WebViewBounds())

	broken, _ := newTestScreen(t, &fakeShell{failing: 10})
	assert.Equal(t, platform.PageUnknown, Classifier{}.Classify(broken))
}

func TestActions(t *testing.T) {
	sh := &fakeShell{dumps: []string{loginDump}}
	s, _ := newTestScreen(t, sh)
	root, err := s.Root()
	require.NoError(t, err)
	login, user := root.Children()[0], root.Children()[1]

	a := NewActions(newTestDevice(t, sh))
	assert.True(t, a.PerformClick(login))
	assert.True(t, a.PerformLongClick(login))
	assert.True(t, a.SetText(user, "alice"))
	assert.Equal(t, []string{
		"input tap 300 250",
		"input swipe 300 250 300 250 1000",
		"input tap 540 450",
		"input keyevent 123 67 67 67",
		"input text alice",
	}, sh.commands("input"))

	sh.inputErr = errors.New("device offline")
	assert.False(t, a.PerformClick(login))

	disabled := &View{screen: s, state: platform.ViewState{Bounds: model.Rect{Right: 10, Bottom: 10}}}
	assert.False(t, a.PerformClick(disabled))
}

func TestObserver_ReportsChangedDumps(t *testing.T) {
	sh := &fakeShell{dumps: []string{loginDump, loginDump, movedDump}}
	s, _ := newTestScreen(t, sh)
	o := NewObserver(s, time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reasons []string
	err := o.Observe(ctx, func(reason string) {
		reasons = append(reasons, reason)
		if len(reasons) == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, reasons, 2)
	assert.Equal(t, "layout: 3 added, 0 removed, 0 changed", reasons[0])
	assert.Len(t, sh.commands("uiautomator dump"), 3, "the identical second dump is not reported")
}

func TestNewProvider(t *testing.T) {
	sh := &fakeShell{density: "Physical density: 320", dumps: []string{loginDump}}
	p, err := newProvider(sh, platform.Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Screen.Density())
	assert.NotNil(t, p.Classifier)
	assert.NotNil(t, p.Actions)
	assert.NotNil(t, p.Touch)
	assert.NotNil(t, p.Navigator)
	assert.NotNil(t, p.Observer)
	assert.Nil(t, p.Fallback)
	assert.NoError(t, p.Shutdown())

	sh = &fakeShell{}
	p, err = newProvider(sh, platform.Options{Density: 3}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 3.0, p.Screen.Density())
	assert.Empty(t, sh.commands("wm"))

	_, err = newProvider(&fakeShell{density: "??"}, platform.Options{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestValidateSerial(t *testing.T) {
	for _, ok := range []string{"", "emulator-5554", "192.168.1.5:5555", "R58M123ABC"} {
		assert.NoError(t, ValidateSerial(ok), ok)
	}
	for _, bad := range []string{"a b", "x;rm", "$(id)", strings.Repeat("a", 300)} {
		assert.Error(t, ValidateSerial(bad), bad)
	}
	_, err := NewExecShell("adb", "bad serial")
	assert.Error(t, err)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "login", entryName("com.example:id/login"))
	assert.Equal(t, "plain", entryName("plain"))
	assert.Equal(t, "", entryName(""))
}
