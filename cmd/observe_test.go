package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/stability"
)

func decodeLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var ev map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestObserver_BaselineAndDone(t *testing.T) {
	d := newTestDevice(t)
	var buf bytes.Buffer
	o := &observer{
		snapshot: func(context.Context) (*dispatch.Snapshot, error) {
			return d.disp.Snapshot(context.Background())
		},
		out: &buf,
	}
	w := stability.NewWaiter(d.looper, d.timing(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := o.run(ctx, w); err != nil {
		t.Fatalf("run: %v", err)
	}

	events := decodeLines(t, buf.Bytes())
	if len(events) != 2 {
		t.Fatalf("expected snapshot and done events, got %d: %s", len(events), buf.String())
	}
	if events[0]["type"] != "snapshot" || events[0]["count"] != float64(4) {
		t.Errorf("unexpected baseline event: %v", events[0])
	}
	if events[1]["type"] != "done" || events[1]["events"] != float64(0) {
		t.Errorf("unexpected done event: %v", events[1])
	}
}

func TestObserver_Emit(t *testing.T) {
	prev := []model.FlatElement{
		{Index: 1, Path: "0/0", ResourceID: "ok", Text: "OK", Bounds: "[0,100][180,150]"},
		{Index: 2, Path: "0/1", Text: "Looks OK to me", Bounds: "[0,200][360,230]"},
	}
	curr := []model.FlatElement{
		{Index: 1, Path: "0/0", ResourceID: "ok", Text: "OK", Bounds: "[0,120][180,170]"},
		{Index: 2, Path: "0/1", Text: "Saved", Bounds: "[0,200][360,230]"},
		{Index: 3, Path: "0/2", Text: "Undo"},
	}
	changes := model.DiffSnapshots(prev, curr)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	o := &observer{ignoreBounds: true}
	n := o.emit(enc, changes)

	// The moved button is dropped; the text change and the new node remain.
	if n != 2 {
		t.Fatalf("expected 2 events, got %d: %s", n, buf.String())
	}
	events := decodeLines(t, buf.Bytes())
	types := map[interface{}]int{}
	for _, ev := range events {
		types[ev["type"]]++
	}
	if types["changed"] != 1 || types["added"] != 1 {
		t.Errorf("unexpected event types: %v", types)
	}
}

func TestObserver_EmitKeepsBounds(t *testing.T) {
	prev := []model.FlatElement{{Path: "0/0", ResourceID: "ok", Bounds: "[0,100][180,150]"}}
	curr := []model.FlatElement{{Path: "0/0", ResourceID: "ok", Bounds: "[0,120][180,170]"}}

	var buf bytes.Buffer
	o := &observer{}
	if n := o.emit(json.NewEncoder(&buf), model.DiffSnapshots(prev, curr)); n != 1 {
		t.Errorf("expected the move to be reported, got %d events", n)
	}
}
