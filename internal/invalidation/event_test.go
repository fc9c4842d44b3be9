package invalidation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func TestEvent_Validate_ReloadWithoutBBox(t *testing.T) {
	ev := Event{Version: 1, Op: OpReload, Dataset: "fr", TS: mustTS()}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ev.BBox = &BBox{X1: 2, Y1: 48, X2: 3, Y2: 49}
	if err := ev.Validate(); err == nil {
		t.Fatalf("expected error for reload with bbox")
	}
}

func TestEvent_Validate_SharedPartition(t *testing.T) {
	ev := Event{Version: 1, Op: OpUpdate, TS: mustTS()}
	if err := ev.Validate(); err != nil {
		t.Fatalf("empty dataset must be accepted: %v", err)
	}
}

func TestEvent_Validate_BBoxHappyPath(t *testing.T) {
	ev := Event{
		Version: 1, Op: OpDelete, Dataset: "fr", TS: mustTS(),
		BBox: &BBox{X1: 2.2, Y1: 48.8, X2: 2.5, Y2: 48.9, SRID: "EPSG:4326"},
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	bb, ok := ev.Area()
	if !ok || bb != (model.BBox{MinLon: 2.2, MinLat: 48.8, MaxLon: 2.5, MaxLat: 48.9}) {
		t.Fatalf("area=%+v ok=%v", bb, ok)
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	base := func() Event {
		return Event{Version: 1, Op: OpUpdate, Dataset: "fr", TS: mustTS()}
	}
	cases := map[string]func(*Event){
		"version":        func(e *Event) { e.Version = 2 },
		"op":             func(e *Event) { e.Op = "insert" },
		"ts":             func(e *Event) { e.TS = time.Time{} },
		"dataset spaces": func(e *Event) { e.Dataset = " fr" },
		"srid":           func(e *Event) { e.BBox = &BBox{X1: 1, Y1: 1, X2: 2, Y2: 2, SRID: "EPSG:3857"} },
		"lon range":      func(e *Event) { e.BBox = &BBox{X1: 1, Y1: 1, X2: 181, Y2: 2} },
		"lat range":      func(e *Event) { e.BBox = &BBox{X1: 1, Y1: -91, X2: 2, Y2: 2} },
		"not increasing": func(e *Event) { e.BBox = &BBox{X1: 11, Y1: 55, X2: 11, Y2: 56} },
	}
	for name, mut := range cases {
		ev := base()
		mut(&ev)
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_DecodeWire(t *testing.T) {
	raw := `{"version":1,"op":"update","dataset":"fr","ts":"2025-10-26T12:30:45Z","bbox":{"x1":2.2,"y1":48.8,"x2":2.5,"y2":48.9}}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !ev.TS.Equal(mustTS()) || ev.BBox == nil || ev.BBox.X2 != 2.5 {
		t.Fatalf("ev=%+v", ev)
	}
}
