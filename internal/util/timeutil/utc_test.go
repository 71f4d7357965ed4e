package timeutil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUTCTimeScan(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	src := time.Date(2024, 5, 1, 15, 0, 0, 0, loc)
	var u UTCTime
	if err := u.Scan(src); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if u.UTC().Hour() != 12 || u.UTC().Location() != time.UTC {
		t.Fatalf("bad scanned time: %v", u.UTC())
	}
	if err := u.Scan(42); err == nil {
		t.Fatalf("expected error on scanning int")
	}
}

func TestUTCTimeJSON(t *testing.T) {
	u := UTCTime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2024-05-01T12:30:00Z"` {
		t.Fatalf("bad json: %s", b)
	}
	if u.Add(time.Minute).Compare(u) != 1 {
		t.Fatalf("bad compare")
	}
}
