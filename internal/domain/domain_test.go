package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRecord_RoundTrip(t *testing.T) {
	full := make([]float64, HistoryLimit)
	for i := range full {
		full[i] = float64(i) * 1.25
	}
	cases := []HostSnapshot{
		{ID: "10.0.0.1", Active: true, History: []float64{}},
		{ID: "example.com", Active: false, History: []float64{12.5, 0, 9.125}},
		{ID: "h", Active: true, History: full},
	}
	for _, want := range cases {
		s, err := EncodeRecord(want)
		if err != nil {
			t.Fatalf("encode %s: %v", want.ID, err)
		}
		got, err := DecodeRecord(s)
		if err != nil {
			t.Fatalf("decode %s: %v", want.ID, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
		}
	}
}

func TestEncodeRecord_NilHistoryWritesEmptyArray(t *testing.T) {
	s, err := EncodeRecord(HostSnapshot{ID: "a", Active: true})
	if err != nil {
		t.Fatal(err)
	}
	if s != `{"id":"a","active":true,"history":[]}` {
		t.Fatalf("unexpected encoding: %s", s)
	}
}

func TestDecodeRecord_Lenient(t *testing.T) {
	got, err := DecodeRecord(`{"ip":"1.2.3.4","history":[1.5,"x",null,2]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := HostSnapshot{ID: "1.2.3.4", Active: true, History: []float64{1.5, 0, 0, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %+v got %+v", want, got)
	}
}

func TestDecodeRecord_EmptyIDFallsBackToIP(t *testing.T) {
	got, err := DecodeRecord(`{"id":" ","ip":"10.0.0.9","active":false}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "10.0.0.9" || got.Active {
		t.Fatalf("unexpected host %+v", got)
	}
	if got, _ := DecodeRecord(`{"id":"a","ip":"b"}`); got.ID != "a" {
		t.Fatalf("id should win over ip, got %q", got.ID)
	}
}

func TestDecodeRecord_TrimsLongHistory(t *testing.T) {
	hist := make([]float64, HistoryLimit+5)
	for i := range hist {
		hist[i] = float64(i + 1)
	}
	b, _ := json.Marshal(map[string]any{"id": "a", "active": false, "history": hist})
	got, err := DecodeRecord(string(b))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.History) != HistoryLimit {
		t.Fatalf("want %d samples, got %d", HistoryLimit, len(got.History))
	}
	if got.History[0] != 6 || got.History[HistoryLimit-1] != float64(HistoryLimit+5) {
		t.Fatalf("oldest samples should be evicted, got first=%v last=%v", got.History[0], got.History[HistoryLimit-1])
	}
}

func TestDecodeRecord_Malformed(t *testing.T) {
	for _, in := range []string{"", "not json", `{"active":true}`, `{"id":"  "}`, `{"id":"","ip":""}`, `[1,2]`} {
		if _, err := DecodeRecord(in); !errors.Is(err, ErrMalformedRecord) {
			t.Fatalf("DecodeRecord(%q) err=%v, want ErrMalformedRecord", in, err)
		}
	}
}

func TestOutcome_JSONRoundTrip(t *testing.T) {
	lat := 12.5
	want := Outcome{Online: true, LatencyMS: &lat, Reason: "ok", CheckedAt: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Outcome
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Online != want.Online || got.LatencyMS == nil || *got.LatencyMS != lat || !got.CheckedAt.Equal(want.CheckedAt) {
		t.Fatalf("mismatch after round-trip:\nwant=%+v\ngot =%+v", want, got)
	}
}

func TestNormalizeInterval(t *testing.T) {
	cases := map[int]int{-5: DefaultIntervalSeconds, 0: DefaultIntervalSeconds, 1: 1, 60: 60}
	for in, want := range cases {
		if got := NormalizeInterval(in); got != want {
			t.Fatalf("NormalizeInterval(%d)=%d want %d", in, got, want)
		}
	}
}
