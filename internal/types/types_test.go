package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyJSON(t *testing.T) {
	cases := []struct {
		in   string
		want Money
	}{
		{`10`, 1000},
		{`10.5`, 1050},
		{`"5.00"`, 500},
		{`0.015`, 2},
		{`0`, 0},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if m != tc.want {
			t.Errorf("unmarshal %s = %d, want %d", tc.in, m, tc.want)
		}
	}

	out, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 2500})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"total":25.00}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestMoneyRejectsGarbage(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`"ten"`), &m); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}

func TestMoneyTimes(t *testing.T) {
	if got := Money(1000).Times(2) + Money(500); got.String() != "25.00" {
		t.Fatalf("got %s, want 25.00", got)
	}
}

func TestLocationValidate(t *testing.T) {
	cases := []struct {
		loc Location
		ok  bool
	}{
		{Location{Lat: 1, Lng: 1}, true},
		{Location{Lat: -90, Lng: 180}, true},
		{Location{Lat: 90.1, Lng: 0}, false},
		{Location{Lat: 0, Lng: -180.5}, false},
	}
	for _, tc := range cases {
		err := tc.loc.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("Validate(%+v) err=%v, want ok=%v", tc.loc, err, tc.ok)
		}
	}
	if s := (Location{Lat: 25.033, Lng: 121.565}).LatLngString(); s != "25.033,121.565" {
		t.Errorf("LatLngString = %q", s)
	}
}
