package cart

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeSnapshotFieldNames(t *testing.T) {
	got, err := EncodeSnapshot([]Product{{ID: "p1", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"id":"p1","title":"Shirt","image_url":"u","price":10,"quantity":1}]`
	if got != want {
		t.Errorf("EncodeSnapshot = %s, want %s", got, want)
	}
}

func TestEncodeSnapshotEmptyCart(t *testing.T) {
	got, err := EncodeSnapshot(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "[]" {
		t.Errorf("EncodeSnapshot(nil) = %s, want []", got)
	}
}

func TestSnapshotRoundTripKeepsOrder(t *testing.T) {
	products := []Product{
		{ID: "p2", Title: "Mug", ImageURL: "m", Price: 4.5, Quantity: 3},
		{ID: "p1", Title: "Shirt", ImageURL: "u", Price: 10, Quantity: 1},
	}
	payload, err := EncodeSnapshot(products)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(products, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshotNormalizes(t *testing.T) {
	payload := `[
		{"id":"a","quantity":2},
		{"id":"zero","quantity":0},
		{"id":"b","quantity":1},
		{"id":"a","quantity":3},
		{"id":"neg","quantity":-1}
	]`
	got, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatal(err)
	}
	want := []Product{{ID: "a", Quantity: 5}, {ID: "b", Quantity: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeSnapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSnapshotEmptyPayloads(t *testing.T) {
	for _, payload := range []string{"", "  ", "null", "[]"} {
		got, err := DecodeSnapshot(payload)
		if err != nil {
			t.Errorf("DecodeSnapshot(%q): %v", payload, err)
			continue
		}
		if len(got) != 0 {
			t.Errorf("DecodeSnapshot(%q) = %v, want empty", payload, got)
		}
	}
}

func TestDecodeSnapshotMalformed(t *testing.T) {
	for _, payload := range []string{"{", `{"id":"p1"}`, `[{"quantity":"two"}]`} {
		_, err := DecodeSnapshot(payload)
		if !errors.Is(err, ErrMalformedSnapshot) {
			t.Errorf("DecodeSnapshot(%q) error = %v, want ErrMalformedSnapshot", payload, err)
		}
	}
}
