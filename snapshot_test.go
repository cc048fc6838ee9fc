package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/norun9/gomarketplace/cartservice/cart"
	"github.com/norun9/gomarketplace/cartservice/cartstore"
)

func setupBunt(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart.db")
	t.Setenv("CART_CONFIG", "")
	t.Setenv("CART_STORAGE", cartstore.BackendBunt)
	t.Setenv("CART_DB_PATH", path)
	t.Setenv("CART_STORAGE_KEY", "test:cart")
	t.Setenv("LOG_LEVEL", "error")

	if payload != "" {
		log, _ := test.NewNullLogger()
		db := cartstore.NewBuntCartStore(path, log)
		ctx := context.Background()
		if err := db.Initialize(ctx); err != nil {
			t.Fatal(err)
		}
		if err := db.SetItem(ctx, "test:cart", payload); err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSnapshotShow(t *testing.T) {
	setupBunt(t, `[{"id":"p1","title":"Shirt","price":10,"quantity":2},{"id":"p1","quantity":1},{"id":"p2","quantity":0}]`)

	out, err := runCmd(t, "snapshot", "show")
	if err != nil {
		t.Fatal(err)
	}
	var got []cart.Product
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	want := []cart.Product{{ID: "p1", Title: "Shirt", Price: 10, Quantity: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot show (-want +got):\n%s", diff)
	}
}

func TestSnapshotShowEmpty(t *testing.T) {
	setupBunt(t, "")

	out, err := runCmd(t, "snapshot", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("output = %q, want []", out)
	}
}

func TestSnapshotShowMalformed(t *testing.T) {
	setupBunt(t, "{not json")

	if _, err := runCmd(t, "snapshot", "show"); err == nil {
		t.Fatal("expected an error for a malformed snapshot")
	}
}

func TestSnapshotClear(t *testing.T) {
	setupBunt(t, `[{"id":"p1","quantity":1}]`)

	out, err := runCmd(t, "snapshot", "clear")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `removed cart "test:cart"`) {
		t.Errorf("output = %q", out)
	}

	out, err = runCmd(t, "snapshot", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("after clear = %q, want []", out)
	}
}

func TestSnapshotUnknownBackend(t *testing.T) {
	setupBunt(t, "")
	t.Setenv("CART_STORAGE", "etcd")

	if _, err := runCmd(t, "snapshot", "show"); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}
