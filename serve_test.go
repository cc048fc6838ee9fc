package main

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/norun9/gomarketplace/cartservice/cartstore"
	"github.com/norun9/gomarketplace/cartservice/config"
	"github.com/norun9/gomarketplace/cartservice/logging"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Storage = cartstore.BackendLocal
	cfg.GRPCPort = "0"
	cfg.HTTPPort = "0"
	return cfg
}

func TestServeFailsWhenGRPCPortBusy(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg := testConfig()
	cfg.GRPCPort = strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg, logging.NewWithOutput("error", io.Discard)) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "listen on") {
			t.Fatalf("serve = %v, want a listen error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running after the gRPC listener failed")
	}
}

func TestServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, testConfig(), logging.NewWithOutput("error", io.Discard)) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve = %v, want a clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
