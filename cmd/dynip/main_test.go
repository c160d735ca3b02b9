package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Travis-Britz/dynip"
	"github.com/Travis-Britz/dynip/internal/history"
	"github.com/Travis-Britz/dynip/internal/prefs"
)

func TestStdinChooser(t *testing.T) {
	nets := []dynip.NetworkInfo{
		{ID: "668260", Label: "home", Dynamic: true},
		{ID: "668259", Label: "office", Dynamic: true},
	}
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"2\n", "668259", true},
		{" 1 \n", "668260", true},
		{"1", "668260", true},
		{"\n", "", false},
		{"", "", false},
		{"0\n", "", false},
		{"3\n", "", false},
		{"office\n", "", false},
	}
	for _, tt := range tests {
		c := stdinChooser{in: bufio.NewReader(strings.NewReader(tt.input))}
		n, ok := c.ChooseNetwork(context.Background(), nets)
		if ok != tt.ok || n.ID != tt.expected {
			t.Fatalf("input %q: Expected %q, %v; got %q, %v", tt.input, tt.expected, tt.ok, n.ID, ok)
		}
	}
}

func signedInPrefs(t *testing.T) *prefs.Prefs {
	t.Helper()
	p, err := prefs.Load(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	p.SetAccount("user", "TOKEN")
	p.ApplySelection(dynip.Selection{State: dynip.NetworksOK, Hostname: "home", NetworkID: "668260"})
	return p
}

func TestPausable(t *testing.T) {
	p := signedInPrefs(t)
	if !(pausable{p}).CanSendIPUpdates() {
		t.Fatalf("Expected updates to be allowed; got %q", p.Why())
	}
	p.SetSendUpdates(false)
	if (pausable{p}).CanSendIPUpdates() {
		t.Fatalf("Expected disabled updates to gate the engine")
	}
	p.SetSendUpdates(true)
	p.SignOut()
	if (pausable{p}).CanSendIPUpdates() {
		t.Fatalf("Expected a signed out account to gate the engine")
	}
}

func TestConfirmedIP(t *testing.T) {
	resolved := dynip.Resolved(netip.MustParseAddr("203.0.113.9"))
	echoed := dynip.UpdateResponse{Result: dynip.UpdateOK, Addr: netip.MustParseAddr("203.0.113.5")}
	tests := []struct {
		name     string
		r        dynip.UpdateResponse
		current  dynip.IP
		expected string
	}{
		{"echoed", echoed, resolved, "203.0.113.5"},
		{"resolved", dynip.UpdateResponse{Result: dynip.UpdateOK}, resolved, "203.0.113.9"},
		{"resolve error", dynip.UpdateResponse{Result: dynip.UpdateOK}, dynip.ResolveError, ""},
		{"not using provider", dynip.UpdateResponse{Result: dynip.UpdateOK}, dynip.NotUsingProvider, ""},
	}
	for _, tt := range tests {
		if got := confirmedIP(tt.r, tt.current); got != tt.expected {
			t.Fatalf("%s: Expected %q; got %q", tt.name, tt.expected, got)
		}
	}
}

func TestDaemonRecordsAcceptedUpdates(t *testing.T) {
	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer hist.Close()

	p := signedInPrefs(t)
	p.SetSendUpdates(false)
	resolver := dynip.ResolverFunc(func(context.Context) dynip.IP { return dynip.ResolveError })
	e, err := dynip.New(p, dynip.UsingResolver(resolver))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	e.RunOnce(context.Background())

	d := &daemon{
		app:  &app{prefs: p, logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
		eng:  e,
		hist: hist,
	}
	ctx := context.Background()
	d.updated(ctx, dynip.ParseUpdateResponse("good 203.0.113.5"))
	d.updated(ctx, dynip.ParseUpdateResponse("badauth"))
	d.updated(ctx, dynip.ParseUpdateResponse("!yours"))

	got, err := hist.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %s", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 recorded updates; got %d", len(got))
	}
	if got[0].IP != "" || got[0].Result != dynip.UpdateNotYours.String() {
		t.Fatalf("Expected an unconfirmed not-yours entry; got %+v", got[0])
	}
	if got[1].IP != "203.0.113.5" || got[1].Hostname != "home" || got[1].Result != dynip.UpdateOK.String() {
		t.Fatalf("Expected the accepted update; got %+v", got[1])
	}
}
