package dynip_test

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Travis-Britz/dynip"
)

type account struct {
	allowed  bool
	token    string
	hostname string
}

func (a account) CanSendIPUpdates() bool { return a.allowed }
func (a account) Token() string          { return a.token }
func (a account) Hostname() string       { return a.hostname }
func (a account) UserName() string       { return "user" }
func (a account) UniqueID() string       { return "ABCDEF" }

var signedIn = account{allowed: true, token: "DCE15D01E430D8C96D3920FB8F64185C", hostname: "home"}

type fakeAPI struct {
	mu        sync.Mutex
	reply     string
	sendErr   error
	sends     []string
	checks    []dynip.VersionCheck
	download  string
	checkErr  error
	downloads []string
}

func (f *fakeAPI) SendIPUpdate(_ context.Context, token, hostname string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, hostname)
	return f.reply, f.sendErr
}

func (f *fakeAPI) CheckForUpdate(_ context.Context, c dynip.VersionCheck) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, c)
	return f.download, f.checkErr
}

func (f *fakeAPI) DownloadUpdate(_ context.Context, url, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, url)
	return filepath.Join(dir, filepath.Base(url)), nil
}

func (f *fakeAPI) counts() (sends, checks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends), len(f.checks)
}

type recorder struct {
	mu       sync.Mutex
	changed  []dynip.IP
	checked  []int
	results  []dynip.UpdateResponse
	versions []string
}

func (r *recorder) OnIPChanged(ip dynip.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, ip)
}

func (r *recorder) OnIPChecked(m int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checked = append(r.checked, m)
}

func (r *recorder) OnIPUpdateResult(u dynip.UpdateResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, u)
}

func (r *recorder) OnNewVersionAvailable(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions = append(r.versions, p)
}

// fakeClock is a millisecond clock advanced by hand.
type fakeClock struct{ ms atomic.Uint64 }

func (c *fakeClock) now() uint64             { return c.ms.Load() }
func (c *fakeClock) advance(d time.Duration) { c.ms.Add(uint64(d.Milliseconds())) }
func (c *fakeClock) set(ms uint64)           { c.ms.Store(ms) }

type mutableResolver struct{ ip atomic.Value }

func newMutableResolver(addr string) *mutableResolver {
	r := &mutableResolver{}
	r.set(addr)
	return r
}

func (r *mutableResolver) set(addr string) {
	r.ip.Store(dynip.Resolved(netip.MustParseAddr(addr)))
}

func (r *mutableResolver) Resolve(context.Context) dynip.IP { return r.ip.Load().(dynip.IP) }

func newEngine(t *testing.T, acct dynip.Account, api dynip.UpdateAPI, res dynip.Resolver, clock *fakeClock, obs dynip.Observer) *dynip.Engine {
	t.Helper()
	e, err := dynip.New(acct,
		dynip.UsingResolver(res),
		dynip.UsingUpdateAPI(api),
		dynip.WithClock(clock.now),
		dynip.WithObserver(obs),
		dynip.WithVersion("1.0"),
		dynip.WithInstallerDir(t.TempDir()),
	)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return e
}

func TestNewRequiresAccount(t *testing.T) {
	if _, err := dynip.New(nil); err == nil {
		t.Fatalf("Expected error for nil account; got err == nil")
	}
}

func TestNewRejectsMirrorWithoutDomain(t *testing.T) {
	if _, err := dynip.New(signedIn, dynip.UsingMirror(&fakeMirror{}, "")); err == nil {
		t.Fatalf("Expected error for empty mirror domain; got err == nil")
	}
}

func TestFirstTickSendsUpdate(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	rec := &recorder{}
	clock := &fakeClock{}
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), clock, rec)

	e.RunOnce(context.Background())

	if len(rec.changed) != 1 || rec.changed[0].String() != "203.0.113.5" {
		t.Fatalf("Expected one ip change to 203.0.113.5; got %v", rec.changed)
	}
	if len(rec.results) != 1 {
		t.Fatalf("Expected one update result; got %d", len(rec.results))
	}
	if expected, got := dynip.UpdateOK, rec.results[0].Result; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
	if expected, got := "home", api.sends[0]; expected != got {
		t.Fatalf("Expected update for %q; got %q", expected, got)
	}
	if got := e.CurrentIP(); got.String() != "203.0.113.5" {
		t.Fatalf("Expected current ip 203.0.113.5; got %q", got)
	}
	if got := e.State(); got != dynip.Idle {
		t.Fatalf("Expected %q; got %q", dynip.Idle, got)
	}
}

func TestUnchangedIPWaitsForInterval(t *testing.T) {
	api := &fakeAPI{reply: "nochg 203.0.113.5"}
	rec := &recorder{}
	clock := &fakeClock{}
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), clock, rec)

	e.RunOnce(context.Background())
	clock.advance(time.Hour)
	e.RunOnce(context.Background())
	if sends, _ := api.counts(); sends != 1 {
		t.Fatalf("Expected 1 update before the interval passed; got %d", sends)
	}
	if expected, got := []int{60}, rec.checked; len(got) != 1 || got[0] != expected[0] {
		t.Fatalf("Expected elapsed refresh %v; got %v", expected, got)
	}

	// exactly the interval is not yet due
	clock.advance(2 * time.Hour)
	e.RunOnce(context.Background())
	if sends, _ := api.counts(); sends != 1 {
		t.Fatalf("Expected 1 update at exactly the interval; got %d", sends)
	}

	clock.advance(time.Millisecond)
	e.RunOnce(context.Background())
	if sends, _ := api.counts(); sends != 2 {
		t.Fatalf("Expected 2 updates after the interval; got %d", sends)
	}
}

func TestIPChangeForcesUpdate(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	clock := &fakeClock{}
	res := newMutableResolver("203.0.113.5")
	e := newEngine(t, signedIn, api, res, clock, nil)

	e.RunOnce(context.Background())
	clock.advance(time.Minute)
	res.set("203.0.113.9")
	e.RunOnce(context.Background())

	if sends, _ := api.counts(); sends != 2 {
		t.Fatalf("Expected the ip change to force a second update; got %d updates", sends)
	}
}

func TestGatedAccountSendsNothing(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	rec := &recorder{}
	clock := &fakeClock{}
	e := newEngine(t, account{allowed: false}, api, newMutableResolver("203.0.113.5"), clock, rec)

	e.RunOnce(context.Background())
	clock.advance(4 * time.Hour)
	e.RunOnce(context.Background())

	if sends, _ := api.counts(); sends != 0 {
		t.Fatalf("Expected no updates while gated; got %d", sends)
	}
	if got := e.MinutesSinceLastUpdate(); got != -1 {
		t.Fatalf("Expected -1 minutes while gated; got %d", got)
	}
	if len(rec.checked) != 1 || rec.checked[0] != -1 {
		t.Fatalf("Expected elapsed refresh of -1; got %v", rec.checked)
	}
}

func TestForcedUpdateWaitsForGate(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	clock := &fakeClock{}
	acct := &toggleAccount{}
	e := newEngine(t, acct, api, newMutableResolver("203.0.113.5"), clock, nil)

	e.RunOnce(context.Background())
	acct.allowed.Store(true)
	e.RunOnce(context.Background())

	if sends, _ := api.counts(); sends != 1 {
		t.Fatalf("Expected the pending forced update once sending is allowed; got %d updates", sends)
	}
}

type toggleAccount struct{ allowed atomic.Bool }

func (a *toggleAccount) CanSendIPUpdates() bool { return a.allowed.Load() }
func (a *toggleAccount) Token() string          { return signedIn.token }
func (a *toggleAccount) Hostname() string       { return signedIn.hostname }
func (a *toggleAccount) UserName() string       { return "user" }
func (a *toggleAccount) UniqueID() string       { return "ABCDEF" }

func TestForceSendIPUpdateResetsElapsed(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	clock := &fakeClock{}
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), clock, nil)

	e.RunOnce(context.Background())
	clock.advance(90 * time.Minute)
	if got := e.MinutesSinceLastUpdate(); got != 90 {
		t.Fatalf("Expected 90 minutes; got %d", got)
	}
	e.ForceSendIPUpdate()
	if got := e.MinutesSinceLastUpdate(); got != 0 {
		t.Fatalf("Expected elapsed time to reset on force; got %d", got)
	}
	e.RunOnce(context.Background())
	if sends, _ := api.counts(); sends != 2 {
		t.Fatalf("Expected forced update to be sent; got %d updates", sends)
	}
}

func TestClockWraparound(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	clock := &fakeClock{}
	clock.set(1 << 32)
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), clock, nil)

	e.RunOnce(context.Background())
	clock.set(10)
	if got := e.MinutesSinceLastUpdate(); got != 0 {
		t.Fatalf("Expected 0 minutes after the clock went back; got %d", got)
	}
	e.RunOnce(context.Background())
	if sends, _ := api.counts(); sends != 1 {
		t.Fatalf("Expected no update after the clock went back; got %d updates", sends)
	}
}

func TestSoftwareCheck(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	rec := &recorder{}
	clock := &fakeClock{}
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), clock, rec)

	e.RunOnce(context.Background())
	if _, checks := api.counts(); checks != 0 {
		t.Fatalf("Expected no software check before it is due; got %d", checks)
	}

	e.ForceSoftwareUpdateCheck()
	e.RunOnce(context.Background())
	if _, checks := api.counts(); checks != 1 {
		t.Fatalf("Expected a forced software check; got %d", checks)
	}
	c := api.checks[0]
	if c.Version != "1.0" || c.Type != dynip.CheckVersion || c.UniqueID != "ABCDEF" || c.UserName != "user" {
		t.Fatalf("Unexpected version check %+v", c)
	}

	clock.advance(24*time.Hour + time.Millisecond)
	api.download = "https://example.com/dl/dynip-1.1.tar.gz"
	e.RunOnce(context.Background())
	if len(rec.versions) != 1 || filepath.Base(rec.versions[0]) != "dynip-1.1.tar.gz" {
		t.Fatalf("Expected new version notification; got %v", rec.versions)
	}
}

func TestNoUpgradePurgesInstallers(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "dynip-0.9.tar.gz")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{}
	clock := &fakeClock{}
	e, err := dynip.New(signedIn,
		dynip.UsingResolver(newMutableResolver("203.0.113.5")),
		dynip.UsingUpdateAPI(api),
		dynip.WithClock(clock.now),
		dynip.WithInstallerDir(dir),
	)
	if err != nil {
		t.Fatal(err)
	}
	e.ForceSoftwareUpdateCheck()
	e.RunOnce(context.Background())
	if _, err := os.Stat(old); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected old installer to be removed; got %v", err)
	}
}

func TestFailedCheckKeepsInstallers(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "dynip-0.9.tar.gz")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{checkErr: dynip.ErrMalformedResponse}
	clock := &fakeClock{}
	e, err := dynip.New(signedIn,
		dynip.UsingResolver(newMutableResolver("203.0.113.5")),
		dynip.UsingUpdateAPI(api),
		dynip.WithClock(clock.now),
		dynip.WithInstallerDir(dir),
	)
	if err != nil {
		t.Fatal(err)
	}
	e.ForceSoftwareUpdateCheck()
	e.RunOnce(context.Background())
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("Expected installer to survive a failed check; got %v", err)
	}
}

func TestTransportFailureIsSilent(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("connection refused")}
	rec := &recorder{}
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), &fakeClock{}, rec)

	e.RunOnce(context.Background())
	if len(rec.results) != 0 {
		t.Fatalf("Expected no update result on transport failure; got %v", rec.results)
	}
}

type fakeMirror struct {
	mu     sync.Mutex
	domain string
	addrs  []netip.Addr
}

func (m *fakeMirror) SetDNSRecords(_ context.Context, domain string, addrs []netip.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domain, m.addrs = domain, addrs
	return nil
}

func TestMirrorReceivesConfirmedAddress(t *testing.T) {
	api := &fakeAPI{reply: "good 198.51.100.7"}
	mirror := &fakeMirror{}
	e, err := dynip.New(signedIn,
		dynip.UsingResolver(newMutableResolver("203.0.113.5")),
		dynip.UsingUpdateAPI(api),
		dynip.UsingMirror(mirror, "home.example.com"),
		dynip.WithClock((&fakeClock{}).now),
		dynip.WithInstallerDir(t.TempDir()),
	)
	if err != nil {
		t.Fatal(err)
	}
	e.RunOnce(context.Background())
	if mirror.domain != "home.example.com" || len(mirror.addrs) != 1 {
		t.Fatalf("Expected mirror update for home.example.com; got %q %v", mirror.domain, mirror.addrs)
	}
	if expected, got := netip.MustParseAddr("198.51.100.7"), mirror.addrs[0]; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
}

func TestMirrorSkippedOnFailure(t *testing.T) {
	api := &fakeAPI{reply: "!yours 203.0.113.5"}
	mirror := &fakeMirror{}
	e, err := dynip.New(signedIn,
		dynip.UsingResolver(newMutableResolver("203.0.113.5")),
		dynip.UsingUpdateAPI(api),
		dynip.UsingMirror(mirror, "home.example.com"),
		dynip.WithInstallerDir(t.TempDir()),
	)
	if err != nil {
		t.Fatal(err)
	}
	e.RunOnce(context.Background())
	if mirror.addrs != nil {
		t.Fatalf("Expected no mirror update for a rejected update; got %v", mirror.addrs)
	}
}

func TestStartForceStop(t *testing.T) {
	api := &fakeAPI{reply: "good 203.0.113.5"}
	events := dynip.NewEventChannel(16)
	clock := &fakeClock{}
	e := newEngine(t, signedIn, api, newMutableResolver("203.0.113.5"), clock, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %s", err)
	}
	if err := e.Start(ctx); !errors.Is(err, dynip.ErrAlreadyStarted) {
		t.Fatalf("Expected %q; got %v", dynip.ErrAlreadyStarted, err)
	}

	expect := func(kind dynip.EventKind) dynip.Event {
		t.Helper()
		select {
		case ev := <-events.Events():
			if ev.Kind != kind {
				t.Fatalf("Expected %q event; got %q", kind, ev.Kind)
			}
			return ev
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for %q event", kind)
		}
		return dynip.Event{}
	}

	expect(dynip.EventIPChanged)
	if ev := expect(dynip.EventIPUpdateResult); ev.Update.Result != dynip.UpdateOK {
		t.Fatalf("Expected %q; got %q", dynip.UpdateOK, ev.Update.Result)
	}

	// the loop ticks once a minute; forcing wakes it immediately
	e.ForceSendIPUpdate()
	expect(dynip.EventIPChecked)
	expect(dynip.EventIPUpdateResult)

	e.Stop(true)
	if got := e.State(); got != dynip.Stopped {
		t.Fatalf("Expected %q; got %q", dynip.Stopped, got)
	}
	if err := e.Start(ctx); !errors.Is(err, dynip.ErrStopped) {
		t.Fatalf("Expected %q; got %v", dynip.ErrStopped, err)
	}
}

func TestStopBeforeStart(t *testing.T) {
	e := newEngine(t, signedIn, &fakeAPI{}, newMutableResolver("203.0.113.5"), &fakeClock{}, nil)
	e.Stop(true)
	if got := e.State(); got != dynip.Stopped {
		t.Fatalf("Expected %q; got %q", dynip.Stopped, got)
	}
}
