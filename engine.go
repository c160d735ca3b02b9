package dynip

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrStopped        = errors.New("engine stopped")
)

// EngineState is what the Engine is doing right now.
type EngineState int32

const (
	Idle EngineState = iota
	Resolving
	Updating
	CheckingUpgrade
	Stopped
)

func (s EngineState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Updating:
		return "updating"
	case CheckingUpgrade:
		return "checking upgrade"
	case Stopped:
		return "stopped"
	default:
		return "invalid"
	}
}

// Engine polls the public IP, sends IP updates, and checks for new software versions.
//
// Every tick resolves the IP. An update is sent when the IP changed, when one was forced,
// or when IPUpdateInterval has passed, and only while the Account allows sending.
// The software check runs when forced or every SoftwareCheckInterval.
//
// Construct it with New.
type Engine struct {
	account      Account
	resolver     Resolver
	api          UpdateAPI
	mirror       Provider
	mirrorDomain string
	observer     Observer
	logger       *slog.Logger
	clock        Clock
	interval     time.Duration
	version      string
	installerDir string

	state atomic.Int32

	// tick serializes RunOnce.
	tick sync.Mutex

	mu            sync.Mutex
	lastIPUpdate  Timer
	lastSWCheck   Timer
	forceIP       bool
	forceSoftware bool
	ip            IP

	started  atomic.Bool
	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start runs the polling loop in a new goroutine.
// The first tick happens immediately and then every interval, or earlier when a Force method is called.
// The loop exits when ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	select {
	case <-e.stop:
		return ErrStopped
	default:
	}
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go e.loop(ctx)
	return nil
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	defer e.state.Store(int32(Stopped))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-e.wake:
		case <-ticker.C:
		}
	}
}

// Stop asks the loop to exit. In-flight network calls are not interrupted.
// When wait is true Stop blocks until the loop goroutine has returned.
func (e *Engine) Stop(wait bool) {
	e.stopOnce.Do(func() { close(e.stop) })
	if !e.started.Load() {
		e.state.Store(int32(Stopped))
		return
	}
	if wait {
		<-e.done
	}
}

// Done is closed when the loop goroutine has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) State() EngineState { return EngineState(e.state.Load()) }

func (e *Engine) setState(s EngineState) { e.state.Store(int32(s)) }

// RunOnce performs a single tick.
// Ticks never overlap; a call made while another tick is running waits for it.
func (e *Engine) RunOnce(ctx context.Context) {
	e.tick.Lock()
	defer e.tick.Unlock()
	defer e.setState(Idle)

	e.setState(Resolving)
	ip := e.resolver.Resolve(ctx)

	e.mu.Lock()
	changed := ip != e.ip
	if changed {
		e.ip = ip
		e.forceIP = true
	}
	e.mu.Unlock()

	if changed {
		e.logger.Info("ip changed", "ip", ip)
		e.observer.OnIPChanged(ip)
	} else {
		e.observer.OnIPChecked(e.MinutesSinceLastUpdate())
	}

	if e.shouldSendUpdate() {
		e.setState(Updating)
		e.sendUpdate(ctx, ip)
	}
	if e.shouldCheckSoftware() {
		e.setState(CheckingUpgrade)
		e.checkSoftware(ctx)
	}
}

// shouldSendUpdate consumes the forced flag and resets the timer when an update is due.
// While sending is not allowed the flag is left set, so the update goes out as soon as it is.
func (e *Engine) shouldSendUpdate() bool {
	if !e.account.CanSendIPUpdates() {
		return false
	}
	now := e.clock()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.forceIP && !e.lastIPUpdate.Due(now, IPUpdateInterval) {
		return false
	}
	e.lastIPUpdate.Reset(now)
	e.forceIP = false
	return true
}

func (e *Engine) shouldCheckSoftware() bool {
	now := e.clock()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.forceSoftware && !e.lastSWCheck.Due(now, SoftwareCheckInterval) {
		return false
	}
	e.lastSWCheck.Reset(now)
	e.forceSoftware = false
	return true
}

func (e *Engine) sendUpdate(ctx context.Context, ip IP) {
	hostname := e.account.Hostname()
	raw, err := e.api.SendIPUpdate(ctx, e.account.Token(), hostname)
	if err != nil {
		e.logger.Warn("ip update failed", "hostname", hostname, "err", err)
		return
	}
	res := ParseUpdateResponse(raw)
	e.logger.Info("ip update sent", "hostname", hostname, "result", res.Result, "response", res.Raw)
	e.observer.OnIPUpdateResult(res)

	if res.Result != UpdateOK || e.mirror == nil {
		return
	}
	addr := res.Addr
	if !addr.Is4() && ip.IsResolved() {
		addr = ip.Addr()
	}
	if !addr.Is4() {
		e.logger.Debug("no confirmed address to mirror")
		return
	}
	if err := e.mirror.SetDNSRecords(ctx, e.mirrorDomain, []netip.Addr{addr}); err != nil {
		e.logger.Warn("mirror update failed", "domain", e.mirrorDomain, "err", err)
		return
	}
	e.logger.Info("mirror updated", "domain", e.mirrorDomain, "addr", addr)
}

func (e *Engine) checkSoftware(ctx context.Context) {
	url, err := e.api.CheckForUpdate(ctx, VersionCheck{
		Version:  e.version,
		Type:     CheckVersion,
		UniqueID: e.account.UniqueID(),
		UserName: e.account.UserName(),
	})
	if err != nil {
		e.logger.Warn("software update check failed", "err", err)
		return
	}
	if url == "" {
		e.logger.Debug("no software update available", "version", e.version)
		if err := removeInstallers(e.installerDir); err != nil {
			e.logger.Warn("unable to remove old installers", "dir", e.installerDir, "err", err)
		}
		return
	}
	path, err := e.api.DownloadUpdate(ctx, url, e.installerDir)
	if err != nil {
		e.logger.Warn("installer download failed", "url", url, "err", err)
		return
	}
	e.logger.Info("new version available", "installer", path)
	e.observer.OnNewVersionAvailable(path)
}

// ForceSendIPUpdate requests an IP update on the next tick and wakes the loop.
// The elapsed time since the last update restarts immediately.
func (e *Engine) ForceSendIPUpdate() {
	now := e.clock()
	e.mu.Lock()
	e.lastIPUpdate.Reset(now)
	e.forceIP = true
	e.mu.Unlock()
	e.signal()
}

// ForceSoftwareUpdateCheck requests a software check on the next tick and wakes the loop.
func (e *Engine) ForceSoftwareUpdateCheck() {
	now := e.clock()
	e.mu.Lock()
	e.lastSWCheck.Reset(now)
	e.forceSoftware = true
	e.mu.Unlock()
	e.signal()
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// MinutesSinceLastUpdate returns the whole minutes since the last IP update,
// or -1 when the account does not allow sending updates.
func (e *Engine) MinutesSinceLastUpdate() int {
	if !e.account.CanSendIPUpdates() {
		return -1
	}
	now := e.clock()
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.lastIPUpdate.Elapsed(now) / time.Minute)
}

// CurrentIP returns the IP observed by the most recent tick.
func (e *Engine) CurrentIP() IP {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ip
}
