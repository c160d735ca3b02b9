package dynip

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudflare/cloudflare-go"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// DefaultInterval is the tick period of the polling loop.
const DefaultInterval = 60 * time.Second

// New creates an Engine for account.
//
// Without options the Engine resolves the IP with a DNSResolver for DefaultMyIPHost,
// talks to the default update endpoints, and discards log output.
// Options are applied in order; WithLogger and UsingHTTPClient reach every dependency
// that accepts them regardless of where they appear.
func New(account Account, options ...clientOption) (*Engine, error) {
	if account == nil {
		return nil, errors.New("dynip.New: account cannot be nil")
	}
	e := &Engine{
		account:      account,
		resolver:     &DNSResolver{Host: DefaultMyIPHost},
		api:          &UpdateClient{},
		observer:     nopObserver{},
		clock:        MonotonicClock(),
		interval:     DefaultInterval,
		installerDir: filepath.Join(os.TempDir(), "dynip"),
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	var s settings
	for i, opt := range options {
		if err := opt(e, &s); err != nil {
			return nil, fmt.Errorf("dynip.New: option %d returned an error: %s", i, err)
		}
	}
	if e.mirror != nil && e.mirrorDomain == "" {
		return nil, errors.New("dynip.New: mirror domain cannot be empty")
	}

	// propagate to dependencies regardless of the order options were given in
	e.logger = s.logger
	if e.logger == nil {
		e.logger = discard
	}
	withLogger(e, e.logger)
	if s.httpClient != nil {
		withHTTPClient(e, s.httpClient)
	}
	return e, nil
}

// settings collects options that are applied to dependencies after all options ran.
type settings struct {
	logger     *slog.Logger
	httpClient *http.Client
}

type clientOption func(*Engine, *settings) error

func UsingResolver(resolver Resolver) clientOption {
	return func(e *Engine, _ *settings) error {
		if resolver == nil {
			resolver = &DNSResolver{Host: DefaultMyIPHost}
		}
		e.resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) clientOption {
	return func(e *Engine, _ *settings) (err error) {
		e.resolver, err = WebResolver(serviceURL...)
		return err
	}
}

// UsingDNSResolver looks up host through servers instead of the defaults.
// Empty arguments keep DefaultMyIPHost and the system nameservers.
func UsingDNSResolver(host string, servers ...string) clientOption {
	return func(e *Engine, _ *settings) error {
		e.resolver = &DNSResolver{Host: host, Servers: servers}
		return nil
	}
}

func UsingUpdateAPI(api UpdateAPI) clientOption {
	return func(e *Engine, _ *settings) error {
		if api == nil {
			return errors.New("update API cannot be nil")
		}
		e.api = api
		return nil
	}
}

// UsingCloudflare mirrors every confirmed address into the A records of domain on Cloudflare.
func UsingCloudflare(token, domain string) clientOption {
	return func(e *Engine, _ *settings) (err error) {
		if e.mirror, err = newCloudflareMirror(token); err != nil {
			return fmt.Errorf("dynip.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		e.mirrorDomain = domain
		return nil
	}
}

// UsingMirror sends every confirmed address to p for domain.
// A nil p disables mirroring.
func UsingMirror(p Provider, domain string) clientOption {
	return func(e *Engine, _ *settings) error {
		e.mirror, e.mirrorDomain = p, domain
		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(_ *Engine, s *settings) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		s.httpClient = httpclient
		return nil
	}
}

func WithLogger(logger *slog.Logger) clientOption {
	return func(_ *Engine, s *settings) error {
		s.logger = logger
		return nil
	}
}

func WithObserver(o Observer) clientOption {
	return func(e *Engine, _ *settings) error {
		if o == nil {
			o = nopObserver{}
		}
		e.observer = o
		return nil
	}
}

// WithClock replaces the millisecond clock used for the update and software check timers.
func WithClock(c Clock) clientOption {
	return func(e *Engine, _ *settings) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		e.clock = c
		return nil
	}
}

// WithInterval sets the tick period. Values below one minute are raised to one minute.
func WithInterval(d time.Duration) clientOption {
	return func(e *Engine, _ *settings) error {
		if d < 1*time.Minute {
			d = 1 * time.Minute
		}
		e.interval = d
		return nil
	}
}

// WithVersion sets the version reported in software update checks.
func WithVersion(v string) clientOption {
	return func(e *Engine, _ *settings) error {
		e.version = v
		return nil
	}
}

// WithInstallerDir sets where downloaded installers are kept.
// The directory is emptied of files whenever no update is available, so it should not be shared.
func WithInstallerDir(dir string) clientOption {
	return func(e *Engine, _ *settings) error {
		if dir == "" {
			return errors.New("installer dir cannot be empty")
		}
		e.installerDir = dir
		return nil
	}
}

func withLogger(e *Engine, logger *slog.Logger) {
	type setLogger interface {
		SetLogger(*slog.Logger)
	}
	if r, ok := e.resolver.(setLogger); ok {
		r.SetLogger(logger)
	}
	if a, ok := e.api.(setLogger); ok {
		a.SetLogger(logger)
	}
	if p, ok := e.mirror.(setLogger); ok {
		p.SetLogger(logger)
	}
}

func withHTTPClient(e *Engine, httpclient *http.Client) {
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}
	if r, ok := e.resolver.(setHTTPClient); ok {
		r.SetHTTPClient(httpclient)
	}
	if a, ok := e.api.(setHTTPClient); ok {
		a.SetHTTPClient(httpclient)
	}
	switch p := e.mirror.(type) {
	case *cloudflareMirror:
		cloudflare.HTTPClient(httpclient)(p.api)
	case setHTTPClient:
		p.SetHTTPClient(httpclient)
	}
}
