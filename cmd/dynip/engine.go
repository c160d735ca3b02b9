package main

import (
	"net/http"
	"time"

	"github.com/Travis-Britz/dynip"
	"github.com/Travis-Britz/dynip/internal/config"
	"github.com/Travis-Britz/dynip/internal/prefs"
	"github.com/Travis-Britz/dynip/internal/version"
)

// pausable gates IP updates on the send_updates preference in addition
// to the account checks.
type pausable struct{ *prefs.Prefs }

func (p pausable) CanSendIPUpdates() bool {
	return p.SendUpdates() && p.Prefs.CanSendIPUpdates()
}

func (a *app) why() string {
	if !a.prefs.SendUpdates() {
		return "updates are disabled; run \"dynip enable\""
	}
	return a.prefs.Why()
}

func (a *app) engine(observer dynip.Observer) (*dynip.Engine, error) {
	cfg := a.cfg

	resolver := dynip.UsingDNSResolver(cfg.MyIPHost, cfg.Nameservers...)
	switch cfg.Resolver {
	case config.ResolverWeb:
		resolver = dynip.UsingWebResolver(cfg.WebResolvers...)
	case config.ResolverStatic:
		r, err := dynip.FromString(cfg.StaticIP)
		if err != nil {
			return nil, err
		}
		resolver = dynip.UsingResolver(r)
	}

	mirror := dynip.UsingMirror(nil, "")
	if cfg.Mirror.Enabled() {
		mirror = dynip.UsingCloudflare(cfg.Mirror.Token, cfg.Mirror.Domain)
	}

	return dynip.New(pausable{a.prefs},
		resolver,
		mirror,
		dynip.UsingUpdateAPI(&dynip.UpdateClient{
			UpdateURL: cfg.UpdateURL,
			CheckURL:  cfg.UpdateCheckURL,
			APIKey:    cfg.APIKey,
			Product:   cfg.Product,
		}),
		dynip.UsingHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		dynip.WithLogger(a.logger),
		dynip.WithObserver(observer),
		dynip.WithInterval(cfg.Interval),
		dynip.WithVersion(version.Version),
		dynip.WithInstallerDir(cfg.InstallerDir()),
	)
}

func (a *app) accountClient() *dynip.AccountClient {
	c := &dynip.AccountClient{URL: a.cfg.APIURL, APIKey: a.cfg.APIKey}
	c.SetLogger(a.logger)
	c.SetHTTPClient(&http.Client{Timeout: 30 * time.Second})
	return c
}
