package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Travis-Britz/dynip"
	"github.com/Travis-Britz/dynip/internal/history"
	"github.com/spf13/cobra"
)

func runCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the public IP and send updates until interrupted",
		Long: `Watch the public IP and send updates until interrupted.

SIGHUP reloads the prefs file and forces an IP update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			hist, err := history.Open(a.cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer hist.Close()

			events := dynip.NewEventChannel(16)
			e, err := a.engine(events)
			if err != nil {
				return err
			}
			if why := a.why(); why != "" {
				a.logger.Warn("ip updates are paused", "reason", why)
			}

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			e.ForceSoftwareUpdateCheck()
			if err := e.Start(ctx); err != nil {
				return err
			}
			d := &daemon{app: a, eng: e, hist: hist}
			for {
				select {
				case ev := <-events.Events():
					d.handle(ctx, ev)
				case <-hup:
					d.reload()
				case <-e.Done():
					a.logger.Info("stopped")
					return nil
				}
			}
		},
	}
}

type daemon struct {
	*app
	eng  *dynip.Engine
	hist *history.Store
}

// reload picks up prefs saved by other dynip commands and forces an update
// so a new network selection takes effect right away.
func (d *daemon) reload() {
	if err := d.prefs.Reload(); err != nil {
		d.logger.Error("error reloading prefs", "err", err)
		return
	}
	if why := d.why(); why != "" {
		d.logger.Warn("prefs reloaded; ip updates are paused", "reason", why)
	} else {
		d.logger.Info("prefs reloaded", "hostname", d.prefs.Hostname())
	}
	d.eng.ForceSendIPUpdate()
}

func (d *daemon) handle(ctx context.Context, ev dynip.Event) {
	switch ev.Kind {
	case dynip.EventIPChanged:
		d.logger.Debug("ip changed", "ip", ev.IP)
	case dynip.EventIPChecked:
		d.logger.Debug("ip unchanged", "last_update", dynip.FormatUpdateTime(ev.Minutes))
	case dynip.EventIPUpdateResult:
		d.updated(ctx, ev.Update)
	case dynip.EventNewVersion:
		d.logger.Info("new version downloaded", "installer", ev.InstallerPath)
	}
}

func (d *daemon) updated(ctx context.Context, r dynip.UpdateResponse) {
	switch r.Result {
	case dynip.UpdateOK:
	case dynip.UpdateNotYours:
		d.logger.Warn("network is registered to another account; run \"dynip networks --select\"", "response", r.Raw)
	case dynip.UpdateBadAuth:
		d.logger.Error("update token was rejected; run \"dynip signin\"", "response", r.Raw)
		return
	default:
		d.logger.Warn("ip update was not accepted", "result", r.Result, "response", r.Raw)
		return
	}

	err := d.hist.Record(ctx, history.Entry{
		Time:     time.Now(),
		IP:       confirmedIP(r, d.eng.CurrentIP()),
		Hostname: d.prefs.Hostname(),
		Result:   r.Result.String(),
	})
	if err != nil {
		d.logger.Warn("error recording update", "err", err)
	}
}

// confirmedIP is the address echoed by the reply, or the resolved address
// when there is no echo. Sentinel values are never recorded.
func confirmedIP(r dynip.UpdateResponse, current dynip.IP) string {
	switch {
	case r.Addr.IsValid():
		return r.Addr.String()
	case current.IsResolved():
		return current.Addr().String()
	default:
		return ""
	}
}
