package main

import (
	"fmt"
	"time"

	"github.com/Travis-Britz/dynip"
	"github.com/Travis-Britz/dynip/internal/history"
	"github.com/spf13/cobra"
)

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the account and the last accepted update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.prefs
			ready := successMsg("yes")
			if why := a.why(); why != "" {
				ready = errorMsg("%s", why)
			}

			last := "never"
			hist, err := history.Open(a.cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer hist.Close()
			recent, err := hist.Recent(cmd.Context(), 1)
			if err != nil {
				return err
			}
			if len(recent) == 1 {
				minutes := int(time.Since(recent[0].Time) / time.Minute)
				last = fmt.Sprintf("%s ago (%s)", dynip.FormatUpdateTime(minutes), recent[0].IP)
			}

			fmt.Print(keyValues(
				kv("user", orNone(p.UserName())),
				kv("network", orNone(p.Hostname())),
				kv("network id", orNone(p.NetworkID())),
				kv("networks", string(p.NetworksState())),
				kv("send updates", ready),
				kv("last update", last),
				kv("unique id", p.UniqueID()),
				kv("prefs", p.Path()),
			))
			return nil
		},
	}
}
