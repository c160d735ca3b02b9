package main

import (
	"fmt"
	"time"

	"github.com/Travis-Britz/dynip/internal/history"
	"github.com/spf13/cobra"
)

func historyCmd(a *app) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent accepted IP updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := history.Open(a.cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer hist.Close()

			entries, err := hist.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(mutedMsg("no updates recorded"))
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Time.Local().Format(time.DateTime), e.IP, orNone(e.Hostname), e.Result})
			}
			fmt.Println(renderTable([]string{"TIME", "IP", "NETWORK", "RESULT"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 20, "Number of entries to show")
	return cmd
}
