package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Travis-Britz/dynip"
	"github.com/spf13/cobra"
)

func networksCmd(a *app) *cobra.Command {
	var reselect bool
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List the account's networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := a.prefs.Token()
			if token == "" {
				return errors.New("not signed in; run \"dynip signin\"")
			}
			if reselect {
				return a.refreshNetworks(cmd.Context(), token, stdinChooser{in: bufio.NewReader(os.Stdin)})
			}

			nets, err := a.accountClient().Networks(cmd.Context(), token)
			if errors.Is(err, dynip.ErrNoNetworks) {
				fmt.Println(warnMsg("the account has no networks"))
				return nil
			}
			if err != nil {
				return err
			}
			current := a.prefs.NetworkID()
			rows := make([][]string, 0, len(nets))
			for _, n := range nets {
				mark := ""
				if n.ID == current {
					mark = "*"
				}
				rows = append(rows, []string{mark, n.ID, orNone(n.Label), addrString(n.IPAddress), strconv.FormatBool(n.Dynamic)})
			}
			fmt.Println(renderTable([]string{"", "ID", "LABEL", "IP", "DYNAMIC"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reselect, "select", false, "Download the networks again and choose which one receives updates")
	return cmd
}
