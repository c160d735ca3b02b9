package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/Travis-Britz/dynip"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func signinCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signin [user]",
		Short: "Sign in and choose the network that receives updates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(os.Stdin)
			var user string
			if len(args) == 1 {
				user = args[0]
			} else {
				fmt.Print("User name: ")
				line, err := in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("error reading from stdin: %w", err)
				}
				user = strings.TrimSpace(line)
			}
			if user == "" {
				return errors.New("user name cannot be empty")
			}

			fmt.Print("Password: ")
			pw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("error reading password: %w", err)
			}

			client := a.accountClient()
			token, err := client.SignIn(cmd.Context(), user, string(pw))
			if errors.Is(err, dynip.ErrBadCredentials) {
				return errors.New("user name or password is incorrect")
			}
			if err != nil {
				return err
			}
			a.prefs.SetAccount(user, token)
			if err := a.prefs.Save(); err != nil {
				return err
			}
			fmt.Println(successMsg("signed in as %s", user))

			return a.refreshNetworks(cmd.Context(), token, stdinChooser{in: in})
		},
	}
}

func signoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.prefs.SignOut()
			if err := a.prefs.Save(); err != nil {
				return err
			}
			fmt.Println(successMsg("signed out"))
			fmt.Println(reloadHint())
			return nil
		},
	}
}

func enableCmd(a *app, on bool) *cobra.Command {
	use, short, done := "enable", "Resume sending IP updates", "ip updates enabled"
	if !on {
		use, short, done = "disable", "Stop sending IP updates without signing out", "ip updates disabled"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.prefs.SetSendUpdates(on)
			if err := a.prefs.Save(); err != nil {
				return err
			}
			fmt.Println(successMsg("%s", done))
			fmt.Println(reloadHint())
			return nil
		},
	}
}

// refreshNetworks downloads the account's networks, applies the selection rules
// and stores the result.
func (a *app) refreshNetworks(ctx context.Context, token string, chooser dynip.NetworkChooser) error {
	sel, err := dynip.RefreshNetworks(ctx, a.accountClient().Session(token), a.prefs.Selection(), chooser)
	if err != nil {
		return fmt.Errorf("error downloading networks: %w", err)
	}
	a.prefs.ApplySelection(sel)
	if err := a.prefs.Save(); err != nil {
		return err
	}

	switch sel.State {
	case dynip.NetworksOK:
		if sel.Hostname != "" {
			fmt.Println(successMsg("sending updates for network %q", sel.Hostname))
		} else {
			fmt.Println(successMsg("sending updates for network %s", sel.NetworkID))
		}
		fmt.Println(reloadHint())
	default:
		fmt.Println(warnMsg("%s", a.prefs.Why()))
	}
	return nil
}

// stdinChooser asks the user to pick one of several dynamic networks.
// An empty or invalid answer cancels.
type stdinChooser struct {
	in *bufio.Reader
}

func (c stdinChooser) ChooseNetwork(_ context.Context, dynamic []dynip.NetworkInfo) (dynip.NetworkInfo, bool) {
	fmt.Println("Several networks accept dynamic updates:")
	for i, n := range dynamic {
		fmt.Printf("  %d) %s %s\n", i+1, orNone(n.Label), mutedMsg("%s", addrString(n.IPAddress)))
	}
	fmt.Print("Network to update [none]: ")
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return dynip.NetworkInfo{}, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || i < 1 || i > len(dynamic) {
		return dynip.NetworkInfo{}, false
	}
	return dynamic[i-1], true
}

func reloadHint() string {
	return mutedMsg("send SIGHUP to a running \"dynip run\" to reload")
}

func orNone(s string) string {
	if s == "" {
		return "(no label)"
	}
	return s
}
