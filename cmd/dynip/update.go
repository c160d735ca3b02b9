package main

import (
	"fmt"

	"github.com/Travis-Britz/dynip"
	"github.com/spf13/cobra"
)

func updateCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Resolve the public IP and send an update once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if why := a.why(); why != "" {
				return fmt.Errorf("cannot send ip updates: %s", why)
			}
			e, err := a.engine(printer{})
			if err != nil {
				return err
			}
			if force {
				e.ForceSoftwareUpdateCheck()
			}
			e.RunOnce(cmd.Context())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "check-version", false, "Also check for a new release")
	return cmd
}

// printer reports engine events on stdout.
type printer struct{}

func (printer) OnIPChanged(ip dynip.IP) {
	fmt.Println(infoMsg("public ip is %s", ip))
}

func (printer) OnIPChecked(int) {}

func (printer) OnIPUpdateResult(r dynip.UpdateResponse) {
	if r.Result == dynip.UpdateOK {
		fmt.Println(successMsg("update accepted: %s", r.Raw))
		return
	}
	fmt.Println(errorMsg("update %s: %s", r.Result, r.Raw))
}

func (printer) OnNewVersionAvailable(path string) {
	fmt.Println(warnMsg("a new version was downloaded to %s", path))
}
