package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(configInitCmd(a))
	return cmd
}

func configInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := os.Stat(a.configPath)
			if err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite it", a.configPath)
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := a.cfg.Save(a.configPath); err != nil {
				return err
			}
			fmt.Println(successMsg("wrote %s", a.configPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
