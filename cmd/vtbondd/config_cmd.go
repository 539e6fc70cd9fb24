package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vtbond/vtbond/internal/vtbconf"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the daemon's configuration file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vtbconf.GenerateDefault(configPath); err != nil {
				return fmt.Errorf("generating default config: %w", err)
			}
			fmt.Printf("wrote default config to %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "/etc/vtbond/config.yaml", "path to write the config file")
	return cmd
}
