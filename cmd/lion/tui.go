package main

import (
	"github.com/DonovanMods/lion-launcher/internal/tui"

	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive interface",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := initService()
		if err != nil {
			return err
		}
		defer closeService(svc)
		return tui.Run(svc)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
