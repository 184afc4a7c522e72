package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newRepairCmd() *cobra.Command {
	var backend, workflow string
	var deterministic bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Run one repair workflow and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := buildStack()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := s.orch.RunRepair(cmd.Context(), backend, workflow, deterministic)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "backend to use (a or b, default from config)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "named workflow template (overrides --deterministic)")
	cmd.Flags().BoolVar(&deterministic, "deterministic", false, "use the deterministic repair workflow")
	return cmd
}
