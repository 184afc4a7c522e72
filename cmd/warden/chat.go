package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the agent a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cleanup, err := buildStack()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := s.orch.RunChat(cmd.Context(), backend, strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Println(res.Response)
			fmt.Printf("\n[%s, %.1fs]\n", res.ModelUsed, res.LatencySeconds)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "backend to use (a or b, default from config)")
	return cmd
}
