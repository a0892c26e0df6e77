package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect registered prompt templates",
	}
	cmd.AddCommand(newTemplatesListCmd())
	return cmd
}

func newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every prompt template available to --template",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			names := a.templates.Names()
			if len(names) == 0 {
				fmt.Println("no prompt templates registered")
				return nil
			}
			for _, name := range names {
				fmt.Println("  -", name)
			}
			return nil
		},
	}
}
