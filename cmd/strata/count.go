package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countFilter string

var countCmd = &cobra.Command{
	Use:   "count <type>",
	Short: "Count documents of a type and its subtypes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := parseFilter(countFilter)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		engine, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer engine.Close(ctx)

		repo, err := engine.Repository(args[0])
		if err != nil {
			return err
		}
		n, err := repo.Count(ctx, criteria)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	countCmd.Flags().StringVar(&countFilter, "filter", "", "Extended JSON filter")
	rootCmd.AddCommand(countCmd)
}
