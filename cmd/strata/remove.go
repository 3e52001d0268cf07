package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	removeFilter string
	removeAll    bool
)

var removeCmd = &cobra.Command{
	Use:   "remove <type>",
	Short: "Remove documents of a type and its subtypes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := parseFilter(removeFilter)
		if err != nil {
			return err
		}
		if len(criteria) == 0 && !removeAll {
			return errors.New("refusing to remove every document without --all")
		}

		ctx := cmd.Context()
		engine, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer engine.Close(ctx)

		repo, err := engine.Repository(args[0])
		if err != nil {
			return err
		}
		if err := repo.Remove(ctx, criteria); err != nil {
			return err
		}
		slog.Info("removed", "type", args[0], "collection", repo.CollectionName())
		return nil
	},
}

func init() {
	removeCmd.Flags().StringVar(&removeFilter, "filter", "", "Extended JSON filter")
	removeCmd.Flags().BoolVar(&removeAll, "all", false, "Allow removing every document in scope")
	rootCmd.AddCommand(removeCmd)
}
