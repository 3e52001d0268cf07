package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/strata/pkg/schema"
)

var schemaWatch bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Validate the schema files and print the type hierarchies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !schemaWatch {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			printHierarchies(cmd.OutOrStdout(), reg)
			return nil
		}

		cfg, err := projectConfig()
		if err != nil {
			return err
		}
		dir := firstNonEmpty(schemaDir, cfg.Schemas.Dir)
		if dir == "" {
			return fmt.Errorf("--watch needs a schema directory (--schemas or strata.yaml)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return watchSchema(ctx, cmd.OutOrStdout(), dir, cfg.Schemas.Pattern)
	},
}

func watchSchema(ctx context.Context, w io.Writer, dir, pattern string) error {
	err := schema.Watch(ctx, dir, pattern, slog.Default(), func(reg *schema.Registry, err error) {
		if err != nil {
			slog.Error("schema is invalid", "error", err)
			return
		}
		printHierarchies(w, reg)
	})
	if err != nil {
		return err
	}
	slog.Info("watching schema files", "dir", dir)
	<-ctx.Done()
	return nil
}

func printHierarchies(w io.Writer, reg *schema.Registry) {
	for _, root := range reg.Roots() {
		fmt.Fprintf(w, "%s (collection %s, discriminator %s)\n", root.Name(), root.Collection(), root.Discriminator())
		printChildren(w, root, 1)
	}
}

func printChildren(w io.Writer, t *schema.DocumentType, depth int) {
	for _, child := range t.Children() {
		suffix := "tag " + child.Tag()
		if child.Abstract() {
			suffix = "abstract"
		}
		fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), child.Name(), suffix)
		printChildren(w, child, depth+1)
	}
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaWatch, "watch", false, "Re-validate whenever a schema file changes")
	rootCmd.AddCommand(schemaCmd)
}
