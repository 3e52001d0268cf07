package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
)

var (
	findFilter string
	findLimit  int64
	findSkip   int64
	findSort   string
	findJSON   bool
)

var findCmd = &cobra.Command{
	Use:   "find <type>",
	Short: "List documents of a type and its subtypes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := parseFilter(findFilter)
		if err != nil {
			return err
		}
		sort, err := parseSort(findSort)
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
		q := repo.Query(criteria).Limit(findLimit).Skip(findSkip)
		for _, sf := range sort {
			q = q.Sort(sf.Field, sf.Order)
		}
		results, err := q.All(ctx)
		if err != nil {
			return err
		}

		if findJSON {
			return printJSON(cmd.OutOrStdout(), results.Documents())
		}
		return printTable(cmd.OutOrStdout(), results.Documents())
	},
}

// printJSON writes one relaxed Extended JSON document per line.
func printJSON(w io.Writer, docs []*document.Document) error {
	for _, doc := range docs {
		m := bson.M{core.IDField: doc.ID(), "_type": doc.Type().Name()}
		for k, v := range doc.ToMap() {
			m[k] = v
		}
		data, err := bson.MarshalExtJSON(m, false, false)
		if err != nil {
			return fmt.Errorf("cannot encode %s: %w", doc, err)
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func printTable(w io.Writer, docs []*document.Document) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tFIELDS")
	for _, doc := range docs {
		var fields []string
		for name, v := range doc.Values() {
			fields = append(fields, fmt.Sprintf("%s=%v", name, v))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", doc.Key(), doc.Type().Name(), strings.Join(fields, " "))
	}
	return tw.Flush()
}

func init() {
	findCmd.Flags().StringVar(&findFilter, "filter", "", "Extended JSON filter")
	findCmd.Flags().Int64Var(&findLimit, "limit", 0, "Maximum number of documents")
	findCmd.Flags().Int64Var(&findSkip, "skip", 0, "Number of documents to skip")
	findCmd.Flags().StringVar(&findSort, "sort", "", "Sort fields, e.g. label:-1,_id")
	findCmd.Flags().BoolVar(&findJSON, "json", false, "Print Extended JSON")
	rootCmd.AddCommand(findCmd)
}
