package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-patch/pkg/models"
)

func newListCommand(env func() *Env) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the loaded query templates",
		Long: `Lists every query loaded from the templates directory with its
parameters. Required parameters are marked with "*", list parameters with "[]".
The MASS column tells whether the query accepts a mass CSV file; when it does,
the CSV columns follow the order of the non-list parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := env().Service.ListQueries(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPARAMETERS\tMASS")
			shown := 0
			for _, q := range queries {
				if tag != "" && !hasTag(q, tag) {
					continue
				}
				mass := "yes"
				if q.HasFileParameter() {
					mass = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.ID, q.DisplayName(), describeParameters(q.Parameters), mass)
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}

			mutedStyle.Fprintf(cmd.OutOrStdout(), "%d of %d queries\n", shown, len(queries))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only list queries carrying this tag")

	return cmd
}

func hasTag(q *models.QueryDefinition, tag string) bool {
	for _, t := range q.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// describeParameters renders "a*, b, ids[]*"; "-" when there are none.
func describeParameters(params []models.ParameterDefinition) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, len(params))
	for i, p := range params {
		s := p.Name
		if p.IsFile {
			s += "[]"
		}
		if p.Required {
			s += "*"
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}
