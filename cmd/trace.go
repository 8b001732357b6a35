package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/trace"
)

var traceFlags struct {
	where  string
	limit  int
	offset int
}

var traceCmd = &cobra.Command{
	Use:   "trace <database> [table]",
	Short: "Print the events recorded in a trace database.",
	Long: `Trace lists the tables of a database recorded with --trace, or ` +
		`prints the rows of one table in recording order.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		trace.MapTables(reader)

		if len(args) == 1 {
			return listTables(cmd, reader)
		}

		return printTable(cmd, reader, args[1])
	},
}

func init() {
	traceCmd.Flags().StringVar(&traceFlags.where, "where", "",
		`SQL condition on the rows, e.g. "Kind = 'free'"`)
	traceCmd.Flags().IntVar(&traceFlags.limit, "limit", 0,
		"maximum number of rows, 0 for all")
	traceCmd.Flags().IntVar(&traceFlags.offset, "offset", 0,
		"number of rows to skip, used with --limit")
	rootCmd.AddCommand(traceCmd)
}

func listTables(cmd *cobra.Command, reader datarecording.DataReader) error {
	tables, err := reader.ListTables(cmd.Context())
	if err != nil {
		return errors.Wrap(err, "listing tables")
	}

	for _, t := range tables {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}

	return nil
}

func printTable(
	cmd *cobra.Command,
	reader datarecording.DataReader,
	table string,
) error {
	rows, total, err := reader.Query(cmd.Context(), table,
		datarecording.QueryParams{
			Where:   traceFlags.where,
			OrderBy: "Seq",
			Limit:   traceFlags.limit,
			Offset:  traceFlags.offset,
		})
	if err != nil {
		return err
	}

	writeRows(cmd.OutOrStdout(), rows)
	fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d rows)\n", len(rows), total)

	return nil
}

// writeRows prints the rows as aligned columns, with the field names as
// header.
func writeRows(out io.Writer, rows []any) {
	if len(rows) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(structs.Names(rows[0]), "\t"))

	for _, row := range rows {
		values := structs.Values(row)
		cells := make([]string, len(values))

		for i, v := range values {
			cells[i] = fmt.Sprint(v)
		}

		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	w.Flush()
}
