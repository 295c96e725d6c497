package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/branchtrace/pkg/trace"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <trace-file>",
	Short: "dump the records of a trace file as text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openTrace(args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		var n uint64
		for {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			outcome := "T"
			if !rec.Taken {
				outcome = "N"
			}
			fmt.Printf("%-13s pc=%#016x tgt=%#016x %s\n",
				rec.Kind, rec.PC, rec.Target, outcome)
			n++
			if readLimit > 0 && n >= readLimit {
				break
			}
		}
		fmt.Printf("%d of %d records (%s schema)\n", n, r.NumEntries(), r.Schema())
		return nil
	},
}

var (
	readLimit  uint64
	readSchema string
)

// openTrace opens the file by its naming convention unless the schema was
// forced on the command line.
func openTrace(path string) (*trace.Reader, error) {
	if readSchema == "" {
		return trace.Open(path)
	}
	schema, err := trace.ParseSchema(readSchema)
	if err != nil {
		return nil, err
	}
	return trace.OpenSchema(path, schema)
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Uint64VarP(&readLimit, "limit", "n", 0,
		"stop after this many records (0 means all)")
	readCmd.Flags().StringVarP(&readSchema, "schema", "s", "",
		"override the schema instead of taking it from the file name")
}
