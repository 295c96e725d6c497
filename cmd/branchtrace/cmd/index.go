package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/branchtrace/pkg/manifest"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index <trace-dir>",
	Short: "record the trace files of a directory in a manifest database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.Open(indexDB)
		if err != nil {
			return err
		}
		defer m.Close()

		n, err := m.IndexDir(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d trace files into %s\n", n, indexDB)

		if indexList {
			entries, err := m.List()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("pid=%-6d seq=%-4d %-6s %10d records  %s\n",
					e.PID, e.Seq, e.Schema, e.Records, e.Path)
			}
		}
		return nil
	},
}

var (
	indexDB   string
	indexList bool
)

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVarP(&indexDB, "db", "d", "branchtrace.db",
		"path of the manifest database")
	indexCmd.Flags().BoolVarP(&indexList, "list", "l", false,
		"print the manifest contents after indexing")
}
