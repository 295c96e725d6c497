package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/branchtrace/pkg/branch"
	x86 "github.com/amirkhaki/branchtrace/pkg/host/x86"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <code-file>",
	Short: "classify the control-flow instructions in a flat x86 code blob",
	Long: `scan decodes a raw (headerless) x86 machine-code file and prints
every control-flow instruction it finds with its classification, the way the
discovery side of an instrumentation host would see them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		insts := x86.Scan(code, scanBase, scanMode)
		for _, inst := range insts {
			fmt.Printf("%#016x len=%-2d %s\n",
				inst.PC, inst.Len, branch.Classify(inst.Shape))
		}
		fmt.Printf("%d control-flow instructions in %d bytes\n",
			len(insts), len(code))
		return nil
	},
}

var (
	scanBase uint64
	scanMode int
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Uint64VarP(&scanBase, "base", "b", 0,
		"virtual address the code is loaded at")
	scanCmd.Flags().IntVarP(&scanMode, "mode", "m", 64,
		"processor mode in bits (16, 32 or 64)")
}
