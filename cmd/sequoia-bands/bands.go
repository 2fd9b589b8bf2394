package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/e7canasta/sequoia-bands/bands"
	"github.com/e7canasta/sequoia-bands/internal/display"
)

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "Print the band color table",
	Run: func(cmd *cobra.Command, args []string) {
		printBands(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(bandsCmd)
}

func printBands(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INDEX\tBAND\tWINDOW\tCOLOR (B,G,R)")
	fmt.Fprintln(w, "-----\t----\t------\t-------------")

	for i, c := range bands.Table {
		b := bands.Band(i)
		fmt.Fprintf(w, "%d\t%s\t%s\t(%d,%d,%d)\n", i, b, display.Title(b), c[0], c[1], c[2])
	}
	w.Flush()
}
