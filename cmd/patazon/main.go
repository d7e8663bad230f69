package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "patazon",
	Short: "Plays DTX drum charts",
	Long: `Plays DTX drum charts. A chart is parsed, every note is resolved to an
absolute time under tempo and bar-length changes, and the chart's drum
samples are fired against the background track in real time.`,
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
