package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/lazykern/patazon"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info <chart.dtx>",
	Short: "Prints what a chart contains without playing it",
	Long:  `Prints what a chart contains without playing it.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		info(args[0])
	},
}

func info(path string) {
	chart, err := patazon.LoadChart(path)
	if err != nil {
		log.Fatal(err)
	}

	channels := make(map[string]int)
	for _, n := range chart.Notes {
		channels[n.Channel]++
	}

	fmt.Printf("File:       %s\n", chart.Path)
	fmt.Printf("Encoding:   %s\n", chart.Encoding)
	fmt.Printf("Title:      %s\n", chart.Meta.Title)
	fmt.Printf("Artist:     %s\n", chart.Meta.Artist)
	fmt.Printf("BPM:        %.2f\n", chart.Meta.Tempo)
	fmt.Printf("Notes:      %d across %d channels\n", len(chart.Notes), len(channels))
	fmt.Printf("Duration:   %s\n", formatMS(chart.LastNoteMS()))
	if chart.Background.Sample != "" {
		fmt.Printf("Background: %s starting at %s\n", chart.Background.Sample, formatMS(chart.Background.StartMS))
	}

	ids := make([]string, 0, len(chart.SamplePaths))
	for id := range chart.SamplePaths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Printf("Samples:    %d defined\n", len(ids))
	for _, id := range ids {
		p := chart.SamplePaths[id]
		status := "ok"
		if _, err := os.Stat(p); err != nil {
			status = "missing"
		}
		fmt.Printf("  %s  vol %3d  %-7s  %s\n", id, chart.SampleVolume(id), status, filepath.Base(p))
	}

	if len(chart.Warnings) > 0 {
		fmt.Printf("Warnings:   %d\n", len(chart.Warnings))
		for _, w := range chart.Warnings {
			fmt.Printf("  line %d: %s %q: %s\n", w.Line, w.Field, w.Value, w.Message)
		}
	}
}
