package main

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/lazykern/patazon"
	"github.com/lazykern/patazon/internal/dtx"
	"github.com/spf13/cobra"
)

var (
	playTrackVolume  float64
	playEffectVolume float64
	playPolyphony    int
	playStart        float64
	playVerbose      bool
)

func init() {
	playCmd.Flags().Float64Var(&playTrackVolume, "track-volume", 0.7, "background track volume (0..1)")
	playCmd.Flags().Float64Var(&playEffectVolume, "effect-volume", 1.0, "drum sample volume (0..1)")
	playCmd.Flags().IntVar(&playPolyphony, "polyphony", 4, "voices per channel before the oldest is stolen")
	playCmd.Flags().Float64Var(&playStart, "start", 0, "start position in seconds")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "print every note as it fires")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <chart.dtx>",
	Short: "Plays a chart without a window",
	Long: `Plays a chart without a window. Notes fire against the background track
exactly as in the UI; events are reported on stdout instead.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		play(args[0])
	},
}

func play(path string) {
	chart, err := patazon.LoadChart(path)
	if err != nil {
		log.Fatal(err)
	}
	printChartBanner(chart)

	pl, err := patazon.NewPlayer(chart,
		patazon.WithTrackVolume(playTrackVolume),
		patazon.WithEffectVolume(playEffectVolume),
		patazon.WithPolyphonyLimit(playPolyphony),
	)
	if err != nil {
		log.Fatal(err)
	}
	printLoadReport(pl)

	ch := pl.Watch()
	if err := pl.Play(); err != nil {
		log.Fatal(err)
	}
	if playStart > 0 {
		pl.SeekTo(playStart * 1000)
	}
	for event := range ch {
		switch event.Kind {
		case patazon.EventNote:
			if playVerbose {
				fmt.Printf("note %s (%s) at %.0fms\n", event.Channel, event.Sample, event.TimeMS)
			}
		case patazon.EventClockDemoted:
			fmt.Println("background track finished; switching to system clock")
		case patazon.EventPlaybackEnded:
			fmt.Println("playback completed")
			goto done
		}
	}
done:
	pl.Wait()
}

func printChartBanner(chart *dtx.Chart) {
	fmt.Printf("Title:  %s\n", chart.Meta.Title)
	fmt.Printf("Artist: %s\n", chart.Meta.Artist)
	fmt.Printf("BPM:    %.2f\n", chart.Meta.Tempo)
	fmt.Printf("Notes:  %d over %s\n", len(chart.Notes), formatMS(chart.LastNoteMS()))
	for _, w := range chart.Warnings {
		fmt.Printf("warning: line %d: %s %q: %s\n", w.Line, w.Field, w.Value, w.Message)
	}
}

func printLoadReport(pl *patazon.Player) {
	chart := pl.Chart()
	rep := pl.LoadReport()
	for _, id := range rep.Missing {
		fmt.Printf("warning: sample %s not found: %s\n", id, chart.SamplePaths[id])
	}
	for _, id := range rep.Failed {
		fmt.Printf("warning: could not load %s\n", filepath.Base(chart.SamplePaths[id]))
	}
	fmt.Printf("%d sound effects loaded (out of %d defined)\n", rep.Loaded, rep.Defined)
}

func formatMS(ms float64) string {
	return time.Duration(ms * float64(time.Millisecond)).Round(time.Millisecond).String()
}
