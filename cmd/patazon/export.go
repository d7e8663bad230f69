package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lazykern/patazon"
	"github.com/lazykern/patazon/internal/midiexport"
	"github.com/spf13/cobra"
)

var (
	wavTrackVolume  float64
	wavEffectVolume float64
)

func init() {
	exportWavCmd.Flags().Float64Var(&wavTrackVolume, "track-volume", 0.7, "background track volume (0..1)")
	exportWavCmd.Flags().Float64Var(&wavEffectVolume, "effect-volume", 1.0, "drum sample volume (0..1)")
	rootCmd.AddCommand(exportMidCmd)
	rootCmd.AddCommand(exportWavCmd)
}

var exportMidCmd = &cobra.Command{
	Use:   "export-mid <chart.dtx> [out.mid]",
	Short: "Writes the chart's drum notes to a standard MIDI file",
	Long: `Writes the chart's drum notes to a standard MIDI file. Drum channels map
to General MIDI percussion keys on channel 10, and resolved note times
are kept exact.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		exportMid(args)
	},
}

func exportMid(args []string) {
	chart, err := patazon.LoadChart(args[0])
	if err != nil {
		log.Fatal(err)
	}
	out := outPath(args, ".mid")
	if err := midiexport.WriteFile(out, chart); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%d notes)\n", out, len(chart.Notes))
}

var exportWavCmd = &cobra.Command{
	Use:   "export-wav <chart.dtx> [out.wav]",
	Short: "Bounces the chart to a stereo WAV file",
	Long: `Bounces the chart to a stereo WAV file. Every loadable sample is mixed
at its resolved time under the chart's volume model; no audio device is
needed.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		exportWav(args)
	},
}

func exportWav(args []string) {
	chart, err := patazon.LoadChart(args[0])
	if err != nil {
		log.Fatal(err)
	}
	mix, err := patazon.RenderMix(chart, wavTrackVolume, wavEffectVolume)
	if err != nil {
		log.Fatal(err)
	}
	out := outPath(args, ".wav")
	data := patazon.EncodeWAVFloat32LE(mix, patazon.SampleRate, 2)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatal(err)
	}
	seconds := float64(len(mix)/2) / patazon.SampleRate
	fmt.Printf("wrote %s (%s of audio)\n", out, formatMS(seconds*1000))
}

func outPath(args []string, ext string) string {
	if len(args) > 1 {
		return args[1]
	}
	base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
	return base + ext
}
