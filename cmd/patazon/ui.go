package main

import (
	"fmt"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/cobra"

	"github.com/lazykern/patazon"
	"github.com/lazykern/patazon/internal/dtx"
	"github.com/lazykern/patazon/internal/playback"
)

const (
	screenW = 800
	screenH = 600

	numLanes   = 10
	laneWidth  = 40
	highwayW   = numLanes * laneWidth
	highwayX   = (screenW - highwayW) / 2
	highwayTop = 50
	judgmentY  = screenH - 100

	scrollTimeMS = 1500.0 // time for a note to travel the highway
	hitFlashMS   = 80.0
	progressBarW = 20
	jumpSeconds  = 5.0

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	backgroundColor = color.RGBA{0, 0, 0, 255}
	separatorColor  = color.RGBA{50, 50, 50, 255}
	judgmentColor   = color.RGBA{255, 255, 255, 255}
	textColor       = color.RGBA{220, 220, 255, 255}
	progressColor   = color.RGBA{180, 180, 40, 255}
)

type laneDef struct {
	name     string
	channels []string
	color    color.RGBA
}

// Lane order and colors follow the usual DTXMania arrangement, left
// cymbal through ride.
var laneDefs = []laneDef{
	{"L.Cym", []string{"1A"}, color.RGBA{255, 105, 180, 255}},
	{"H.H.", []string{"11", "18"}, color.RGBA{0, 180, 255, 255}},
	{"Snare", []string{"12"}, color.RGBA{255, 0, 100, 255}},
	{"L.Foot", []string{"1B", "1C"}, color.RGBA{255, 255, 255, 255}},
	{"H.Tom", []string{"14"}, color.RGBA{0, 220, 0, 255}},
	{"Kick", []string{"13"}, color.RGBA{255, 255, 255, 255}},
	{"L.Tom", []string{"15"}, color.RGBA{255, 0, 0, 255}},
	{"F.Tom", []string{"17"}, color.RGBA{255, 165, 0, 255}},
	{"R.Cym", []string{"16"}, color.RGBA{0, 180, 255, 255}},
	{"Ride", []string{"19"}, color.RGBA{0, 180, 255, 255}},
}

// Per-channel overrides so open, pedal, and kick variants stand out
// inside their lane.
var noteColors = map[string]color.RGBA{
	"18": {100, 220, 255, 255},
	"1B": {255, 105, 180, 255},
	"13": {200, 0, 200, 255},
	"1C": {200, 0, 200, 255},
}

var (
	uiTrackVolume  float64
	uiEffectVolume float64
)

func init() {
	uiCmd.Flags().Float64Var(&uiTrackVolume, "track-volume", 0.7, "background track volume (0..1)")
	uiCmd.Flags().Float64Var(&uiEffectVolume, "effect-volume", 1.0, "drum sample volume (0..1)")
	rootCmd.AddCommand(uiCmd)
}

var uiCmd = &cobra.Command{
	Use:   "ui <chart.dtx>",
	Short: "Plays a chart with the scrolling note highway",
	Long: `Plays a chart with the scrolling note highway. Notes fall toward the
judgment line and flash as they fire. Left/Right seek by five seconds,
Up/Down set the BGM volume, PageUp/PageDown set the drum volume.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runUI(args[0])
	},
}

func runUI(path string) {
	chart, err := patazon.LoadChart(path)
	if err != nil {
		log.Fatal(err)
	}
	printChartBanner(chart)

	pl, err := patazon.NewPlayer(chart,
		patazon.WithTrackVolume(uiTrackVolume),
		patazon.WithEffectVolume(uiEffectVolume),
	)
	if err != nil {
		log.Fatal(err)
	}
	printLoadReport(pl)

	g := &uiGame{
		player:    pl,
		events:    pl.Watch(),
		chart:     chart,
		textCache: make(map[string]*ebiten.Image, 256),
	}
	if err := pl.Play(); err != nil {
		log.Fatal(err)
	}
	defer pl.Stop()

	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle(fmt.Sprintf("Playing: %s - %s", chart.Meta.Title, chart.Meta.Artist))
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}

type uiGame struct {
	player *patazon.Player
	events <-chan patazon.PlaybackEvent
	chart  *dtx.Chart

	frameTick    int
	finishedTick int // tick the end event arrived on, 0 while playing

	textCache map[string]*ebiten.Image
}

func (g *uiGame) Update() error {
	g.frameTick++
	g.pollEvents()

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	// Linger for a moment after the last note so the highway drains.
	if g.finishedTick > 0 && g.frameTick-g.finishedTick > 120 {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		g.player.Seek(jumpSeconds * 1000)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		g.player.Seek(-jumpSeconds * 1000)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		g.player.AdjustTrackVolume(0.1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		g.player.AdjustTrackVolume(-0.1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyPageUp) {
		g.player.AdjustEffectVolume(0.1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyPageDown) {
		g.player.AdjustEffectVolume(-0.1)
	}
	return nil
}

func (g *uiGame) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case patazon.EventClockDemoted:
				fmt.Println("background track finished; switching to system clock")
			case patazon.EventPlaybackEnded:
				if g.finishedTick == 0 {
					fmt.Println("playback finished")
					g.finishedTick = g.frameTick
				}
			}
		default:
			return
		}
	}
}

func (g *uiGame) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	snap := g.player.Snapshot()

	g.drawHighway(screen)
	g.drawLaneIndicators(screen)
	g.drawNotes(screen, snap)
	g.drawHitFlashes(screen, snap)
	g.drawProgress(screen, snap)
	g.drawInfo(screen, snap)
}

func (g *uiGame) Layout(outsideW, outsideH int) (int, int) {
	return screenW, screenH
}

func (g *uiGame) drawHighway(screen *ebiten.Image) {
	for i := 0; i <= numLanes; i++ {
		x := float64(highwayX + i*laneWidth)
		ebitenutil.DrawRect(screen, x, highwayTop, 1, judgmentY-highwayTop, separatorColor)
	}
	ebitenutil.DrawRect(screen, highwayX, judgmentY-1, highwayW, 3, judgmentColor)
}

func (g *uiGame) drawLaneIndicators(screen *ebiten.Image) {
	for i, lane := range laneDefs {
		x := float64(highwayX + i*laneWidth)
		ebitenutil.DrawRect(screen, x+2, judgmentY+5, laneWidth-4, 15, lane.color)
	}
}

func (g *uiGame) drawNotes(screen *ebiten.Image, snap playback.Snapshot) {
	notes := g.chart.Notes
	for i := snap.Cursor; i < len(notes); i++ {
		until := notes[i].Time - snap.TimeMS
		if until > scrollTimeMS {
			break
		}
		if until < 0 {
			continue
		}
		lane := laneFor(notes[i].Channel)
		if lane < 0 {
			continue
		}
		progress := 1 - until/scrollTimeMS
		y := highwayTop + progress*(judgmentY-highwayTop)
		x := float64(highwayX + lane*laneWidth)
		clr := noteColor(notes[i].Channel, lane)

		switch notes[i].Channel {
		case "18": // open hi-hat, drawn hollow
			drawHollowRect(screen, x+2, y-3, laneWidth-4, 7, clr)
		case "1B": // pedal hi-hat, thinner bar
			ebitenutil.DrawRect(screen, x+2, y-1, laneWidth-4, 3, clr)
		default:
			ebitenutil.DrawRect(screen, x+2, y-3, laneWidth-4, 7, clr)
		}
	}
}

func (g *uiGame) drawHitFlashes(screen *ebiten.Image, snap playback.Snapshot) {
	for _, hit := range snap.Recent {
		if snap.TimeMS-hit.TimeMS > hitFlashMS {
			continue
		}
		lane := laneFor(hit.Channel)
		if lane < 0 {
			continue
		}
		x := highwayX + lane*laneWidth
		clr := brighten(noteColor(hit.Channel, lane))
		ebitenutil.DrawRect(screen, float64(x), judgmentY-50, laneWidth, 50, clr)

		label := ""
		switch hit.Channel {
		case "18":
			label = "OPEN"
		case "1B":
			label = "PEDAL"
		}
		if label != "" {
			lw := len(label) * charW
			g.drawText(screen, label, x+(laneWidth-lw)/2, judgmentY-25-lineH/2, backgroundColor)
		}
	}
}

func (g *uiGame) drawProgress(screen *ebiten.Image, snap playback.Snapshot) {
	if snap.DurationMS <= 0 {
		return
	}
	x := float64(highwayX + highwayW + 10)
	ebitenutil.DrawRect(screen, x, highwayTop, progressBarW, judgmentY-highwayTop, separatorColor)

	progress := snap.TimeMS / snap.DurationMS
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	fill := progress * (judgmentY - highwayTop)
	ebitenutil.DrawRect(screen, x, judgmentY-fill, progressBarW, fill, progressColor)
}

func (g *uiGame) drawInfo(screen *ebiten.Image, snap playback.Snapshot) {
	lines := []string{
		fmt.Sprintf("Time: %.2fs / %.2fs", snap.TimeMS/1000, snap.DurationMS/1000),
		fmt.Sprintf("Notes Played: %d / %d", snap.Cursor, snap.NoteCount),
		fmt.Sprintf("BPM: %.2f", g.chart.Meta.Tempo),
		fmt.Sprintf("BGM Volume: %.0f%% (Up/Down)", snap.TrackVolume*100),
		fmt.Sprintf("SE Volume: %.0f%% (PgUp/PgDn)", snap.EffectVolume*100),
		"Seek: Left/Right Arrows | Quit: ESC",
	}
	for i, line := range lines {
		g.drawText(screen, line, 10, 10+i*30, textColor)
	}
}

func (g *uiGame) drawText(screen *ebiten.Image, msg string, x, y int, clr color.RGBA) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		w := max(1, len([]rune(msg))*7)
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.Scale(float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255, 1)
	screen.DrawImage(img, op)
}

func laneFor(channel string) int {
	for i, lane := range laneDefs {
		for _, id := range lane.channels {
			if id == channel {
				return i
			}
		}
	}
	return -1
}

func noteColor(channel string, lane int) color.RGBA {
	if c, ok := noteColors[channel]; ok {
		return c
	}
	return laneDefs[lane].color
}

func brighten(c color.RGBA) color.RGBA {
	add := func(v uint8) uint8 {
		if v > 175 {
			return 255
		}
		return v + 80
	}
	return color.RGBA{add(c.R), add(c.G), add(c.B), 255}
}

func drawHollowRect(dst *ebiten.Image, x, y, w, h float64, clr color.Color) {
	ebitenutil.DrawRect(dst, x, y, w, 2, clr)
	ebitenutil.DrawRect(dst, x, y+h-2, w, 2, clr)
	ebitenutil.DrawRect(dst, x, y, 2, h, clr)
	ebitenutil.DrawRect(dst, x+w-2, y, 2, h, clr)
}
