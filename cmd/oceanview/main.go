// Command oceanview shows the height field of the first band of a
// simulation, shaded by its normals.
//
// Keys: SPACE turns the wind, P pauses, +/- change the time scale.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	ocean "github.com/cwbudde/algo-ocean"
)

var (
	// configFlag names a JSON simulation config; defaults apply when the
	// file does not exist.
	configFlag = flag.String("config", "ocean.json", "simulation config file")

	// backendFlag overrides the backend of the config file.
	backendFlag = flag.String("backend", "", "compute backend (overrides config)")

	scaleFlag = flag.Int("scale", 3, "window pixels per grid cell")

	// debugFlag shows the device and timing overlay.
	debugFlag = flag.Bool("debug", true, "show device and timing overlay")
)

// windDirections are cycled by SPACE.
var windDirections = [][2]float32{{1, 0}, {0.5, 0.9}, {-0.7, 0.3}}

// lightDir is the normalized direction towards the light.
var lightDir = normalize([3]float32{0.4, 0.8, 0.3})

type Game struct {
	sim    *ocean.Simulation
	pixels []byte
	w, h   int

	last      time.Time
	stepTime  time.Duration
	windIndex int
	speed     float64
	err       error
}

func (g *Game) Update() error {
	if g.err != nil {
		return g.err
	}

	g.handleInput()

	now := time.Now()
	dt := now.Sub(g.last)
	g.last = now

	start := time.Now()
	if err := g.sim.Step(dt); err != nil {
		g.err = err
		return err
	}

	g.stepTime = time.Since(start)

	return nil
}

func (g *Game) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.windIndex = (g.windIndex + 1) % len(windDirections)
		d := windDirections[g.windIndex]

		for i := range g.sim.NumBands() {
			b, err := g.sim.Band(i)
			if err == nil {
				_ = b.SetWindDirection(d[0], d[1])
			}
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.sim.Clock().Toggle()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.speed = math.Min(g.speed*2, 16)
		g.sim.Clock().SetSpeed(g.speed)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.speed = math.Max(g.speed/2, 1.0/16)
		g.sim.Clock().SetSpeed(g.speed)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	view := g.sim.View(0)
	if !view.Valid {
		return
	}

	shade(g.pixels, view)
	screen.WritePixels(g.pixels)

	if !*debugFlag {
		return
	}

	dev := g.sim.Device()
	stats := g.sim.CacheStats()
	lo, hi := view.HeightRange()

	txt := fmt.Sprintf("%s  step %.2fms  t=%.1fs x%.2g", dev.Name, float64(g.stepTime.Microseconds())/1000, view.Time, g.speed)
	text.Draw(screen, txt, basicfont.Face7x13, 6, 16, color.White)

	info := fmt.Sprintf("plans %d  height [%.2f, %.2f]  wind %v", stats.Plans, lo, hi, windDirections[g.windIndex])
	text.Draw(screen, info, basicfont.Face7x13, 6, 32, color.White)

	if g.sim.Clock().Paused() {
		text.Draw(screen, "paused", basicfont.Face7x13, 6, 48, color.White)
	}
}

// Layout reports the grid size of band 0; ebiten scales it to the window.
func (g *Game) Layout(_, _ int) (int, int) { return g.w, g.h }

// shade writes RGBA pixels for view: water colour modulated by height and
// lit by the normals.
func shade(pixels []byte, view ocean.BandView) {
	lo, hi := view.HeightRange()
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	for z := range view.SizeY {
		for x := range view.SizeX {
			disp, n := view.Sample(x, z)

			h := (disp[1] - lo) / span
			diffuse := max(0, n[0]*lightDir[0]+n[1]*lightDir[1]+n[2]*lightDir[2])
			l := 0.25 + 0.75*diffuse

			o := (z*view.SizeX + x) * 4
			pixels[o+0] = clampByte((0.05 + 0.35*h) * l)
			pixels[o+1] = clampByte((0.25 + 0.45*h) * l)
			pixels[o+2] = clampByte((0.45 + 0.45*h) * l)
			pixels[o+3] = 0xff
		}
	}
}

func clampByte(v float32) byte {
	return byte(min(max(v, 0), 1) * 255)
}

func normalize(v [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

func main() {
	flag.Parse()

	ocean.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := ocean.LoadConfig(*configFlag)
	if err != nil {
		log.Fatal(err)
	}

	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}

	if len(cfg.Bands) == 0 {
		cfg.Bands = []ocean.BandParams{ocean.DefaultBandParams()}
	}

	sim, err := ocean.Open(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer sim.Close()

	p := cfg.Bands[0]
	w, h := int(p.ResolutionX), int(p.ResolutionY)

	g := &Game{
		sim:    sim,
		pixels: make([]byte, w*h*4),
		w:      w,
		h:      h,
		last:   time.Now(),
		speed:  1,
	}

	ebiten.SetWindowSize(w**scaleFlag, h**scaleFlag)
	ebiten.SetWindowTitle("Ocean")

	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
