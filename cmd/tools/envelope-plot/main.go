// Command envelope-plot renders every envelope the stage configuration
// produces to a PNG, one line per envelope, for tuning away from the rig.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/glovestage/internal/config"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/sink"
)

var (
	configPath = flag.String("config", "", "Stage tuning JSON (empty uses built-in defaults)")
	outPath    = flag.String("out", "envelopes.png", "Output PNG path")
	step       = flag.Duration("step", 5*time.Millisecond, "Sampling step")
)

type series struct {
	name   string
	values []float64
}

func sampleEnvelopes(cfg *config.StageConfig, dt time.Duration) ([]series, error) {
	m, err := mapper.NewFromConfig(cfg, sink.Discard{})
	if err != nil {
		return nil, err
	}
	var out []series
	for _, ne := range m.Envelopes() {
		out = append(out, series{name: ne.Name, values: ne.Envelope.Trajectory(dt)})
	}
	return out, nil
}

func renderPlot(curves []series, dt time.Duration, path string) error {
	p := plot.New()
	p.Title.Text = "Stage envelope trajectories"
	p.X.Label.Text = "Time since trigger (ms)"
	p.Y.Label.Text = "Value"

	ms := float64(dt) / float64(time.Millisecond)
	for i, c := range curves {
		pts := make(plotter.XYs, len(c.values))
		for j, v := range c.values {
			pts[j] = plotter.XY{X: float64(j) * ms, Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / 7)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(c.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(12*vg.Inch, 6*vg.Inch, path)
}

func main() {
	flag.Parse()

	cfg := config.DefaultStageConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadStageConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	curves, err := sampleEnvelopes(cfg, *step)
	if err != nil {
		log.Fatalf("failed to build envelopes: %v", err)
	}
	if err := renderPlot(curves, *step, *outPath); err != nil {
		log.Fatalf("failed to render plot: %v", err)
	}
	log.Printf("wrote %d envelopes to %s", len(curves), *outPath)
}
