package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/teris-io/shortid"

	"github.com/Ottervanger/lumo/pyramid"
)

type panCmd struct {
	inputPath   string
	inputFormat string
	zoom        int
}

func (c *panCmd) Name() string     { return "pan" }
func (c *panCmd) Synopsis() string { return "sweep a viewport across a tile source" }
func (c *panCmd) Usage() string {
	return "lumo pan -i <path> [-if <format>] [-z <zoom>]\n"
}
func (c *panCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (mbtiles, xyz)")
	f.IntVar(&c.zoom, "z", 4, "Viewport zoom level")
}

func (c *panCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	id, _ := shortid.Generate()
	log.Infof("pan run %s: %s at zoom %d", id, c.inputPath, c.zoom)

	source, closeSource, err := openSource(c.inputPath, c.inputFormat)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	defer closeSource()

	cfg := pyramidConfig()
	vp := newView(c.zoom)
	p := pyramid.New(source, vp, cfg)
	counts := eventCounts(p)

	steps := viper.GetInt("pan.steps")
	world := float64(int(1)<<uint(c.zoom)) * cfg.TileSize

	bar := progressbar.NewOptions(steps, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	rendered, missing := 0, 0
	for step := 0; step < steps; step++ {
		vp.SetOffset(world*float64(step)/float64(steps), 0)
		p.RequestTiles(vp.TargetVisibleCoords())

		for _, coord := range vp.TargetVisibleCoords() {
			if p.AvailableLOD(coord) != nil {
				rendered++
			} else {
				missing++
			}
		}
		bar.Add(1)
	}
	bar.Finish()

	log.Infof("pan run %s: %d slots rendered, %d without LOD", id, rendered, missing)
	log.Infof("store %d/%d tiles", p.Len(), p.Capacity())
	for name, n := range counts {
		log.Infof("  %-12s %d", name, *n)
	}
	return subcommands.ExitSuccess
}
