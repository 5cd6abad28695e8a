// Command roofmeasure runs the roof measurement steps offline: measuring a
// mesh, converting COLMAP poses, laying out a synthetic rig, and submitting
// photos to a running server.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/banshee-data/roof.report/internal/version"
)

const (
	flagConfig    = "config"
	flagOut       = "out"
	flagSynthetic = "synthetic"
	flagHistogram = "histogram"
	flagModel     = "model"
	flagImages    = "images"
	flagServer    = "server"
	flagWait      = "wait"
	flagPoll      = "poll"
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "roofmeasure",
		Usage:           "measure roofs from meshes and photos",
		Version:         version.Version,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Usage:   "tuning config JSON (defaults apply to unset keys)",
				EnvVars: []string{"ROOF_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "measure",
				Usage:     "measure a reconstructed mesh and print the report",
				ArgsUsage: "<mesh.obj|mesh.ply>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Usage: "write the report here instead of stdout"},
					&cli.BoolFlag{Name: flagSynthetic, Usage: "the mesh was reconstructed from synthetic camera poses"},
					&cli.StringFlag{Name: flagHistogram, Usage: "also render the pitch histogram PNG to this path"},
				},
				Action: MeasureAction,
			},
			{
				Name:  "poses",
				Usage: "convert a COLMAP text model into a pose document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagModel, Usage: "directory with cameras.txt and images.txt", Required: true},
					&cli.StringFlag{Name: flagOut, Usage: "pose document path", Value: "transforms.json"},
				},
				Action: PosesAction,
			},
			{
				Name:  "rig",
				Usage: "write a synthetic camera rig pose document for a directory of photos",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagImages, Usage: "directory of photos", Required: true},
					&cli.StringFlag{Name: flagOut, Usage: "pose document path", Value: "transforms.json"},
				},
				Action: RigAction,
			},
			{
				Name:      "submit",
				Usage:     "upload photos to a roof server",
				ArgsUsage: "<photo> [photo...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagServer, Usage: "server base URL", Value: "http://localhost:8080", EnvVars: []string{"ROOF_SERVER"}},
					&cli.BoolFlag{Name: flagWait, Usage: "wait for the job and print its report"},
					&cli.DurationFlag{Name: flagPoll, Usage: "status poll interval when waiting", Value: defaultPoll},
				},
				Action: SubmitAction,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
