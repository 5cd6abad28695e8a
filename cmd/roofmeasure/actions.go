package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/banshee-data/roof.report/internal/api"
	"github.com/banshee-data/roof.report/internal/charts"
	"github.com/banshee-data/roof.report/internal/config"
	"github.com/banshee-data/roof.report/internal/fsutil"
	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/roof/poses"
	"github.com/banshee-data/roof.report/internal/timeutil"
)

const defaultPoll = 2 * time.Second

var clock timeutil.Clock = timeutil.RealClock{}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return config.Empty(), nil
	}
	return config.Load(path)
}

// MeasureAction measures the mesh named by the first argument.
func MeasureAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("measure takes exactly one mesh path")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	outcome := jobs.NewAssemblerFromConfig(cfg).RunFile(c.Args().First(), c.Bool(flagSynthetic))
	if outcome.Report.Error != "" {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", outcome.Report.Error)
	}

	if path := c.String(flagHistogram); path != "" {
		if outcome.Measurements == nil {
			return errors.New("no measurements to plot")
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := charts.PitchHistogramPNG(f, outcome.Measurements.Histogram); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(outcome.Report, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(c, data)
}

// PosesAction writes the pose document for a COLMAP text model.
func PosesAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	model, err := poses.ReadModel(c.String(flagModel))
	if err != nil {
		return err
	}
	ps, err := model.PoseSet(poses.PoseSetOptions{
		DefaultFOV:    cfg.GetDefaultFOVRad(),
		EstimateScale: cfg.GetEstimateScale(),
	})
	if err != nil {
		return err
	}
	return writeDocument(c, ps)
}

// RigAction writes a synthetic rig pose document for the photos in a
// directory.
func RigAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	images, err := poses.DiscoverImages(c.String(flagImages))
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %s", c.String(flagImages))
	}
	return writeDocument(c, jobs.NewRigFromConfig(cfg).Generate(images))
}

func writeDocument(c *cli.Context, ps *poses.PoseSet) error {
	out := c.String(flagOut)
	doc := poses.BuildDocument(ps, clock.Now())
	if err := poses.WritePoseDocument(fsutil.OSFileSystem{}, out, doc); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d %s poses to %s\n", len(ps.Poses), ps.Provenance, out)
	return nil
}

// SubmitAction uploads the photo arguments and optionally waits for the
// report.
func SubmitAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("submit needs at least one photo")
	}
	client := api.NewClient(c.String(flagServer))
	client.PollInterval = c.Duration(flagPoll)

	sub, err := client.Submit(c.Context, c.Args().Slice())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "job %s queued with %d images\n", sub.JobID, sub.ImageCount)
	if !c.Bool(flagWait) {
		return nil
	}

	job, err := client.Wait(c.Context, sub.JobID, func(j jobs.Job) {
		fmt.Fprintf(c.App.ErrWriter, "%3d%% %s\n", j.Progress, j.Message)
	})
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusComplete {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Message)
	}
	for _, w := range job.Warnings {
		fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", w)
	}

	rep, err := client.Report(c.Context, sub.JobID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

func writeOutput(c *cli.Context, data []byte) error {
	path := c.String(flagOut)
	if path == "" {
		_, err := fmt.Fprintln(c.App.Writer, string(data))
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return fsutil.OSFileSystem{}.WriteFileAtomic(path, data, 0o644)
}
