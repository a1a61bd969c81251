// firstlevel fits a single-subject GLM to every fracback run: ConsDurRTDur
// events convolved with the Glover HRF, a cosine drift basis and the tedana
// rejected component time series, on smoothed, percent-signal-change BOLD
// data within the brain mask. Contrast maps are written as .npy arrays along
// with the design matrix and a z-map mosaic.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/carbocation/fracback"
	"github.com/carbocation/fracback/bids"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/confounds"
	"github.com/carbocation/fracback/design"
	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/glm"
	"github.com/carbocation/fracback/plot"
	"github.com/carbocation/fracback/rtdur"
	"github.com/carbocation/fracback/tsv"
	"github.com/carbocation/fracback/volume"
	"github.com/carbocation/pfx"
)

// Per-contrast statistics written for each run
var statMaps = []string{"effect", "variance", "t", "z"}

type options struct {
	BIDSDir       string
	FmriprepDir   string
	TedanaDir     string
	OutDir        string
	Subject       string
	Session       string
	Task          string
	Acq           string
	Space         string
	Res           string
	Contrast      string
	ContrastLabel string
	Preset        string
	HighPass      float64
	FWHM          float64
	Background    string
	MosaicZ       float64
}

func main() {
	var opts options

	flag.StringVar(&opts.BIDSDir, "bids-dir", "", "BIDS raw directory holding the events files.")
	flag.StringVar(&opts.FmriprepDir, "fmriprep-dir", "", "fMRIPrep derivatives directory.")
	flag.StringVar(&opts.TedanaDir, "tedana-dir", "", "tedana derivatives directory holding the rejected component time series.")
	flag.StringVar(&opts.OutDir, "out", "", "Output derivatives directory.")
	flag.StringVar(&opts.Subject, "subject", "", "Optional subject label to restrict processing.")
	flag.StringVar(&opts.Session, "session", "", "Optional session label to restrict processing.")
	flag.StringVar(&opts.Task, "task", "fracback", "Task label.")
	flag.StringVar(&opts.Acq, "acq", "MBME", "Acquisition label.")
	flag.StringVar(&opts.Space, "space", "MNI152NLin6Asym", "Output space of the preprocessed BOLD data.")
	flag.StringVar(&opts.Res, "res", "2", "Resolution label of the preprocessed BOLD data.")
	flag.StringVar(&opts.Contrast, "contrast", "two_back - zero_back", "Contrast expression over design columns.")
	flag.StringVar(&opts.ContrastLabel, "contrast-label", "twoBackMinusZeroBack", "Label used in output filenames for the contrast.")
	flag.StringVar(&opts.Preset, "preset", "glm", "rtdur policy preset for the task events.")
	flag.Float64Var(&opts.HighPass, "high-pass", 0.01, "Cosine drift cutoff in Hz. 0 disables the drift basis.")
	flag.Float64Var(&opts.FWHM, "fwhm", 5, "Spatial smoothing kernel FWHM in mm. 0 disables smoothing.")
	flag.StringVar(&opts.Background, "bg", "", "Optional NIfTI underlay for the z-map mosaic, in the same grid as the BOLD data.")
	flag.Float64Var(&opts.MosaicZ, "mosaic-z", 3.09, "Absolute z below which the mosaic is transparent.")
	flag.Parse()

	if opts.BIDSDir == "" || opts.FmriprepDir == "" || opts.TedanaDir == "" || opts.OutDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	for _, p := range []*string{&opts.BIDSDir, &opts.FmriprepDir, &opts.TedanaDir, &opts.OutDir, &opts.Background} {
		expanded, err := fracback.ExpandHome(*p)
		if err != nil {
			log.Fatalln(err)
		}
		*p = expanded
	}

	cfg, err := rtdur.Preset(opts.Preset)
	if err != nil {
		log.Fatalln(err)
	}
	log.Println("Event policy:", cfg)

	var background *volume.Image
	if opts.Background != "" {
		if background, err = volume.Load(opts.Background); err != nil {
			log.Fatalln(err)
		}
	}

	pairs, err := bids.SubjectSessions(opts.BIDSDir, opts.Subject, opts.Session)
	if err != nil {
		log.Fatalln(err)
	}

	if err := writeDatasetDescription(opts.OutDir); err != nil {
		log.Fatalln(err)
	}

	fitted := 0
	for _, pair := range pairs {
		log.Printf("Running first-level GLM for %s\n", pair)

		if err := fitPair(pair, opts, cfg, background); err != nil {
			log.Println("\tSkipping:", err)
			continue
		}
		fitted++
	}

	log.Printf("Fit %d of %d subject/sessions\n", fitted, len(pairs))
}

func fitPair(pair bids.Pair, opts options, cfg rtdur.Config, background *volume.Image) error {
	prefix := pair.Prefix(opts.Task, opts.Acq)
	fmriprepFunc := pair.FuncDir(opts.FmriprepDir)
	spaceRes := fmt.Sprintf("space-%s_res-%s", opts.Space, opts.Res)

	preprocFile := filepath.Join(fmriprepFunc, prefix+"_part-mag_"+spaceRes+"_desc-preproc_bold.nii.gz")
	maskFile := filepath.Join(fmriprepFunc, prefix+"_part-mag_"+spaceRes+"_desc-brain_mask.nii.gz")
	confoundsFile := filepath.Join(fmriprepFunc, prefix+"_part-mag_desc-confounds_timeseries.tsv")
	eventsFile := filepath.Join(pair.FuncDir(opts.BIDSDir), prefix+"_events.tsv")
	rejectedFile := filepath.Join(pair.FuncDir(opts.TedanaDir), prefix+confounds.RejectedSuffix)

	for _, v := range []string{preprocFile, maskFile, confoundsFile, eventsFile, rejectedFile} {
		if _, err := os.Stat(v); err != nil {
			return err
		}
	}

	sidecar, err := bids.ReadSidecar(bids.SidecarPath(preprocFile), nil)
	if err != nil {
		return err
	}
	tr := sidecar.RepetitionTime
	if tr <= 0 {
		return fmt.Errorf("%s has no RepetitionTime", bids.SidecarPath(preprocFile))
	}

	fmriprepConfounds, err := tsv.ReadFile(confoundsFile, nil)
	if err != nil {
		return err
	}
	dummyScans, err := confounds.DummyScans(fmriprepConfounds)
	if err != nil {
		return err
	}
	log.Printf("\t%d dummy scans\n", dummyScans)

	rawEvents, err := events.ReadFile(eventsFile, nil)
	if err != nil {
		return err
	}
	evs, err := rtdur.Reconstruct(rawEvents, cfg)
	if err != nil {
		return err
	}
	evs = evs.ShiftOnsets(float64(dummyScans) * tr)

	rejected, err := tsv.ReadFile(rejectedFile, nil)
	if err != nil {
		return err
	}
	rejected = rejected.Tail(dummyScans)

	maskImage, err := volume.Load(maskFile)
	if err != nil {
		return err
	}
	mask := maskImage.Mask(0.5)
	if len(mask) == 0 {
		return fmt.Errorf("%s is empty", maskFile)
	}

	bold, err := volume.Load(preprocFile)
	if err != nil {
		return err
	}
	if maskImage.Dims[0] != bold.Dims[0] || maskImage.Dims[1] != bold.Dims[1] || maskImage.Dims[2] != bold.Dims[2] {
		return fmt.Errorf("mask dimensions %v do not match BOLD dimensions %v", maskImage.Dims, bold.Dims)
	}

	if err := bold.Smooth(opts.FWHM); err != nil {
		return err
	}

	y, err := bold.Series(mask, dummyScans)
	if err != nil {
		return err
	}
	glm.MeanScale(y)
	nFrames, _ := y.Dims()

	if rejected.Len() != nFrames {
		return fmt.Errorf("tedana rejected time series has %d rows after dummy removal, BOLD has %d volumes", rejected.Len(), nFrames)
	}

	frameTimes := design.FrameTimes(nFrames, tr)
	for i := range frameTimes {
		frameTimes[i] += sidecar.StartTime
	}

	task, err := design.Build(evs, frameTimes, design.Options{
		Columns:  cfg.Labels(),
		HighPass: opts.HighPass,
		Constant: true,
	})
	if err != nil {
		return err
	}
	task, dropped := task.DropEmpty()
	if len(dropped) > 0 {
		log.Printf("\tNo events for %v\n", dropped)
	}

	designFrame, err := task.Frame()
	if err != nil {
		return err
	}
	if len(rejected.Columns) > 0 {
		if designFrame, err = tsv.HStack(designFrame, rejected); err != nil {
			return err
		}
	}

	x, err := designFrame.Matrix()
	if err != nil {
		return err
	}
	log.Printf("\tDesign matrix columns: %v\n", designFrame.Columns)
	log.Printf("\tTotal # regressors in design matrix: %d\n", len(designFrame.Columns))

	fit, err := glm.FitOLS(y, x)
	if err != nil {
		var rankErr *glm.RankDeficientError
		if errors.As(err, &rankErr) {
			log.Println("\tDesign is rank deficient; check the confound columns")
		}
		return err
	}

	weights, err := glm.ContrastVector(designFrame.Columns, opts.Contrast)
	if err != nil {
		return err
	}
	est, err := glm.Contrast(fit, weights)
	if err != nil {
		return err
	}

	outDir := pair.FuncDir(opts.OutDir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return pfx.Err(err)
	}

	outPrefix := filepath.Join(outDir, fmt.Sprintf("%s_space-%s_contrast-%s", prefix, opts.Space, opts.ContrastLabel))
	shape := []int{bold.Dims[2], bold.Dims[1], bold.Dims[0]}

	var zMap []float64
	for _, stat := range statMaps {
		var values []float64
		switch stat {
		case "effect":
			values = est.Effect
		case "variance":
			values = est.Variance
		case "t":
			values = est.T
		case "z":
			values = est.Z
		}

		full, err := volume.Scatter(values, mask, bold.Header)
		if err != nil {
			return err
		}
		if stat == "z" {
			zMap = full
		}

		if err := glm.WriteNpy(outPrefix+"_stat-"+stat+"_statmap.npy", full, shape); err != nil {
			return err
		}
	}

	designPrefix := filepath.Join(outDir, prefix+"_design")
	if err := designFrame.WriteFile(designPrefix + ".tsv"); err != nil {
		return err
	}
	if err := writeDesignPlot(designPrefix+".png", task, frameTimes); err != nil {
		return err
	}

	mosaicOpts := plot.MosaicOptions{
		Threshold: opts.MosaicZ,
		Title:     fmt.Sprintf("%s %s (z, dof=%d)", prefix, opts.Contrast, est.DOF),
	}
	if background != nil {
		if background.NumVoxels() == bold.NumVoxels() {
			mosaicOpts.Background = background.Volume(0)
		} else {
			log.Println("\tBackground grid differs from the BOLD grid; drawing without it")
		}
	}
	if err := writeMosaic(outPrefix+"_stat-z_statmap.png", zMap, [3]int{bold.Dims[0], bold.Dims[1], bold.Dims[2]}, mosaicOpts); err != nil {
		return err
	}

	log.Printf("\tDone fitting GLM for %s (%d voxels, %d frames)\n", pair, len(mask), nFrames)

	return nil
}

func writeDesignPlot(path string, m design.Matrix, frameTimes []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := design.PlotPNG(f, m, frameTimes); err != nil {
		return err
	}

	return pfx.Err(f.Close())
}

func writeMosaic(path string, values []float64, dims [3]int, opts plot.MosaicOptions) error {
	img, err := plot.Mosaic(values, dims, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := plot.WritePNG(f, img); err != nil {
		return err
	}

	return pfx.Err(f.Close())
}

type generatedBy struct {
	Name string `json:"Name"`
}

type datasetDescription struct {
	Name        string        `json:"Name"`
	BIDSVersion string        `json:"BIDSVersion"`
	DatasetType string        `json:"DatasetType"`
	GeneratedBy []generatedBy `json:"GeneratedBy"`
}

func writeDatasetDescription(outDir string) error {
	path := filepath.Join(outDir, "dataset_description.json")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return pfx.Err(err)
	}

	desc := datasetDescription{
		Name:        filepath.Base(outDir),
		BIDSVersion: "1.9.0",
		DatasetType: "derivative",
		GeneratedBy: []generatedBy{{Name: "fracback firstlevel"}},
	}

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.WriteFile(path, append(data, '\n'), 0644))
}
