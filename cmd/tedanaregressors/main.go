// tedanaregressors prepares the inputs of a tedana run for every multi-echo
// BOLD run: the fMRIPrep echo files, echo times, brain mask, number of dummy
// scans, and an external regressors table of motion parameters plus, for
// fracback runs, the ConsDurRTDur task regressors.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/fracback"
	"github.com/carbocation/fracback/bids"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/confounds"
	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/rtdur"
	"github.com/carbocation/fracback/tsv"
	"github.com/carbocation/fracback/volume"
)

const echo1Suffix = "_echo-1_part-mag_bold.nii.gz"

type options struct {
	RawDir      string
	FmriprepDir string
	OutDir      string
	Subject     string
	Session     string
	Preset      string
	HighPass    float64
	Overwrite   bool
}

func main() {
	var opts options

	flag.StringVar(&opts.RawDir, "raw-dir", "", "BIDS raw directory (expects sub-*/ses-*/func).")
	flag.StringVar(&opts.FmriprepDir, "fmriprep-dir", "", "fMRIPrep derivatives directory.")
	flag.StringVar(&opts.OutDir, "tedana-out-dir", "", "Destination derivatives directory for tedana inputs and outputs.")
	flag.StringVar(&opts.Subject, "subject", "", "Optional subject label (with or without sub- prefix) to restrict processing.")
	flag.StringVar(&opts.Session, "session", "", "Optional session label (with or without ses- prefix) to restrict processing.")
	flag.StringVar(&opts.Preset, "preset", "denoise", "rtdur policy preset used for the task regressors.")
	flag.Float64Var(&opts.HighPass, "motion-high-pass", 0, "If positive, high-pass filter the motion parameters with this cutoff in Hz.")
	flag.BoolVar(&opts.Overwrite, "overwrite", false, "Prepare runs that already have a tedana report.")
	flag.Parse()

	if opts.RawDir == "" || opts.FmriprepDir == "" || opts.OutDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	for _, p := range []*string{&opts.RawDir, &opts.FmriprepDir, &opts.OutDir} {
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

	baseFiles, err := echo1Files(opts)
	if err != nil {
		log.Fatalln(err)
	}

	prepared := 0
	for _, baseFile := range baseFiles {
		log.Println(filepath.Base(baseFile))

		if err := prepareRun(baseFile, opts, cfg); err != nil {
			log.Println("\tSkipping:", err)
			continue
		}
		prepared++
	}

	log.Printf("Prepared %d of %d runs\n", prepared, len(baseFiles))
}

func echo1Files(opts options) ([]string, error) {
	pairs, err := bids.SubjectSessions(opts.RawDir, opts.Subject, opts.Session)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range pairs {
		matches, err := filepath.Glob(filepath.Join(p.FuncDir(opts.RawDir), "sub-*_ses-*"+echo1Suffix))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Strings(out)

	if len(out) == 0 {
		return nil, fmt.Errorf("no *%s files found under %s", echo1Suffix, opts.RawDir)
	}

	return out, nil
}

func prepareRun(baseFile string, opts options, cfg rtdur.Config) error {
	baseName := filepath.Base(baseFile)
	parts := strings.Split(baseName, "_")
	pair := bids.Pair{Subject: parts[0], Session: parts[1]}
	prefix := strings.SplitN(baseName, "_echo-1", 2)[0]

	fmriprepFunc := pair.FuncDir(opts.FmriprepDir)
	runOutDir := pair.FuncDir(opts.OutDir)

	if !opts.Overwrite {
		if _, err := os.Stat(filepath.Join(runOutDir, prefix+confounds.ReportSuffix)); err == nil {
			return fmt.Errorf("tedana already ran for %s", prefix)
		}
	}

	mask := filepath.Join(fmriprepFunc, prefix+"_part-mag_desc-brain_mask.nii.gz")
	if _, err := os.Stat(mask); err != nil {
		return err
	}

	confoundsTable, err := tsv.ReadFile(filepath.Join(fmriprepFunc, prefix+"_part-mag_desc-confounds_timeseries.tsv"), nil)
	if err != nil {
		return err
	}

	dummyScans, err := confounds.DummyScans(confoundsTable)
	if err != nil {
		return err
	}
	log.Printf("\t%d dummy scans\n", dummyScans)

	echoFiles, err := bids.EchoFiles(baseFile)
	if err != nil {
		return err
	}

	inputs := confounds.TedanaInputs{
		Prefix:     prefix,
		Mask:       mask,
		OutDir:     runOutDir,
		DummyScans: dummyScans,
		Tree:       confounds.TreeFor(prefix),
	}

	for _, echoFile := range echoFiles {
		sidecar, err := bids.ReadSidecar(bids.SidecarPath(echoFile), nil)
		if err != nil {
			return err
		}
		inputs.EchoTimes = append(inputs.EchoTimes, sidecar.EchoTime*1000)

		query := strings.TrimSuffix(filepath.Base(echoFile), "_bold.nii.gz")
		preproc := filepath.Join(fmriprepFunc, query+"_desc-preproc_bold.nii.gz")

		hdr, err := volume.LoadHeader(preproc)
		if err != nil {
			return err
		}
		if inputs.Volumes == 0 {
			inputs.RepetitionTime = hdr.TR
			inputs.Volumes = hdr.NumVolumes()
		}

		inputs.Data = append(inputs.Data, preproc)
	}

	if inputs.RepetitionTime <= 0 || inputs.Volumes == 0 {
		return fmt.Errorf("unable to determine TR or volume count for %s", baseName)
	}

	motion, err := confounds.Motion(confoundsTable)
	if err != nil {
		return err
	}
	if motion.Len() != inputs.Volumes {
		return fmt.Errorf("motion confounds (%d) do not match volumes (%d)", motion.Len(), inputs.Volumes)
	}

	if opts.HighPass > 0 {
		if err := confounds.HighPassFrame(motion, opts.HighPass, inputs.RepetitionTime); err != nil {
			return err
		}
	}

	regressors := motion
	if strings.Contains(prefix, "task-fracback") {
		eventsFile := strings.TrimSuffix(baseFile, echo1Suffix) + "_events.tsv"

		evs, err := events.ReadFile(eventsFile, nil)
		if err != nil {
			return err
		}

		regressors, err = confounds.TaskRegressors(motion, evs, inputs.Volumes, inputs.RepetitionTime, cfg)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(runOutDir, 0755); err != nil {
		return err
	}

	inputs.ExternalRegressors = filepath.Join(runOutDir, prefix+confounds.ConfoundSuffix)
	if err := regressors.WriteFile(inputs.ExternalRegressors); err != nil {
		return err
	}

	manifest := filepath.Join(runOutDir, prefix+confounds.ManifestSuffix)
	if err := inputs.WriteFile(manifest); err != nil {
		return err
	}

	log.Printf("\tWrote %s with %d regressors and %d echoes\n", filepath.Base(manifest), len(regressors.Columns), len(inputs.Data))

	return nil
}
