// rtdur rewrites a BIDS events file into the ConsDurRTDur design: condition
// trials keep their duration, and each trial with a response gains a
// response-locked copy lasting as long as the response time.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/fracback"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/rtdur"
	"gopkg.in/guregu/null.v3"
)

func main() {
	var eventsFile, outFile, preset, responseLabel string
	var ceiling float64
	var noCeiling, caseSensitive, keepOther, showHistogram bool
	var bins int

	flag.StringVar(&eventsFile, "events", "", "Path to a BIDS _events.tsv file. May be local, ~/ or gs://, optionally compressed.")
	flag.StringVar(&outFile, "out", "", "Path for the reconstructed events. If empty or -, writes to stdout.")
	flag.StringVar(&preset, "preset", "default", "Policy preset: default, glm or denoise.")
	flag.Float64Var(&ceiling, "ceiling", 0, "Override the preset's response-time ceiling, in seconds. Response times strictly above it are treated as absent. 0 keeps the preset's value.")
	flag.BoolVar(&noCeiling, "no-ceiling", false, "Disable the response-time ceiling entirely.")
	flag.BoolVar(&caseSensitive, "case-sensitive", false, "Match trial types case-sensitively, overriding the preset.")
	flag.BoolVar(&keepOther, "keep-other", false, "Pass trial types that are not conditions (fixation, instruction, ...) through unchanged instead of dropping them.")
	flag.StringVar(&responseLabel, "response-label", "", "Override the trial_type of response-locked events.")
	flag.BoolVar(&showHistogram, "histogram", false, "Print a histogram of the retained response times to stderr.")
	flag.IntVar(&bins, "bins", 10, "Number of histogram bins.")
	flag.Parse()

	if eventsFile == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := rtdur.Preset(preset)
	if err != nil {
		log.Fatalln(err)
	}
	if cfg, err = applyCeiling(cfg, ceiling, noCeiling); err != nil {
		log.Fatalln(err)
	}
	if caseSensitive {
		cfg.CaseSensitive = true
	}
	if keepOther {
		cfg.KeepOtherTrialTypes = true
	}
	if responseLabel != "" {
		cfg.ResponseLabel = responseLabel
	}

	var client *storage.Client
	if fracback.IsGoogleStoragePath(eventsFile) {
		client, err = storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(err)
		}
		defer client.Close()
	}

	if err := run(eventsFile, outFile, cfg, client, showHistogram, bins); err != nil {
		log.Fatalln(err)
	}
}

func run(eventsFile, outFile string, cfg rtdur.Config, client *storage.Client, showHistogram bool, bins int) error {
	log.Println("Using", cfg)

	in, err := events.ReadFile(eventsFile, client)
	if err != nil {
		return err
	}

	out, err := rtdur.Reconstruct(in, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", eventsFile, err)
	}

	// Summarize the condition trials only; response-locked copies would
	// count every response twice.
	trials := conditionTrials(out, cfg)
	summary, err := events.Summarize(trials)
	if err != nil {
		return err
	}
	log.Printf("Read %d events, wrote %d. %s\n", in.Len(), out.Len(), summary)

	if showHistogram {
		if rts := trials.ResponseTimes(); len(rts) > 0 {
			hist := histogram.Hist(bins, rts)
			if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(40)); err != nil {
				return err
			}
		}
	}

	if outFile == "" || outFile == "-" {
		return events.Write(os.Stdout, out)
	}

	if strings.HasPrefix(outFile, "gs://") {
		return fmt.Errorf("writing to Google Storage is not supported: %s", outFile)
	}

	return events.WriteFile(outFile, out)
}

func conditionTrials(t events.Table, cfg rtdur.Config) events.Table {
	out := events.Table{ExtraColumns: t.ExtraColumns}
	for _, v := range t.Events {
		if v.TrialType != cfg.ResponseLabel {
			out.Events = append(out.Events, v)
		}
	}

	return out
}

// applyCeiling overrides the preset's response ceiling. A ceiling of 0 keeps
// the preset's value.
func applyCeiling(cfg rtdur.Config, ceiling float64, noCeiling bool) (rtdur.Config, error) {
	if ceiling < 0 {
		return cfg, fmt.Errorf("-ceiling must not be negative, got %g", ceiling)
	}
	if ceiling > 0 {
		cfg.ResponseCeiling = null.FloatFrom(ceiling)
	}
	if noCeiling {
		cfg.ResponseCeiling = null.Float{}
	}

	return cfg, nil
}
