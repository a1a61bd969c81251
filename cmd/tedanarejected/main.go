// tedanarejected collects the time series of the ICA components that tedana
// rejected for each run, padded with zeros for the dummy scans tedana
// skipped, for use as nuisance regressors in first-level models.
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
	"github.com/carbocation/fracback/tsv"
)

func main() {
	var tedanaDir, subject, session string

	flag.StringVar(&tedanaDir, "tedana-out-dir", "", "tedana derivatives directory containing the *"+confounds.ManifestSuffix+" files written by tedanaregressors.")
	flag.StringVar(&subject, "subject", "", "Optional subject label (with or without sub- prefix) to restrict processing.")
	flag.StringVar(&session, "session", "", "Optional session label (with or without ses- prefix) to restrict processing.")
	flag.Parse()

	if tedanaDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	tedanaDir, err := fracback.ExpandHome(tedanaDir)
	if err != nil {
		log.Fatalln(err)
	}

	pairs, err := bids.SubjectSessions(tedanaDir, subject, session)
	if err != nil {
		log.Fatalln(err)
	}

	var manifests []string
	for _, p := range pairs {
		matches, err := filepath.Glob(filepath.Join(p.FuncDir(tedanaDir), "*"+confounds.ManifestSuffix))
		if err != nil {
			log.Fatalln(err)
		}
		manifests = append(manifests, matches...)
	}
	sort.Strings(manifests)

	if len(manifests) == 0 {
		log.Fatalf("No *%s files found under %s\n", confounds.ManifestSuffix, tedanaDir)
	}

	for _, manifest := range manifests {
		log.Println(strings.TrimSuffix(filepath.Base(manifest), confounds.ManifestSuffix))

		n, err := writeRejected(manifest)
		if err != nil {
			log.Println("\tSkipping:", err)
			continue
		}
		log.Printf("\t%d rejected components\n", n)
	}
}

func writeRejected(manifest string) (int, error) {
	inputs, err := confounds.ReadTedanaInputs(manifest)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(manifest)
	prefix := inputs.Prefix
	if prefix == "" {
		return 0, fmt.Errorf("%s has no prefix", manifest)
	}

	mixing, err := tsv.ReadFile(filepath.Join(dir, prefix+confounds.MixingSuffix), nil)
	if err != nil {
		return 0, err
	}

	metrics, err := tsv.ReadFile(filepath.Join(dir, prefix+confounds.MetricsSuffix), nil)
	if err != nil {
		return 0, err
	}

	rejected, err := confounds.RejectedTimeseries(mixing, metrics, inputs.DummyScans)
	if err != nil {
		return 0, err
	}

	if inputs.Volumes > 0 && rejected.Len() != inputs.Volumes {
		return 0, fmt.Errorf("rejected time series has %d rows but the run has %d volumes", rejected.Len(), inputs.Volumes)
	}

	if err := rejected.WriteFile(filepath.Join(dir, prefix+confounds.RejectedSuffix)); err != nil {
		return 0, err
	}

	return len(rejected.Columns), nil
}
