// anonymize prepares a BIDS dataset for sharing. With -id-map it replaces
// subject IDs in every path and in every .tsv and .json file. With
// -acq-times it shifts each subject's scan acquisition times so that the
// first session falls on the baseline date. Files are overwritten in place.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/fracback"
	"github.com/carbocation/fracback/bids"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/curation"
	"github.com/carbocation/fracback/tsv"
)

func main() {
	var root, idMapFile, baselineString string
	var acqTimes bool

	flag.StringVar(&root, "root", "", "BIDS dataset to anonymize in place.")
	flag.StringVar(&idMapFile, "id-map", "", "Tab-separated table with original_id and bids_id columns, e.g. sub-1234 to sub-01.")
	flag.BoolVar(&acqTimes, "acq-times", false, "Shift acquisition times in the *_scans.tsv files onto the baseline date.")
	flag.StringVar(&baselineString, "baseline", curation.Baseline.Format("2006-01-02"), "Date that each subject's first session is moved to.")
	flag.Parse()

	if root == "" || (idMapFile == "" && !acqTimes) {
		flag.PrintDefaults()
		os.Exit(1)
	}

	root, err := fracback.ExpandHome(root)
	if err != nil {
		log.Fatalln(err)
	}

	if idMapFile != "" {
		idMap, err := bids.ReadIDMapFile(idMapFile, nil)
		if err != nil {
			log.Fatalln(err)
		}

		renamed, rewritten, err := curation.RenameSubjects(root, idMap)
		if err != nil {
			log.Fatalln(err)
		}
		log.Printf("Renamed %d paths and rewrote %d files for %d subjects\n", renamed, rewritten, len(idMap))
	}

	if acqTimes {
		baseline, err := dateparse.ParseIn(baselineString, time.UTC)
		if err != nil {
			log.Fatalln(err)
		}

		if err := anonymizeAcqTimes(root, baseline); err != nil {
			log.Fatalln(err)
		}
	}
}

func anonymizeAcqTimes(root string, baseline time.Time) error {
	pairs, err := bids.SubjectSessions(root, "", "")
	if err != nil {
		return err
	}

	var subjects []string
	seen := make(map[string]struct{})
	for _, p := range pairs {
		if _, exists := seen[p.Subject]; exists {
			continue
		}
		seen[p.Subject] = struct{}{}
		subjects = append(subjects, p.Subject)
	}

	for _, subject := range subjects {
		log.Println("Processing", subject)

		files, err := curation.ScansFiles(filepath.Join(root, subject))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			log.Println("\tNo scans files")
			continue
		}

		sessions := make([]tsv.Frame, 0, len(files))
		for _, file := range files {
			frame, err := tsv.ReadFile(file, nil)
			if err != nil {
				return err
			}
			sessions = append(sessions, frame)
		}

		shifted, err := curation.AnonymizeAcqTimes(sessions, baseline)
		if err != nil {
			log.Println("\tSkipping:", err)
			continue
		}

		for i, file := range files {
			log.Printf("\t%s\n", filepath.Base(filepath.Dir(file)))
			if err := shifted[i].WriteFile(file); err != nil {
				return err
			}
		}
	}

	return nil
}
