// convertevents parses fractal n-back Presentation log files and writes
// them as BIDS events files, one per subject and session.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/carbocation/fracback"
	"github.com/carbocation/fracback/bids"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/presentation"
	"github.com/carbocation/pfx"
)

func main() {
	var logGlob, ungroupedFile, groupedFile, idMapFile, outDir, task, acq string

	flag.StringVar(&logGlob, "logs", "", "Glob matching the Presentation log files, e.g. 'sourcedata/task_log_files/*.log'. May be a gs:// pattern.")
	flag.StringVar(&ungroupedFile, "ungrouped", "", "stimuli_and_timing_ungrouped.tsv")
	flag.StringVar(&groupedFile, "grouped", "", "stimuli_and_timing_grouped.tsv")
	flag.StringVar(&idMapFile, "id-map", "", "Optional tab-separated table with original_id and bids_id columns. Logs of unlisted subjects are skipped.")
	flag.StringVar(&outDir, "out", "", "BIDS root to write the events files into.")
	flag.StringVar(&task, "task", "fracback", "Task label.")
	flag.StringVar(&acq, "acq", "MBME", "Acquisition label.")
	flag.Parse()

	if logGlob == "" || ungroupedFile == "" || groupedFile == "" || outDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	outDir, err := fracback.ExpandHome(outDir)
	if err != nil {
		log.Fatalln(err)
	}

	var client *storage.Client
	for _, v := range []string{logGlob, ungroupedFile, groupedFile, idMapFile} {
		if fracback.IsGoogleStoragePath(v) && client == nil {
			client, err = storage.NewClient(context.Background())
			if err != nil {
				log.Fatalln(err)
			}
			defer client.Close()
		}
	}

	ungrouped, err := presentation.ReadStimuliFile(ungroupedFile, client)
	if err != nil {
		log.Fatalln(err)
	}
	grouped, err := presentation.ReadStimuliFile(groupedFile, client)
	if err != nil {
		log.Fatalln(err)
	}

	var idMap map[string]string
	if idMapFile != "" {
		if idMap, err = bids.ReadIDMapFile(idMapFile, client); err != nil {
			log.Fatalln(err)
		}
	}

	logFiles, err := fracback.Glob(logGlob, client)
	if err != nil {
		log.Fatalln(err)
	}

	if len(logFiles) == 0 {
		log.Fatalf("No log files match %s\n", logGlob)
	}

	converted := 0
	for _, logFile := range logFiles {
		pair, err := presentation.SubjectSessionFromLog(logFile, idMap)
		if err != nil {
			log.Println(err)
			continue
		}
		log.Printf("Processing %s %s...\n", pair.Subject, pair.Session)

		outFile := filepath.Join(pair.FuncDir(outDir), pair.Prefix(task, acq)+"_events.tsv")
		if err := convert(logFile, outFile, ungrouped, grouped, client); err != nil {
			log.Println("\tSkipping:", err)
			continue
		}
		converted++
	}

	log.Printf("Converted %d of %d log files\n", converted, len(logFiles))
}

func convert(logFile, outFile string, ungrouped, grouped []presentation.Stimulus, client *storage.Client) error {
	f, err := fracback.Open(logFile, client)
	if err != nil {
		return err
	}
	defer f.Close()

	frame, err := presentation.ParseLog(f)
	if err != nil {
		return pfx.Err(err)
	}

	table, err := presentation.Convert(frame, ungrouped, grouped)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return pfx.Err(err)
	}

	if err := events.WriteFile(outFile, table); err != nil {
		return err
	}

	log.Printf("\tWrote %d events to %s\n", table.Len(), filepath.Base(outFile))

	return nil
}
