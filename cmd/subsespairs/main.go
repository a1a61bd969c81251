// subsespairs lists every subject/session directory of a BIDS dataset as a
// tab-separated table, one row per array job.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/carbocation/fracback"
	"github.com/carbocation/fracback/bids"
	_ "github.com/carbocation/fracback/compileinfoprint"
)

func main() {
	var rawDir, outFile, subject, session string

	flag.StringVar(&rawDir, "raw-dir", "", "BIDS raw directory (expects sub-*/ses-*).")
	flag.StringVar(&outFile, "out", "", "Path of the pairs TSV. If empty, writes to stdout.")
	flag.StringVar(&subject, "subject", "", "Optional subject label (with or without sub- prefix).")
	flag.StringVar(&session, "session", "", "Optional session label (with or without ses- prefix).")
	flag.Parse()

	if rawDir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	rawDir, err := fracback.ExpandHome(rawDir)
	if err != nil {
		log.Fatalln(err)
	}

	pairs, err := bids.SubjectSessions(rawDir, subject, session)
	if err != nil {
		log.Fatalln(err)
	}

	if outFile == "" {
		if err := bids.WritePairs(os.Stdout, pairs); err != nil {
			log.Fatalln(err)
		}
		return
	}

	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		log.Fatalln(err)
	}

	f, err := os.Create(outFile)
	if err != nil {
		log.Fatalln(err)
	}

	if err := bids.WritePairs(f, pairs); err != nil {
		f.Close()
		log.Fatalln(err)
	}
	if err := f.Close(); err != nil {
		log.Fatalln(err)
	}

	log.Printf("Wrote %d rows to %s\n", len(pairs), outFile)
}
