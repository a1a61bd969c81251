// Package bids locates subjects, sessions and derived files in BIDS
// datasets by their naming conventions.
package bids

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
)

const (
	SubjectPrefix = "sub-"
	SessionPrefix = "ses-"
)

// SubjectLabel adds the sub- prefix when it is missing.
func SubjectLabel(s string) string {
	if s == "" || strings.HasPrefix(s, SubjectPrefix) {
		return s
	}

	return SubjectPrefix + s
}

// SessionLabel adds the ses- prefix when it is missing.
func SessionLabel(s string) string {
	if s == "" || strings.HasPrefix(s, SessionPrefix) {
		return s
	}

	return SessionPrefix + s
}

// Pair identifies one session of one subject by its prefixed labels, for
// example sub-01 and ses-1.
type Pair struct {
	Subject string `csv:"subject"`
	Session string `csv:"session"`
}

func (p Pair) String() string {
	return p.Subject + "_" + p.Session
}

// SubjectID is the subject label without its prefix.
func (p Pair) SubjectID() string {
	return strings.TrimPrefix(p.Subject, SubjectPrefix)
}

// SessionID is the session label without its prefix.
func (p Pair) SessionID() string {
	return strings.TrimPrefix(p.Session, SessionPrefix)
}

// Dir is the session directory under root.
func (p Pair) Dir(root string) string {
	return filepath.Join(root, p.Subject, p.Session)
}

// FuncDir is the functional data directory of the session under root.
func (p Pair) FuncDir(root string) string {
	return filepath.Join(p.Dir(root), "func")
}

// Prefix is the shared filename prefix of a run, for example
// sub-01_ses-1_task-fracback_acq-MBME.
func (p Pair) Prefix(task, acq string) string {
	parts := []string{p.Subject, p.Session}
	if task != "" {
		parts = append(parts, "task-"+task)
	}
	if acq != "" {
		parts = append(parts, "acq-"+acq)
	}

	return strings.Join(parts, "_")
}

// SubjectSessions lists the session directories of root, sorted. subject
// and session, when not empty, restrict the search and may be given with or
// without their prefixes.
func SubjectSessions(root, subject, session string) ([]Pair, error) {
	subjectGlob := SubjectLabel(subject)
	if subjectGlob == "" {
		subjectGlob = SubjectPrefix + "*"
	}
	sessionGlob := SessionLabel(session)
	if sessionGlob == "" {
		sessionGlob = SessionPrefix + "*"
	}

	matches, err := filepath.Glob(filepath.Join(root, subjectGlob, sessionGlob))
	if err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Pair, 0, len(matches))
	for _, v := range matches {
		stat, err := os.Stat(v)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if !stat.IsDir() {
			continue
		}

		out = append(out, Pair{
			Subject: filepath.Base(filepath.Dir(v)),
			Session: filepath.Base(v),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Session < out[j].Session
	})

	return out, nil
}

// Entities splits a BIDS filename into its key-value entities and its
// suffix. For sub-01_ses-1_echo-2_part-mag_bold.nii.gz the suffix is bold.
func Entities(filename string) (map[string]string, string) {
	base := filepath.Base(filename)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}

	out := make(map[string]string)
	parts := strings.Split(base, "_")
	suffix := ""
	for i, v := range parts {
		kv := strings.SplitN(v, "-", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
			continue
		}
		if i == len(parts)-1 {
			suffix = v
		}
	}

	return out, suffix
}

// EchoFiles returns the sibling files of an echo-1 file for every echo,
// sorted by echo number.
func EchoFiles(echo1File string) ([]string, error) {
	if !strings.Contains(filepath.Base(echo1File), "echo-1") {
		return nil, fmt.Errorf("%s is not an echo-1 file", echo1File)
	}

	dir, base := filepath.Split(echo1File)
	pattern := filepath.Join(dir, strings.Replace(base, "echo-1", "echo-*", 1))

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, pfx.Err(err)
	}

	sort.Slice(matches, func(i, j int) bool {
		ei, _ := Entities(matches[i])
		ej, _ := Entities(matches[j])
		if len(ei["echo"]) != len(ej["echo"]) {
			return len(ei["echo"]) < len(ej["echo"])
		}
		return ei["echo"] < ej["echo"]
	})

	return matches, nil
}
