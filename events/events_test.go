package events

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/guregu/null.v3"
)

const sampleEvents = "onset\tduration\ttrial_type\tresponse_time\tstimulus\n" +
	"0\t2\t0back\t0.8\tstimuli/fnb_formB_19.jpg\n" +
	"2\t2\t2back\tn/a\tstimuli/fnb_formB_03.jpg\n" +
	"4\t2\tfixation\tNaN\tstimuli/crosshair.jpg\n"

func TestRead(t *testing.T) {
	tab, err := Read(strings.NewReader(sampleEvents))
	if err != nil {
		t.Fatal(err)
	}

	if tab.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", tab.Len())
	}

	if len(tab.ExtraColumns) != 1 || tab.ExtraColumns[0] != "stimulus" {
		t.Errorf("unexpected extra columns %v", tab.ExtraColumns)
	}

	first := tab.Events[0]
	if first.Onset != 0 || first.Duration != 2 || first.TrialType != "0back" || first.ResponseTime != null.FloatFrom(0.8) {
		t.Errorf("unexpected first event %+v", first)
	}
	if first.Extra["stimulus"] != "stimuli/fnb_formB_19.jpg" {
		t.Errorf("unexpected stimulus %q", first.Extra["stimulus"])
	}

	for _, v := range tab.Events[1:] {
		if v.ResponseTime.Valid {
			t.Errorf("expected absent response time for %+v", v)
		}
	}
}

func TestReadMissingColumns(t *testing.T) {
	for _, v := range []struct {
		input   string
		missing []string
	}{
		{"onset\tduration\ttrial_type\n0\t2\t0back\n", []string{"response_time"}},
		{"onset\ttrial_type\n0\t0back\n", []string{"duration", "response_time"}},
		{"", Required},
	} {
		_, err := Read(strings.NewReader(v.input))

		var mce *MissingColumnsError
		if !errors.As(err, &mce) {
			t.Fatalf("%q: expected MissingColumnsError, got %v", v.input, err)
		}

		if strings.Join(mce.Columns, ",") != strings.Join(v.missing, ",") {
			t.Errorf("%q: expected missing %v, got %v", v.input, v.missing, mce.Columns)
		}

		for _, col := range v.missing {
			if !strings.Contains(err.Error(), col) {
				t.Errorf("error %q does not name column %s", err, col)
			}
		}
	}
}

func TestReadBadNumbers(t *testing.T) {
	for _, v := range []struct {
		input  string
		column string
	}{
		{"onset\tduration\ttrial_type\tresponse_time\n0\t2\t0back\tfast\n", "response_time"},
		{"onset\tduration\ttrial_type\tresponse_time\nx\t2\t0back\t0.5\n", "onset"},
		{"onset\tduration\ttrial_type\tresponse_time\n0\t-2\t0back\t0.5\n", "duration"},
		{"onset\tduration\ttrial_type\tresponse_time\nn/a\t2\t0back\t0.5\n", "onset"},
		{"onset\tduration\ttrial_type\tresponse_time\n0\t2\t0back\t-0.5\n", "response_time"},
		{"onset\tduration\ttrial_type\tresponse_time\n4\t2\t2back\tinf\n", "response_time"},
	} {
		_, err := Read(strings.NewReader(v.input))

		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%q: expected ParseError, got %v", v.input, err)
		}
		if pe.Column != v.column || pe.Row != 1 {
			t.Errorf("%q: expected row 1 column %s, got row %d column %s", v.input, v.column, pe.Row, pe.Column)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	tab, err := Read(strings.NewReader(sampleEvents))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, tab); err != nil {
		t.Fatal(err)
	}

	expected := "onset\tduration\ttrial_type\tresponse_time\tstimulus\n" +
		"0\t2\t0back\t0.8\tstimuli/fnb_formB_19.jpg\n" +
		"2\t2\t2back\tn/a\tstimuli/fnb_formB_03.jpg\n" +
		"4\t2\tfixation\tn/a\tstimuli/crosshair.jpg\n"
	if buf.String() != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, buf.String())
	}
}

func TestWriteFileReadFile(t *testing.T) {
	tab, err := Read(strings.NewReader(sampleEvents))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "sub-01_ses-1_task-fracback_acq-MBME_events.tsv")
	if err := WriteFile(path, tab); err != nil {
		t.Fatal(err)
	}

	back, err := ReadFile(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if back.Len() != tab.Len() {
		t.Fatalf("expected %d events, got %d", tab.Len(), back.Len())
	}
}

func TestCloneDoesNotShare(t *testing.T) {
	tab, err := Read(strings.NewReader(sampleEvents))
	if err != nil {
		t.Fatal(err)
	}

	c := tab.Clone()
	c.Events[0].TrialType = "changed"
	c.Events[0].Extra["stimulus"] = "changed"

	if tab.Events[0].TrialType != "0back" || tab.Events[0].Extra["stimulus"] != "stimuli/fnb_formB_19.jpg" {
		t.Error("clone shares memory with its source")
	}
}

func TestShiftOnsets(t *testing.T) {
	tab, err := Read(strings.NewReader(sampleEvents))
	if err != nil {
		t.Fatal(err)
	}

	shifted := tab.ShiftOnsets(1.5)
	if shifted.Len() != 2 {
		t.Fatalf("expected 2 events after shifting, got %d", shifted.Len())
	}
	if shifted.Events[0].Onset != 0.5 || shifted.Events[1].Onset != 2.5 {
		t.Errorf("unexpected onsets %v, %v", shifted.Events[0].Onset, shifted.Events[1].Onset)
	}
	if tab.Events[0].Onset != 0 {
		t.Error("ShiftOnsets modified its input")
	}
}

func TestSummarize(t *testing.T) {
	tab := Table{Events: []Event{
		{Onset: 0, Duration: 2, TrialType: "0back", ResponseTime: null.FloatFrom(0.4)},
		{Onset: 2, Duration: 2, TrialType: "0back", ResponseTime: null.FloatFrom(0.6)},
		{Onset: 4, Duration: 2, TrialType: "2back", ResponseTime: null.FloatFrom(1.1)},
		{Onset: 6, Duration: 2, TrialType: "2back"},
	}}

	s, err := Summarize(tab)
	if err != nil {
		t.Fatal(err)
	}

	if s.Trials != 4 || s.Responses != 3 {
		t.Errorf("unexpected counts %+v", s)
	}
	if math.Abs(s.MeanRT-0.7) > 1e-9 || math.Abs(s.MedianRT-0.6) > 1e-9 {
		t.Errorf("unexpected RT stats %+v", s)
	}
	if s.MinRT != 0.4 || s.MaxRT != 1.1 {
		t.Errorf("unexpected RT range %+v", s)
	}

	empty, err := Summarize(Table{})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(empty.MeanRT) {
		t.Errorf("expected NaN mean for no responses, got %v", empty.MeanRT)
	}
}
