package presentation

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/carbocation/fracback/events"
)

const testLog = "Scenario - fracback\n" +
	"Logfile written - 01/01/2023 10:00:00\n" +
	"\n" +
	"Subject\tTrial\tEvent Type\tCode\tTime\tTTime\n" +
	"01_2\t1\tPicture\tinstr0\t0\t0\n" +
	"01_2\t2\tPicture\tpic1\t10000\t0\n" +
	"01_2\t2\tResponse\t1\t15000\t5000\n" +
	"01_2\t3\tPicture\tpic1\t20000\t0\n" +
	"01_2\t4\tPicture\tpic1\t30000\t0\n" +
	"01_2\t5\tPicture\tpic1\t40000\t0\n" +
	"01_2\t5\tResponse\t1\t45000\t5000\n" +
	"01_2\t6\tPicture\tpic1\t50000\t0\n" +
	"01_2\t7\tPicture\tpic1\t60000\n" +
	"01_2\t7\tResponse\t1\t62000\t2000\n" +
	"\n" +
	"{\n" +
	"Event Type\tCode\n" +
	"Picture\tignored\n"

const testUngrouped = "event_type\tstim_file\n" +
	"instruction\tstimuli/2back_img_0.jpg\n" +
	"trial\tstimuli/fnb_formB_19.jpg\n" +
	"trial\tstimuli/crosshair.jpg\n" +
	"trial\tstimuli/fnb_formB_03.jpg\n" +
	"instruction\tstimuli/2back_img_2.jpg\n" +
	"trial\tstimuli/a.jpg\n" +
	"trial\tstimuli/b.jpg\n" +
	"trial\tstimuli/a.jpg\n"

const testGrouped = "stim_file\tduration\ttrial\n" +
	"stimuli/2back_img_0.jpg\t2\t\n" +
	"stimuli/fnb_formB_19.jpg\t1\t1.0\n" +
	"stimuli/mask_Fix_xhair.jpg\t1\t\n" +
	"stimuli/fnb_formB_03.jpg\t1\t2.0\n" +
	"stimuli/mask_Fix_xhair.jpg\t1\t\n" +
	"stimuli/2back_img_2.jpg\t2\t\n" +
	"stimuli/a.jpg\t1\t3.0\n" +
	"stimuli/mask_Fix_xhair.jpg\t1\t\n" +
	"stimuli/b.jpg\t1\t4.0\n" +
	"stimuli/mask_Fix_xhair.jpg\t1\t\n" +
	"stimuli/a.jpg\t1\t5.0\n"

func TestParseLog(t *testing.T) {
	f, err := ParseLog(strings.NewReader(testLog))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(f.Columns, []string{"Subject", "Trial", "Event Type", "Code", "Time", "TTime"}) {
		t.Errorf("unexpected columns %v", f.Columns)
	}
	if f.Len() != 10 {
		t.Fatalf("expected 10 rows, got %d", f.Len())
	}
	// The short row is padded.
	if last := f.Rows[8]; len(last) != 6 || last[5] != "" {
		t.Errorf("expected a padded row, got %q", last)
	}

	if _, err := ParseLog(strings.NewReader("no header here\n")); err == nil {
		t.Errorf("expected an error without a Subject line")
	}
}

func TestParseLogUTF16(t *testing.T) {
	units := utf16.Encode([]rune(testLog))

	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xfe})
	for _, u := range units {
		binary.Write(&buf, binary.LittleEndian, u)
	}

	f, err := ParseLog(&buf)
	if err != nil {
		t.Fatal(err)
	}
	expected, _ := ParseLog(strings.NewReader(testLog))
	if !reflect.DeepEqual(f, expected) {
		t.Errorf("UTF-16 log parsed differently:\n%v\n%v", f, expected)
	}
}

func TestConvert(t *testing.T) {
	log, err := ParseLog(strings.NewReader(testLog))
	if err != nil {
		t.Fatal(err)
	}
	ungrouped, err := ReadStimuli(strings.NewReader(testUngrouped))
	if err != nil {
		t.Fatal(err)
	}
	grouped, err := ReadStimuli(strings.NewReader(testGrouped))
	if err != nil {
		t.Fatal(err)
	}

	tab, err := Convert(log, ungrouped, grouped)
	if err != nil {
		t.Fatal(err)
	}

	type row struct {
		onset          float64
		trialType      string
		rt             float64
		hasRT          bool
		classification string
		trialNumber    string
	}
	expected := []row{
		{0, "instruction", 0, false, "", ""},
		{2, "0back", 0.5, true, TruePositive, "1"},
		{3, "fixation", 0, false, "", ""},
		{4, "0back", 0, false, TrueNegative, "2"},
		{5, "fixation", 0, false, "", ""},
		{6, "instruction", 0, false, "", ""},
		{8, "2back", 0.5, true, FalsePositive, "3"},
		{9, "fixation", 0, false, "", ""},
		{10, "2back", 0, false, TrueNegative, "4"},
		{11, "fixation", 0, false, "", ""},
		{12, "2back", 0.2, true, TruePositive, "5"},
	}

	if tab.Len() != len(expected) {
		t.Fatalf("expected %d events, got %d", len(expected), tab.Len())
	}

	for i, v := range expected {
		ev := tab.Events[i]
		if ev.Onset != v.onset || ev.TrialType != v.trialType {
			t.Errorf("row %d: expected %g %s, got %g %s", i, v.onset, v.trialType, ev.Onset, ev.TrialType)
		}
		if ev.ResponseTime.Valid != v.hasRT || (v.hasRT && ev.ResponseTime.Float64 != v.rt) {
			t.Errorf("row %d: expected response time %g (%v), got %v", i, v.rt, v.hasRT, ev.ResponseTime)
		}
		if ev.Extra["classification"] != v.classification {
			t.Errorf("row %d: expected classification %q, got %q", i, v.classification, ev.Extra["classification"])
		}
		if ev.Extra["trial_number"] != v.trialNumber {
			t.Errorf("row %d: expected trial %q, got %q", i, v.trialNumber, ev.Extra["trial_number"])
		}
	}

	var buf bytes.Buffer
	if err := events.Write(&buf, tab); err != nil {
		t.Fatal(err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if header != "onset\tduration\ttrial_type\tresponse_time\tclassification\tstimulus\ttrial_number" {
		t.Errorf("unexpected header %q", header)
	}
}

func TestConvertBadTrialNumber(t *testing.T) {
	log, _ := ParseLog(strings.NewReader(testLog))
	ungrouped, _ := ReadStimuli(strings.NewReader(testUngrouped))
	grouped := []Stimulus{{StimFile: "stimuli/a.jpg", Duration: 1, Trial: "9"}}

	if _, err := Convert(log, ungrouped, grouped); err == nil {
		t.Errorf("expected an error for an unknown trial number")
	}
}

func TestSubjectSessionFromLog(t *testing.T) {
	p, err := SubjectSessionFromLog("/logs/01_2-fracback_formB.log", map[string]string{"01": "sub-01"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Subject != "sub-01" || p.Session != "ses-2" {
		t.Errorf("unexpected pair %+v", p)
	}

	p, err = SubjectSessionFromLog("07_1-fracback.log", nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Subject != "sub-07" || p.Session != "ses-1" {
		t.Errorf("unexpected pair %+v", p)
	}

	if _, err := SubjectSessionFromLog("99_1-fracback.log", map[string]string{"01": "sub-01"}); err == nil {
		t.Errorf("expected an error for an unmapped subject")
	}
	if _, err := SubjectSessionFromLog("fracback.log", nil); err == nil {
		t.Errorf("expected an error for a malformed name")
	}
}
