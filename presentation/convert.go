package presentation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/tsv"
	"gopkg.in/guregu/null.v3"
)

// Stimulus files with a fixed role in the task.
const (
	CrosshairStimulus   = "stimuli/crosshair.jpg"
	FixationStimulus    = "stimuli/mask_Fix_xhair.jpg"
	ZeroBackInstruction = "stimuli/2back_img_0.jpg"
	TwoBackInstruction  = "stimuli/2back_img_2.jpg"
	ZeroBackTarget      = "stimuli/fnb_formB_19.jpg"
)

// Trial types written to the events table.
const (
	TrialFixation    = "fixation"
	TrialInstruction = "instruction"
	TrialZeroBack    = "0back"
	TrialTwoBack     = "2back"
)

// Signal detection outcomes of a trial.
const (
	TruePositive  = "true positive"
	TrueNegative  = "true negative"
	FalsePositive = "false positive"
	FalseNegative = "false negative"
)

// Extra columns written after the required events columns.
var ExtraColumns = []string{"classification", "stimulus", "trial_number"}

// Convert builds the events table of one run from its parsed log and the
// stimulus tables of the task.
//
// Each "pic1" picture in the log is matched, in order, to an ungrouped
// stimulus whose event_type is trial. Crosshair trials are then dropped and
// the rest are numbered from 1. Every response is assigned to the latest
// trial shown strictly before it, the last such response winning. Rows and
// durations come from the grouped table, whose onsets are the cumulative
// durations of the rows before them.
func Convert(log tsv.Frame, ungrouped, grouped []Stimulus) (events.Table, error) {
	picTimes, responseTimes, err := logTimes(log)
	if err != nil {
		return events.Table{}, err
	}

	rts := make(map[int]float64)
	var orderedTimes []float64
	stimulusIdx := 0
	for _, s := range ungrouped {
		if s.EventType != "trial" {
			continue
		}

		t := math.NaN()
		if stimulusIdx < len(picTimes) {
			t = picTimes[stimulusIdx]
		}
		stimulusIdx++

		if s.StimFile == CrosshairStimulus {
			continue
		}

		orderedTimes = append(orderedTimes, t)
	}

	for _, resp := range responseTimes {
		latest := -1
		for i, t := range orderedTimes {
			if resp > t {
				latest = i
			}
		}
		if latest >= 0 {
			rts[latest+1] = (resp - orderedTimes[latest]) / TimeUnitsPerSecond
		}
	}

	out := events.Table{ExtraColumns: append([]string(nil), ExtraColumns...)}

	onset := 0.0
	condition := ""
	var trialStimuli []string
	for _, s := range grouped {
		ev := events.Event{
			Onset:    onset,
			Duration: s.Duration,
			Extra: map[string]string{
				"stimulus": s.StimFile,
			},
		}
		onset += s.Duration

		ev.TrialType = trialType(s.StimFile, &condition)

		if n, ok := s.TrialNumber(); ok {
			ev.Extra["trial_number"] = strconv.Itoa(n)
			if n < 1 || n > len(orderedTimes) {
				return events.Table{}, fmt.Errorf("grouped stimulus %s refers to trial %d, but only %d trials were found", s.StimFile, n, len(orderedTimes))
			}
			if rt, ok := rts[n]; ok {
				ev.ResponseTime = null.FloatFrom(rt)
			}
		}

		responded := ev.ResponseTime.Valid && ev.ResponseTime.Float64 > 0

		switch ev.TrialType {
		case TrialZeroBack:
			ev.Extra["classification"] = classify(responded, s.StimFile == ZeroBackTarget)
		case TrialTwoBack:
			twoBefore := ""
			if len(trialStimuli) >= 2 {
				twoBefore = trialStimuli[len(trialStimuli)-2]
			}
			ev.Extra["classification"] = classify(responded, s.StimFile == twoBefore)
		}

		if ev.TrialType == TrialZeroBack || ev.TrialType == TrialTwoBack {
			trialStimuli = append(trialStimuli, s.StimFile)
		}

		out.Events = append(out.Events, ev)
	}

	return out, nil
}

// trialType labels a grouped row, tracking the block condition set by the
// most recent instruction screen.
func trialType(stimFile string, condition *string) string {
	switch stimFile {
	case FixationStimulus, CrosshairStimulus:
		return TrialFixation
	case ZeroBackInstruction:
		*condition = TrialZeroBack
		return TrialInstruction
	case TwoBackInstruction:
		*condition = TrialTwoBack
		return TrialInstruction
	}

	if *condition == "" {
		return "trial"
	}

	return *condition
}

func classify(responded, target bool) string {
	switch {
	case responded && target:
		return TruePositive
	case responded:
		return FalsePositive
	case target:
		return FalseNegative
	}

	return TrueNegative
}

// logTimes returns the times of the pic1 pictures and of the responses, in
// log order.
func logTimes(log tsv.Frame) (pics, responses []float64, err error) {
	cols, err := log.Select(ColumnEventType, ColumnCode, ColumnTime)
	if err != nil {
		return nil, nil, err
	}

	for i, row := range cols.Rows {
		eventType, code, cell := row[0], row[1], row[2]
		if eventType != "Picture" && eventType != "Response" {
			continue
		}
		if eventType == "Picture" && code != "pic1" {
			continue
		}

		t, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("log row %d: bad %s %q: %w", i+1, ColumnTime, cell, err)
		}

		if eventType == "Picture" {
			pics = append(pics, t)
		} else {
			responses = append(responses, t)
		}
	}

	return pics, responses, nil
}
