// Package rtdur implements the ConsDurRTDur event model (after Jeanette
// Mumford): every condition trial keeps its nominal duration, and each trial
// with a response gets an additional event of the same onset whose duration
// is the response time.
package rtdur

import (
	"fmt"
	"math"

	"github.com/carbocation/fracback/events"
	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"
)

// Reconstruct derives the ConsDurRTDur table from t. Condition trials are
// selected and renamed according to cfg, response times above the ceiling
// are cleared, and one response event per remaining response is appended.
// The result is sorted by onset. t itself is never modified.
//
// A table with no matching trials yields an empty table, not an error. A
// condition trial whose response time is negative or not finite is an error.
func Reconstruct(t events.Table, cfg Config) (events.Table, error) {
	if err := cfg.Validate(); err != nil {
		return events.Table{}, pfx.Err(err)
	}

	labels := cfg.lookup()

	out := events.Table{
		ExtraColumns: append([]string(nil), t.ExtraColumns...),
	}

	var conditions, responses []events.Event
	for i, v := range t.Events {
		label, isCondition := labels[cfg.normalize(v.TrialType)]
		if !isCondition {
			if cfg.KeepOtherTrialTypes {
				conditions = append(conditions, v.Clone())
			}
			continue
		}

		if rt := v.ResponseTime; rt.Valid && (rt.Float64 < 0 || math.IsNaN(rt.Float64) || math.IsInf(rt.Float64, 0)) {
			return events.Table{}, pfx.Err(fmt.Errorf("event %d (%s at %gs): response time %g must be finite and non-negative", i, v.TrialType, v.Onset, rt.Float64))
		}

		trial := v.Clone()
		trial.TrialType = label

		if trial.ResponseTime.Valid && cfg.ResponseCeiling.Valid && trial.ResponseTime.Float64 > cfg.ResponseCeiling.Float64 {
			trial.ResponseTime = null.Float{}
		}

		conditions = append(conditions, trial)

		if !trial.ResponseTime.Valid {
			continue
		}

		response := trial.Clone()
		response.Duration = trial.ResponseTime.Float64
		response.TrialType = cfg.ResponseLabel
		responses = append(responses, response)
	}

	out.Events = make([]events.Event, 0, len(conditions)+len(responses))
	out.Events = append(out.Events, conditions...)
	out.Events = append(out.Events, responses...)
	out.SortByOnset()

	return out, nil
}
