package rtdur

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// DefaultResponseLabel is the trial type given to response-locked events.
const DefaultResponseLabel = "RTDur"

// DefaultResponseCeiling is the longest response time, in seconds, that is
// considered a genuine response to the current trial.
const DefaultResponseCeiling = 2.0

// Config controls how Reconstruct selects, relabels and duplicates events.
type Config struct {
	// ConditionLabels maps accepted trial_type tokens to their output
	// labels. It must be one-to-one.
	ConditionLabels map[string]string

	// CaseSensitive disables lower-casing of trial_type values and tokens
	// before matching. Matching is then exact, without trimming whitespace.
	CaseSensitive bool

	// ResponseCeiling, when valid, marks response times strictly above it as
	// absent.
	ResponseCeiling null.Float

	// ResponseLabel is the trial_type of the response-locked events.
	ResponseLabel string

	// KeepOtherTrialTypes passes events that match no condition through
	// unchanged instead of dropping them. They never produce response
	// events.
	KeepOtherTrialTypes bool
}

// FracbackConditions is the condition mapping of the fractal n-back task.
func FracbackConditions() map[string]string {
	return map[string]string{
		"0back": "zero_back",
		"2back": "two_back",
	}
}

// DefaultConfig matches condition tokens case-insensitively and applies the
// 2 second response ceiling.
func DefaultConfig() Config {
	return Config{
		ConditionLabels: FracbackConditions(),
		ResponseCeiling: null.FloatFrom(DefaultResponseCeiling),
		ResponseLabel:   DefaultResponseLabel,
	}
}

// GLMConfig is the policy used when building first-level GLM events:
// case-sensitive matching with the 2 second response ceiling.
func GLMConfig() Config {
	c := DefaultConfig()
	c.CaseSensitive = true

	return c
}

// DenoiseConfig is the policy used for the task regressors handed to
// multi-echo denoising: case-insensitive matching and no response ceiling.
func DenoiseConfig() Config {
	c := DefaultConfig()
	c.ResponseCeiling = null.Float{}

	return c
}

// Preset returns a named configuration: "default", "glm" or "denoise".
func Preset(name string) (Config, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultConfig(), nil
	case "glm", "firstlevel":
		return GLMConfig(), nil
	case "denoise", "tedana":
		return DenoiseConfig(), nil
	}

	return Config{}, fmt.Errorf("unknown rtdur preset %q (expected default, glm or denoise)", name)
}

// Validate checks that the configuration describes a usable, one-to-one
// relabeling.
func (c Config) Validate() error {
	if len(c.ConditionLabels) == 0 {
		return fmt.Errorf("no condition labels configured")
	}

	if c.ResponseLabel == "" {
		return fmt.Errorf("response label must not be empty")
	}

	if c.ResponseCeiling.Valid && c.ResponseCeiling.Float64 <= 0 {
		return fmt.Errorf("response ceiling must be positive, got %g", c.ResponseCeiling.Float64)
	}

	tokens := make(map[string]string)
	outputs := make(map[string]string)
	for token, label := range c.ConditionLabels {
		if strings.TrimSpace(token) == "" || label == "" {
			return fmt.Errorf("condition %q -> %q: tokens and labels must not be empty", token, label)
		}

		if label == c.ResponseLabel {
			return fmt.Errorf("condition %q maps to the response label %q", token, label)
		}

		if prior, exists := outputs[label]; exists {
			return fmt.Errorf("conditions %q and %q both map to %q", prior, token, label)
		}
		outputs[label] = token

		key := c.normalize(token)
		if prior, exists := tokens[key]; exists {
			return fmt.Errorf("conditions %q and %q are indistinguishable when matching", prior, token)
		}
		tokens[key] = token
	}

	return nil
}

// Labels returns the regressor names produced under c: the condition labels
// ordered by their tokens, then the response label.
func (c Config) Labels() []string {
	tokens := make([]string, 0, len(c.ConditionLabels))
	for token := range c.ConditionLabels {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	out := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		out = append(out, c.ConditionLabels[token])
	}

	return append(out, c.ResponseLabel)
}

func (c Config) String() string {
	ceiling := "none"
	if c.ResponseCeiling.Valid {
		ceiling = fmt.Sprintf("%gs", c.ResponseCeiling.Float64)
	}

	tokens := make([]string, 0, len(c.ConditionLabels))
	for token := range c.ConditionLabels {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	pairs := make([]string, 0, len(tokens))
	for _, token := range tokens {
		pairs = append(pairs, token+"->"+c.ConditionLabels[token])
	}

	return fmt.Sprintf("conditions=[%s] case_sensitive=%t ceiling=%s response_label=%s keep_other=%t",
		strings.Join(pairs, " "), c.CaseSensitive, ceiling, c.ResponseLabel, c.KeepOtherTrialTypes)
}

func (c Config) normalize(trialType string) string {
	if c.CaseSensitive {
		return trialType
	}

	return strings.ToLower(strings.TrimSpace(trialType))
}

// lookup returns a map from normalized token to output label.
func (c Config) lookup() map[string]string {
	out := make(map[string]string, len(c.ConditionLabels))
	for token, label := range c.ConditionLabels {
		out[c.normalize(token)] = label
	}

	return out
}
