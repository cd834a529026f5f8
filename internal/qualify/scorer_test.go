package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_EmptySnapshotDeclines(t *testing.T) {
	result := Score(Snapshot{}, DefaultRules())

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, DispositionDecline, result.Disposition)
	assert.Contains(t, result.Reasons, "no callback number")
}

func TestScore_AcceptThresholdBoundary(t *testing.T) {
	// Phone (25) + practice area (15) + complete intake (20) + two calls (10)
	// lands exactly on the default accept threshold of 70.
	snapshot := Snapshot{
		HasPhone:          true,
		PracticeAreaMatch: true,
		IntakeComplete:    true,
		CallCount:         2,
	}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, 70, result.Score)
	assert.Equal(t, DispositionAccept, result.Disposition)
}

func TestScore_ReviewThresholdBoundary(t *testing.T) {
	// Phone (25) + name (10) + one call (5) lands exactly on the default
	// review threshold of 40.
	snapshot := Snapshot{
		HasPhone:  true,
		HasName:   true,
		CallCount: 1,
	}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, 40, result.Score)
	assert.Equal(t, DispositionReview, result.Disposition)
}

func TestScore_BelowReviewDeclines(t *testing.T) {
	snapshot := Snapshot{HasPhone: true, HasEmail: true}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, 35, result.Score)
	assert.Equal(t, DispositionDecline, result.Disposition)
}

func TestScore_CallPointsAreCapped(t *testing.T) {
	few := Score(Snapshot{CallCount: 2}, DefaultRules())
	many := Score(Snapshot{CallCount: 50}, DefaultRules())

	assert.Equal(t, 10, few.Score)
	assert.Equal(t, 10, many.Score)
}

func TestScore_DisqualifierForcesDecline(t *testing.T) {
	// A rich snapshot that would otherwise accept.
	snapshot := Snapshot{
		HasPhone:          true,
		HasEmail:          true,
		HasName:           true,
		PracticeAreaMatch: true,
		IntakeComplete:    true,
		CallCount:         3,
		Answers: map[string]interface{}{
			"has_existing_attorney": true,
			"injury_severity":       float64(9),
		},
	}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, DispositionDecline, result.Disposition)
	assert.Equal(t, []string{"disqualifier: has_existing_attorney"}, result.Reasons)
}

func TestScore_DisqualifierTruthyForms(t *testing.T) {
	rules := DefaultRules()

	for _, tc := range []struct {
		name     string
		value    interface{}
		declines bool
	}{
		{"bool true", true, true},
		{"string yes", "yes", true},
		{"string true with spaces", " TRUE ", true},
		{"numeric one", float64(1), true},
		{"bool false", false, false},
		{"string no", "no", false},
		{"numeric zero", float64(0), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			snapshot := Snapshot{
				HasPhone: true,
				HasName:  true,
				Answers:  map[string]interface{}{"no_injury": tc.value},
			}
			result := Score(snapshot, rules)
			if tc.declines {
				assert.Equal(t, 0, result.Score)
				assert.Equal(t, DispositionDecline, result.Disposition)
			} else {
				assert.Equal(t, 35, result.Score)
			}
		})
	}
}

func TestScore_MultipleDisqualifiersReportedInStableOrder(t *testing.T) {
	snapshot := Snapshot{
		Answers: map[string]interface{}{
			"no_injury":             true,
			"has_existing_attorney": true,
		},
	}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, []string{
		"disqualifier: has_existing_attorney",
		"disqualifier: no_injury",
	}, result.Reasons)
}

func TestScore_WeightedAnswerDimensions(t *testing.T) {
	snapshot := Snapshot{
		HasPhone: true,
		Answers: map[string]interface{}{
			"injury_severity":   float64(8),
			"liability_clarity": "7", // numeric strings are accepted
		},
	}

	result := Score(snapshot, DefaultRules())

	// 25 (phone) + 8 + 7
	assert.Equal(t, 40, result.Score)
	assert.Equal(t, DispositionReview, result.Disposition)
}

func TestScore_AnswerRatingsClampToTen(t *testing.T) {
	snapshot := Snapshot{
		Answers: map[string]interface{}{
			"injury_severity":   float64(50),
			"damages_potential": float64(-3),
		},
	}

	result := Score(snapshot, DefaultRules())

	// 50 clamps to 10, -3 clamps to 0.
	assert.Equal(t, 10, result.Score)
}

func TestScore_NonNumericAnswerIgnored(t *testing.T) {
	snapshot := Snapshot{
		Answers: map[string]interface{}{
			"injury_severity": "pretty bad",
			"urgency":         map[string]interface{}{"level": 5},
		},
	}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, 0, result.Score)
}

func TestScore_CustomWeightsScaleAnswers(t *testing.T) {
	rules := DefaultRules()
	rules.Weights.InjurySeverity = 2

	snapshot := Snapshot{
		HasPhone: true,
		Answers:  map[string]interface{}{"injury_severity": float64(8)},
	}

	result := Score(snapshot, rules)

	// 25 (phone) + 8*2
	assert.Equal(t, 41, result.Score)
	assert.Equal(t, DispositionReview, result.Disposition)
}

func TestScore_CapsAtOneHundred(t *testing.T) {
	snapshot := Snapshot{
		HasPhone:          true,
		HasEmail:          true,
		HasName:           true,
		PracticeAreaMatch: true,
		IntakeComplete:    true,
		CallCount:         2,
		Answers: map[string]interface{}{
			"injury_severity":   float64(10),
			"liability_clarity": float64(10),
			"damages_potential": float64(10),
			"urgency":           float64(10),
		},
	}

	result := Score(snapshot, DefaultRules())

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, DispositionAccept, result.Disposition)
}

func TestScore_Deterministic(t *testing.T) {
	snapshot := Snapshot{
		HasPhone:          true,
		HasName:           true,
		PracticeAreaMatch: true,
		CallCount:         1,
		Answers: map[string]interface{}{
			"injury_severity": float64(6),
			"urgency":         float64(4),
		},
	}
	rules := DefaultRules()

	first := Score(snapshot, rules)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(snapshot, rules))
	}
}

func TestScore_DoesNotMutateInputs(t *testing.T) {
	answers := map[string]interface{}{"injury_severity": float64(6)}
	snapshot := Snapshot{HasPhone: true, Answers: answers}
	rules := DefaultRules()

	Score(snapshot, rules)

	assert.Equal(t, map[string]interface{}{"injury_severity": float64(6)}, answers)
	assert.Equal(t, DefaultRules(), rules)
}

func TestDecodeRules_EmptyFallsBackToDefaults(t *testing.T) {
	rules, err := DecodeRules(nil)

	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestDecodeRules_InvalidJSONReturnsDefaultsAndError(t *testing.T) {
	rules, err := DecodeRules([]byte(`{not json`))

	assert.Error(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestDecodeRules_PartialDocumentBackfillsThresholds(t *testing.T) {
	rules, err := DecodeRules([]byte(`{"min_score_for_accept": 85}`))

	require.NoError(t, err)
	assert.Equal(t, 85, rules.MinScoreForAccept)
	assert.Equal(t, DefaultRules().MinScoreForReview, rules.MinScoreForReview)
	assert.Equal(t, DefaultRules().Disqualifiers, rules.Disqualifiers)
}

func TestDecodeRules_CustomDisqualifiersHonored(t *testing.T) {
	rules, err := DecodeRules([]byte(`{"disqualifiers": ["out_of_state"]}`))
	require.NoError(t, err)

	snapshot := Snapshot{
		HasPhone: true,
		Answers: map[string]interface{}{
			"out_of_state":          true,
			"has_existing_attorney": true, // no longer a disqualifier
		},
	}
	result := Score(snapshot, rules)

	assert.Equal(t, []string{"disqualifier: out_of_state"}, result.Reasons)
	assert.Equal(t, DispositionDecline, result.Disposition)
}
