package qualify

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Dispositions a scored lead can receive.
const (
	DispositionAccept  = "accept"
	DispositionReview  = "review"
	DispositionDecline = "decline"
)

// Answer keys carrying the weighted assessment dimensions. Values are
// expected on a 0-10 scale as captured by the intake conversation.
const (
	AnswerInjurySeverity   = "injury_severity"
	AnswerLiabilityClarity = "liability_clarity"
	AnswerDamagesPotential = "damages_potential"
	AnswerUrgency          = "urgency"
)

// Presence sub-scores. Tuned so that a lead with a callback number, a
// matched practice area, a complete intake, and two calls clears the default
// accept threshold of 70.
const (
	pointsPhone          = 25
	pointsEmail          = 10
	pointsName           = 10
	pointsPracticeArea   = 15
	pointsIntakeComplete = 20
	pointsPerCall        = 5
	maxCallPoints        = 10
	maxScore             = 100
)

// Weights scale the 0-10 assessment answers into bonus points.
type Weights struct {
	InjurySeverity   float64 `json:"injury_severity"`
	LiabilityClarity float64 `json:"liability_clarity"`
	DamagesPotential float64 `json:"damages_potential"`
	Urgency          float64 `json:"urgency"`
}

// Rules is the per-organization scorer configuration, stored as JSON on the
// Organization row.
type Rules struct {
	MinScoreForAccept int      `json:"min_score_for_accept"`
	MinScoreForReview int      `json:"min_score_for_review"`
	Weights           Weights  `json:"weights"`
	Disqualifiers     []string `json:"disqualifiers"`
}

// DefaultRules returns the rules applied to organizations that have not
// customized scoring. These match the seeded tenant configuration.
func DefaultRules() Rules {
	return Rules{
		MinScoreForAccept: 70,
		MinScoreForReview: 40,
		Weights: Weights{
			InjurySeverity:   1,
			LiabilityClarity: 1,
			DamagesPotential: 1,
			Urgency:          1,
		},
		Disqualifiers: []string{
			"statute_of_limitations_expired",
			"no_injury",
			"has_existing_attorney",
		},
	}
}

// DecodeRules decodes JSON rules, falling back to defaults for a missing or
// empty document. Zero thresholds are backfilled from defaults so a partial
// rules document cannot accidentally accept everything.
func DecodeRules(raw []byte) (Rules, error) {
	rules := DefaultRules()
	if len(raw) == 0 {
		return rules, nil
	}
	if err := json.Unmarshal(raw, &rules); err != nil {
		return DefaultRules(), fmt.Errorf("decode qualification rules: %w", err)
	}
	defaults := DefaultRules()
	if rules.MinScoreForAccept == 0 {
		rules.MinScoreForAccept = defaults.MinScoreForAccept
	}
	if rules.MinScoreForReview == 0 {
		rules.MinScoreForReview = defaults.MinScoreForReview
	}
	if rules.Disqualifiers == nil {
		rules.Disqualifiers = defaults.Disqualifiers
	}
	return rules, nil
}

// Snapshot is the scorer's view of a lead at scoring time. It is rebuilt
// from current state on every run; nothing here is cached between runs
// because intake answers mutate as the conversation progresses.
type Snapshot struct {
	HasPhone          bool
	HasEmail          bool
	HasName           bool
	PracticeAreaMatch bool
	IntakeComplete    bool
	CallCount         int
	Answers           map[string]interface{}
}

// Result is the outcome of one scoring run.
type Result struct {
	Score       int      `json:"score"`
	Disposition string   `json:"disposition"`
	Reasons     []string `json:"reasons"`
}

// Score computes the qualification score and disposition for a lead
// snapshot under the given rules. Pure function: no I/O, no mutation of its
// inputs, deterministic for fixed inputs — the policy test suite replays
// fixed snapshots through it and asserts exact results.
//
// Disqualifiers take precedence: any matched disqualifier forces a decline
// regardless of the weighted score.
func Score(snapshot Snapshot, rules Rules) Result {
	if matched := matchedDisqualifiers(snapshot.Answers, rules.Disqualifiers); len(matched) > 0 {
		reasons := make([]string, 0, len(matched))
		for _, d := range matched {
			reasons = append(reasons, "disqualifier: "+d)
		}
		return Result{Score: 0, Disposition: DispositionDecline, Reasons: reasons}
	}

	score := 0
	var reasons []string

	addPoints := func(points int, reason string) {
		score += points
		reasons = append(reasons, fmt.Sprintf("%s (+%d)", reason, points))
	}

	if snapshot.HasPhone {
		addPoints(pointsPhone, "contact phone present")
	} else {
		reasons = append(reasons, "no callback number")
	}
	if snapshot.HasEmail {
		addPoints(pointsEmail, "contact email present")
	}
	if snapshot.HasName {
		addPoints(pointsName, "caller identified")
	}
	if snapshot.PracticeAreaMatch {
		addPoints(pointsPracticeArea, "practice area match")
	}
	if snapshot.IntakeComplete {
		addPoints(pointsIntakeComplete, "intake complete")
	}

	callPoints := snapshot.CallCount * pointsPerCall
	if callPoints > maxCallPoints {
		callPoints = maxCallPoints
	}
	if callPoints > 0 {
		addPoints(callPoints, fmt.Sprintf("%d call(s) on record", snapshot.CallCount))
	}

	for _, dim := range []struct {
		key    string
		weight float64
	}{
		{AnswerInjurySeverity, rules.Weights.InjurySeverity},
		{AnswerLiabilityClarity, rules.Weights.LiabilityClarity},
		{AnswerDamagesPotential, rules.Weights.DamagesPotential},
		{AnswerUrgency, rules.Weights.Urgency},
	} {
		rating, ok := numericAnswer(snapshot.Answers, dim.key)
		if !ok || dim.weight <= 0 {
			continue
		}
		points := int(rating * dim.weight)
		if points > 0 {
			addPoints(points, fmt.Sprintf("%s rated %.0f", dim.key, rating))
		}
	}

	if score > maxScore {
		score = maxScore
	}

	disposition := DispositionDecline
	switch {
	case score >= rules.MinScoreForAccept:
		disposition = DispositionAccept
	case score >= rules.MinScoreForReview:
		disposition = DispositionReview
	}

	return Result{Score: score, Disposition: disposition, Reasons: reasons}
}

// matchedDisqualifiers returns the disqualifier keys whose answers are
// truthy, in stable order.
func matchedDisqualifiers(answers map[string]interface{}, disqualifiers []string) []string {
	if len(answers) == 0 || len(disqualifiers) == 0 {
		return nil
	}
	var matched []string
	for _, key := range disqualifiers {
		if truthyAnswer(answers[key]) {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)
	return matched
}

func truthyAnswer(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

// numericAnswer reads a 0-10 rating from an answer value, clamping out-of-range
// input. Accepts JSON numbers and numeric strings.
func numericAnswer(answers map[string]interface{}, key string) (float64, bool) {
	if answers == nil {
		return 0, false
	}
	var rating float64
	switch t := answers[key].(type) {
	case float64:
		rating = t
	case int:
		rating = float64(t)
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%f", &rating); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if rating < 0 {
		rating = 0
	}
	if rating > 10 {
		rating = 10
	}
	return rating, true
}
