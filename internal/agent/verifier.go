package agent

import (
	"context"
	"math"
	"strconv"
	"strings"

	"reagent/internal/logging"
	"reagent/internal/trace"
)

const (
	baseConfidence      = 0.7
	confidenceIncrement = 0.1
	// Values beyond this are treated as arithmetic gone wrong rather
	// than plausible answers.
	numericSanityBound = 1e15
	// Jaccard bounds against earlier results: above the ceiling the
	// step merely repeated an earlier one, below the floor it drifted
	// off topic.
	duplicateSimilarity = 0.9
	driftSimilarity     = 0.05
)

// Verifier scores step results. Findings are advisory: they lower
// confidence but never gate progress.
type Verifier struct {
	logger logging.Logger
}

func NewVerifier(logger logging.Logger) *Verifier {
	return &Verifier{logger: logging.OrNop(logger)}
}

// Verify judges one step result against the query and its sibling
// results. Confidence starts at 0.7 and earns +0.1 for consistency
// with earlier results, +0.1 for passing the logic checks, and +0.1
// when the result was corroborated by two or more sources.
func (v *Verifier) Verify(ctx context.Context, result StepResult, all []StepResult, query string) Verification {
	rec := trace.FromContext(ctx)

	if !result.Success {
		ver := Verification{StepID: result.StepID, Confidence: 0, Consistent: false}
		if result.Skipped {
			ver.Findings = append(ver.Findings, "step skipped: "+result.Error)
		} else {
			ver.Findings = append(ver.Findings, "step failed: "+result.Error)
		}
		rec.Event(trace.PhaseVerification, "step_unverifiable", map[string]any{"step": result.StepID})
		return ver
	}

	confidence := baseConfidence
	var findings []string

	consistencyOK, consistencyFindings := checkConsistency(result, all)
	findings = append(findings, consistencyFindings...)
	if consistencyOK {
		confidence += confidenceIncrement
	}

	logicOK, logicFindings := checkLogic(result)
	findings = append(findings, logicFindings...)
	if logicOK {
		confidence += confidenceIncrement
	}

	if len(result.Sources) >= 2 {
		confidence += confidenceIncrement
	}

	confidence = math.Min(confidence, 1.0)
	rec.Event(trace.PhaseVerification, "step_verified", map[string]any{
		"step":       result.StepID,
		"confidence": confidence,
	})
	return Verification{
		StepID:     result.StepID,
		Confidence: confidence,
		Consistent: consistencyOK && logicOK,
		Findings:   findings,
	}
}

// checkConsistency compares the result's vocabulary with earlier
// successful results. Near-identical text is a suspect duplicate; text
// sharing almost nothing is suspect drift. No comparable prior means a
// pass.
func checkConsistency(result StepResult, all []StepResult) (bool, []string) {
	words := wordSet(result.Content)
	if len(words) == 0 {
		return true, nil
	}

	maxSim := -1.0
	closest := 0
	for _, other := range all {
		if other.StepID >= result.StepID || !other.Success {
			continue
		}
		otherWords := wordSet(other.Content)
		if len(otherWords) == 0 {
			continue
		}
		if sim := wordJaccard(words, otherWords); sim > maxSim {
			maxSim = sim
			closest = other.StepID
		}
	}
	if maxSim < 0 {
		return true, nil
	}
	if maxSim > duplicateSimilarity {
		return false, []string{"result nearly duplicates step " + strconv.Itoa(closest)}
	}
	if maxSim < driftSimilarity {
		return false, []string{"result shares almost nothing with earlier steps"}
	}
	return true, nil
}

// checkLogic requires non-trivial content whose numbers stay inside
// the sanity bound.
func checkLogic(result StepResult) (bool, []string) {
	var findings []string
	ok := true
	if !hasSubstance(result.Content) {
		ok = false
		if result.Tool != "" {
			findings = append(findings, "result content is empty or trivial")
		}
	}
	if !numbersPlausible(result.Content) {
		ok = false
		findings = append(findings, "result contains an implausibly large number")
	}
	return ok, findings
}

func hasSubstance(content string) bool {
	return len(strings.TrimSpace(content)) >= 2
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

func wordJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	return float64(overlap) / float64(union)
}

// numbersPlausible rejects content whose numbers exceed the sanity
// bound.
func numbersPlausible(content string) bool {
	for _, field := range strings.Fields(content) {
		cleaned := strings.Trim(field, ".,;:!?()")
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		if math.Abs(n) > numericSanityBound {
			return false
		}
	}
	return true
}

// OverallConfidence is the mean verification confidence, zero when
// nothing was verified.
func OverallConfidence(verifications []Verification) float64 {
	if len(verifications) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range verifications {
		sum += v.Confidence
	}
	return sum / float64(len(verifications))
}
