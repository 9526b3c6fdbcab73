package rules

import (
	"sync/atomic"

	"github.com/jonathan/style-tagger/internal/features"
	"github.com/jonathan/style-tagger/internal/types"
)

// DefaultThreshold is the minimum confidence a rule needs to answer a
// paragraph at inference time.
const DefaultThreshold = 0.80

// Match is a successful rule prediction.
type Match struct {
	Tag        string
	Condition  string
	Confidence float64
}

// Engine applies a learned rule set. The active set is held behind an
// atomic pointer so it can be swapped while classification runs are in
// flight; a run observes a consistent snapshot for each paragraph.
type Engine struct {
	snap      atomic.Pointer[types.RuleSet]
	threshold float64
}

// NewEngine returns an Engine with the given inference threshold. A
// non-positive threshold falls back to DefaultThreshold.
func NewEngine(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	e := &Engine{threshold: threshold}
	e.snap.Store(&types.RuleSet{Version: 1})
	return e
}

// Swap installs a new rule set atomically.
func (e *Engine) Swap(rs *types.RuleSet) {
	if rs == nil {
		rs = &types.RuleSet{Version: 1}
	}
	e.snap.Store(rs)
}

// RuleSet returns the active snapshot.
func (e *Engine) RuleSet() *types.RuleSet {
	return e.snap.Load()
}

// Predict evaluates rules against one paragraph, in stored order
// (highest confidence first). The first matching rule at or above the
// threshold wins. Returns false when no rule answers.
func (e *Engine) Predict(text, zone string, meta types.ParagraphMeta) (Match, bool) {
	rs := e.snap.Load()
	if rs == nil || len(rs.Rules) == 0 {
		return Match{}, false
	}

	set := features.Extract(text, zone, meta)
	for _, rule := range rs.Rules {
		if rule.Confidence < e.threshold {
			continue
		}
		if set.Matches(rule.Condition) {
			return Match{Tag: rule.Tag, Condition: rule.Condition, Confidence: rule.Confidence}, true
		}
	}
	return Match{}, false
}
