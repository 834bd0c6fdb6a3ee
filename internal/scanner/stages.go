package scanner

import "AccessibilityScanner/internal/domain"

// Stage is one predicate/verdict pair of a staged decision procedure.
type Stage struct {
	Rule    string
	Status  domain.Status
	Message string
	When    func() bool
}

// Evaluate runs stages in order against an initial verdict.
//
// A stage that fires takes over the verdict when the current status is Pass or less severe
// than the stage's status. Otherwise the verdict is kept and only the stage's rule tag is
// appended, so a Fail is never downgraded by a later stage.
func Evaluate(initial domain.Verdict, stages []Stage) domain.Verdict {
	v := initial
	v.Rules = append([]string(nil), initial.Rules...)
	for _, stage := range stages {
		if stage.When == nil || !stage.When() {
			continue
		}
		if v.Status == domain.StatusPass || v.Status == "" || stage.Status.Severity() > v.Status.Severity() {
			v.Status = stage.Status
			v.Message = stage.Message
		}
		if stage.Rule != "" {
			v.Rules = append(v.Rules, stage.Rule)
		}
	}
	return v
}

// Pass is the starting verdict of most candidates.
func Pass(message string) domain.Verdict {
	return domain.Verdict{Status: domain.StatusPass, Message: message, Rules: []string{}}
}
