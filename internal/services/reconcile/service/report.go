package service

import (
	"fmt"
	"strings"

	"rolegate/internal/services/reconcile/domain"
)

// maxFailureDetails bounds the per job failure list so huge guilds
// cannot blow up replies or audit rows
const maxFailureDetails = 20

// Failure is one reportable member failure
type Failure struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Summary tallies a batch run for replies, logs, and audit rows
type Summary struct {
	Total    int            `json:"total"`
	Granted  int            `json:"granted"`
	Revoked  int            `json:"revoked"`
	NoChange int            `json:"no_change"`
	Errors   int            `json:"errors"`
	ByError  map[string]int `json:"by_error,omitempty"`
	Failures []Failure      `json:"failures,omitempty"`
}

// Summarize tallies outcomes into a Summary
func Summarize(outs []domain.MemberOutcome) Summary {
	s := Summary{Total: len(outs)}
	for _, o := range outs {
		switch o.Kind {
		case domain.OutcomeGranted:
			s.Granted++
		case domain.OutcomeRevoked:
			s.Revoked++
		case domain.OutcomeNoChange:
			s.NoChange++
		case domain.OutcomeError:
			s.Errors++
			if s.ByError == nil {
				s.ByError = make(map[string]int)
			}
			s.ByError[o.ErrKind.String()]++
			if len(s.Failures) < maxFailureDetails {
				detail := ""
				if o.Err != nil {
					detail = o.Err.Error()
				}
				s.Failures = append(s.Failures, Failure{
					UserID: o.UserID,
					Kind:   o.ErrKind.String(),
					Detail: detail,
				})
			}
		}
	}
	return s
}

// Render formats the summary as a short human line for chat replies
func (s Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciled %d members: %d granted, %d revoked, %d unchanged", s.Total, s.Granted, s.Revoked, s.NoChange)
	if s.Errors > 0 {
		fmt.Fprintf(&b, ", %d failed", s.Errors)
	}
	return b.String()
}
