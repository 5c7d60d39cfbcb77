// Package selector turns a set of partial, possibly conflicting
// selection criteria into a single resolved message reference.
//
// The priority order is a hard behavioral contract: an explicit
// message id always wins, then a target date matched against parsed
// subjects, then plain recency. Changing this order changes
// user-visible behavior.
package selector

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/dohanlee/gmail-table-extractor/internal/mailbox"
	"github.com/dohanlee/gmail-table-extractor/internal/subjectdate"
)

// Criteria is the immutable selection configuration for one run.
type Criteria struct {
	SenderName string
	MessageID  string
	TargetDate *subjectdate.Date
	MaxResults int

	// StrictDate makes multiple candidates on the same target date an
	// error instead of picking the most recent.
	StrictDate bool
}

// Strategy is the resolved selection mode, decided once from Criteria.
type Strategy int

const (
	StrategyLatest Strategy = iota
	StrategyByID
	StrategyByDate
)

func (s Strategy) String() string {
	switch s {
	case StrategyByID:
		return "by-id"
	case StrategyByDate:
		return "by-date"
	default:
		return "latest"
	}
}

// Strategy resolves the tagged selection mode from the criteria.
// MessageID takes priority over TargetDate; with neither set the
// newest matching message wins.
func (c Criteria) Strategy() Strategy {
	switch {
	case c.MessageID != "":
		return StrategyByID
	case c.TargetDate != nil:
		return StrategyByDate
	default:
		return StrategyLatest
	}
}

// NoMatchError reports that no candidate satisfied the resolved
// criterion. It is a configuration mistake, never silently swallowed.
type NoMatchError struct {
	Strategy  Strategy
	Criterion string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no message matches %s criterion %s", e.Strategy, e.Criterion)
}

// AmbiguousDateError reports multiple candidates on the same target
// date under strict matching.
type AmbiguousDateError struct {
	Date  subjectdate.Date
	Count int
}

func (e *AmbiguousDateError) Error() string {
	return fmt.Sprintf("%d messages match date %s; refusing to pick one in strict mode", e.Count, e.Date)
}

// Resolve selects exactly one message from candidates according to the
// priority order. Pure logic: no I/O.
func Resolve(criteria Criteria, candidates []mailbox.MessageRef) (mailbox.MessageRef, error) {
	switch criteria.Strategy() {
	case StrategyByID:
		return resolveByID(criteria.MessageID, candidates)
	case StrategyByDate:
		filtered := filterBySender(candidates, criteria.SenderName)
		return resolveByDate(criteria, filtered)
	default:
		filtered := filterBySender(candidates, criteria.SenderName)
		return resolveLatest(criteria.SenderName, filtered)
	}
}

func resolveByID(id string, candidates []mailbox.MessageRef) (mailbox.MessageRef, error) {
	for _, c := range candidates {
		if c.ID == id {
			return c, nil
		}
	}
	return mailbox.MessageRef{}, &NoMatchError{Strategy: StrategyByID, Criterion: fmt.Sprintf("id=%s", id)}
}

func resolveByDate(criteria Criteria, candidates []mailbox.MessageRef) (mailbox.MessageRef, error) {
	target := *criteria.TargetDate

	var matches []mailbox.MessageRef
	for _, c := range candidates {
		d, ok := subjectdate.Parse(c.Subject, target.Year)
		if ok && d == target {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return mailbox.MessageRef{}, &NoMatchError{Strategy: StrategyByDate, Criterion: fmt.Sprintf("date=%s", target.Compact())}
	}
	if criteria.StrictDate && len(matches) > 1 {
		return mailbox.MessageRef{}, &AmbiguousDateError{Date: target, Count: len(matches)}
	}
	return newest(matches), nil
}

func resolveLatest(sender string, candidates []mailbox.MessageRef) (mailbox.MessageRef, error) {
	if len(candidates) == 0 {
		return mailbox.MessageRef{}, &NoMatchError{Strategy: StrategyLatest, Criterion: fmt.Sprintf("sender=%s", sender)}
	}
	return newest(candidates), nil
}

// newest picks the candidate with the latest ReceivedAt. Identical
// timestamps break ties by the lexicographically larger message id so
// the choice stays deterministic.
func newest(refs []mailbox.MessageRef) mailbox.MessageRef {
	sorted := make([]mailbox.MessageRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ReceivedAt.Equal(sorted[j].ReceivedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].ReceivedAt.After(sorted[j].ReceivedAt)
	})
	return sorted[0]
}

// filterBySender keeps candidates whose From header matches the filter
// by exact address (case-insensitive) or by display-name containment
// (case-insensitive). An empty filter keeps everything.
func filterBySender(refs []mailbox.MessageRef, sender string) []mailbox.MessageRef {
	if sender == "" {
		return refs
	}
	want := strings.ToLower(strings.TrimSpace(sender))

	var out []mailbox.MessageRef
	for _, r := range refs {
		if senderMatches(r.Sender, want) {
			out = append(out, r)
		}
	}
	return out
}

func senderMatches(from, want string) bool {
	addr, err := mail.ParseAddress(from)
	if err == nil {
		if strings.ToLower(addr.Address) == want {
			return true
		}
		if addr.Name != "" && strings.Contains(strings.ToLower(addr.Name), want) {
			return true
		}
		return false
	}
	// Unparseable From header: fall back to substring matching.
	return strings.Contains(strings.ToLower(from), want)
}
