package rebase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/innorebase/pkg/uninstlog"
)

// DefaultTypes are the record kinds whose payload is a single framed path.
var DefaultTypes = []uninstlog.RecType{
	uninstlog.RecDeleteDirOrFiles,
	uninstlog.RecDeleteFile,
}

// Rule maps a path prefix to its replacement.
type Rule struct {
	From string
	To   string
}

// Stats summarizes one Apply pass.
type Stats struct {
	Examined int // all records
	Eligible int // matching type with a framed string payload
	Rebased  int // path changed
	Skipped  int // eligible but no rule matched
}

// Rebaser picks the records of a log that carry a path and rewrites them.
type Rebaser struct {
	rules  []Rule
	types  map[uninstlog.RecType]bool
	logger *slog.Logger
}

// New creates a Rebaser. With no types, DefaultTypes is used.
func New(rules []Rule, types []uninstlog.RecType, logger *slog.Logger) (*Rebaser, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rebase rule is required")
	}
	for i, r := range rules {
		if r.From == "" {
			return nil, fmt.Errorf("rule %d: from prefix cannot be empty", i)
		}
	}
	if len(types) == 0 {
		types = DefaultTypes
	}
	if logger == nil {
		logger = slog.Default()
	}

	rb := &Rebaser{
		rules:  rules,
		types:  make(map[uninstlog.RecType]bool, len(types)),
		logger: logger,
	}
	for _, t := range types {
		rb.types[t] = true
	}
	return rb, nil
}

// Apply rebases every eligible record of l in place. The first failure
// stops the pass; records before it may already be rewritten.
func (rb *Rebaser) Apply(l *uninstlog.Log) (Stats, error) {
	var st Stats
	for i, rec := range l.Records {
		st.Examined++
		if !rb.types[rec.Type] || !uninstlog.HasEmbeddedString(rec.Data) {
			continue
		}
		st.Eligible++

		path, err := rec.EmbeddedString()
		if err != nil {
			return st, fmt.Errorf("record %d (%s): %w", i, rec.Type, err)
		}
		rule, ok := rb.match(path)
		if !ok {
			st.Skipped++
			rb.logger.Debug("no rule matches", "record", i, "type", rec.Type, "path", path)
			continue
		}

		changed, err := rec.Rebase(rule.From, rule.To)
		if err != nil {
			return st, fmt.Errorf("record %d (%s): %w", i, rec.Type, err)
		}
		if changed {
			st.Rebased++
			rb.logger.Info("rebased", "record", i, "type", rec.Type, "from", path, "to", rule.To+path[len(rule.From):])
		}
	}
	return st, nil
}

// match returns the first rule whose From prefixes path.
func (rb *Rebaser) match(path string) (Rule, bool) {
	for _, r := range rb.rules {
		if strings.HasPrefix(path, r.From) {
			return r, true
		}
	}
	return Rule{}, false
}
