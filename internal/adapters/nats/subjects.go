package natsadapter

import "strings"

const (
	opSearch  = "search"
	opRelated = "related"
	opStats   = "stats"
)

// Subjects names the request subjects under a common prefix, e.g. retrieval.search.
type Subjects struct {
	Prefix string
}

func (s Subjects) Search() string  { return s.subject(opSearch) }
func (s Subjects) Related() string { return s.subject(opRelated) }
func (s Subjects) Stats() string   { return s.subject(opStats) }

func (s Subjects) All() []string {
	return []string{s.Search(), s.Related(), s.Stats()}
}

func (s Subjects) subject(op string) string {
	prefix := strings.TrimSuffix(strings.TrimSpace(s.Prefix), ".")
	if prefix == "" {
		return op
	}
	return prefix + "." + op
}

// operation maps a concrete subject back to its operation name.
func (s Subjects) operation(subject string) string {
	switch subject {
	case s.Search():
		return opSearch
	case s.Related():
		return opRelated
	case s.Stats():
		return opStats
	default:
		return ""
	}
}
