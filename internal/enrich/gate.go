package enrich

import "strings"

type Decision int

const (
	DecisionProcess Decision = iota
	DecisionSkip
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip+delete"
	default:
		return "process"
	}
}

// Prefixes of the vendor whose "rx" archives never carry production data.
var skipPrefixes = []string{"0002-", "5001-"}

// Gate decides whether an archive is processed or removed unread. Archives whose
// name starts with one of the excluded vendor prefixes and mentions "rx" anywhere
// are skipped; matching is case-insensitive.
func Gate(filename string) Decision {
	lower := strings.ToLower(filename)
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lower, prefix) && strings.Contains(lower, "rx") {
			return DecisionSkip
		}
	}
	return DecisionProcess
}
