package scoring

// Policy controls how pending-review subjective answers count toward
// the aggregate score.
type Policy string

const (
	// PolicyZeroUntilReviewed counts pending items in the available
	// points with zero awarded until a reviewer grades them.
	PolicyZeroUntilReviewed Policy = "zero_until_reviewed"
	// PolicyExcludePending leaves pending items out of the aggregate
	// entirely, so the score reflects auto-graded questions only.
	PolicyExcludePending Policy = "exclude_pending"
)

// ParsePolicy maps a config string to a Policy, falling back to
// zero_until_reviewed for unknown values.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyExcludePending {
		return PolicyExcludePending
	}
	return PolicyZeroUntilReviewed
}
