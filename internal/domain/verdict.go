package domain

// RejectReason enumerates why a unit was kept out of the store.
type RejectReason string

const (
	RejectTooShort               RejectReason = "too_short"
	RejectTooLong                RejectReason = "too_long"
	RejectBlacklistedTerm        RejectReason = "blacklisted_term"
	RejectOrganizationNotAllowed RejectReason = "organization_not_allowed"
)

// FilterVerdict is the outcome of the content safety filter for one unit.
type FilterVerdict struct {
	Accepted bool
	Content  string       // sanitized content, set when Accepted
	Reason   RejectReason // set when rejected
	Term     string       // matched keyword for RejectBlacklistedTerm
}

// Accept builds an accepting verdict.
func Accept(content string) FilterVerdict {
	return FilterVerdict{Accepted: true, Content: content}
}

// Reject builds a rejecting verdict.
func Reject(reason RejectReason, term string) FilterVerdict {
	return FilterVerdict{Reason: reason, Term: term}
}
