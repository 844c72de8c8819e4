package enums

import "fmt"

// VoteType maps to the vote_type enum in Postgres.
type VoteType string

const (
	VoteTypeUpvote   VoteType = "upvote"
	VoteTypeDownvote VoteType = "downvote"
)

// IsValid reports whether the value is a known VoteType.
func (v VoteType) IsValid() bool {
	return v == VoteTypeUpvote || v == VoteTypeDownvote
}

// ParseVoteType converts raw input into VoteType.
func ParseVoteType(value string) (VoteType, error) {
	v := VoteType(value)
	if !v.IsValid() {
		return "", fmt.Errorf("invalid vote type %q", value)
	}
	return v, nil
}
