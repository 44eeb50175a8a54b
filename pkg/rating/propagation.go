package rating

import (
	"fmt"

	apperrors "parkshare/pkg/errors"
)

// Outcome is how a booking ended from the spot owner's point of view.
type Outcome string

const (
	Good    Outcome = "good"
	Bad     Outcome = "bad"
	Neutral Outcome = "neutral"
)

// mutators maps every outcome to the single adjustment applied to the owner's rating.
var mutators = map[Outcome]func(UserRating) UserRating{
	Good:    UserRating.GoodIncrease,
	Bad:     UserRating.BadDecrease,
	Neutral: UserRating.NeutralIncrease,
}

func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if _, ok := mutators[o]; !ok {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown rating outcome: %q", s))
	}
	return o, nil
}

func (o Outcome) Valid() bool {
	_, ok := mutators[o]
	return ok
}

// Apply returns the owner's rating after one outcome.
func Apply(owner UserRating, o Outcome) (UserRating, error) {
	mutate, ok := mutators[o]
	if !ok {
		return owner, apperrors.InvalidInput(fmt.Sprintf("unknown rating outcome: %q", o))
	}
	return mutate(owner), nil
}
