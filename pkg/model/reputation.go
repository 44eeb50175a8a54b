package model

import (
	"time"

	"parkshare/pkg/rating"
)

// Reputation is a user's rating as a spot owner together with how it was reached.
type Reputation struct {
	UserID    string            `json:"user_id" bson:"_id"`
	Rating    rating.UserRating `json:"rating" bson:"rating"`
	Good      int               `json:"good" bson:"good"`
	Bad       int               `json:"bad" bson:"bad"`
	Neutral   int               `json:"neutral" bson:"neutral"`
	Version   int64             `json:"version" bson:"version"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

func NewReputation(userID string) *Reputation {
	return &Reputation{UserID: userID, Rating: rating.New()}
}

func (r *Reputation) Record(now time.Time, outcome rating.Outcome) error {
	next, err := rating.Apply(r.Rating, outcome)
	if err != nil {
		return err
	}
	r.Rating = next
	switch outcome {
	case rating.Good:
		r.Good++
	case rating.Bad:
		r.Bad++
	case rating.Neutral:
		r.Neutral++
	}
	r.UpdatedAt = now
	return nil
}
