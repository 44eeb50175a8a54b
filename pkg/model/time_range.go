package model

import (
	"fmt"
	"time"

	apperrors "parkshare/pkg/errors"
)

// TimeRange is a half-open interval [From, To).
type TimeRange struct {
	From time.Time `json:"from" bson:"from"`
	To   time.Time `json:"to" bson:"to"`
}

func NewTimeRange(from, to time.Time) (TimeRange, error) {
	if !to.After(from) {
		return TimeRange{}, apperrors.InvalidInput(fmt.Sprintf("range end %s must be after start %s", to.Format(time.RFC3339), from.Format(time.RFC3339)))
	}
	return TimeRange{From: from, To: to}, nil
}

func (r TimeRange) Duration() time.Duration {
	return r.To.Sub(r.From)
}

func (r TimeRange) Overlaps(o TimeRange) bool {
	return overlaps(r.From, r.To, o.From, o.To)
}

// Touches reports whether the ranges overlap or share a boundary.
func (r TimeRange) Touches(o TimeRange) bool {
	return !r.From.After(o.To) && !o.From.After(r.To)
}

func (r TimeRange) Contains(o TimeRange) bool {
	return !o.From.Before(r.From) && !o.To.After(r.To)
}

func (r TimeRange) Union(o TimeRange) TimeRange {
	return TimeRange{From: earliest(r.From, o.From), To: latest(r.To, o.To)}
}

func overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
