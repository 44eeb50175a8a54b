package rating

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	apperrors "parkshare/pkg/errors"
)

var (
	minRating     = decimal.Zero
	maxRating     = decimal.NewFromInt(3)
	initialRating = decimal.RequireFromString("1.5")

	goodStep    = decimal.RequireFromString("0.05")
	badStep     = decimal.RequireFromString("0.2")
	neutralStep = decimal.RequireFromString("0.05")
)

// UserRating is a reputation score bounded to [0, 3]. The zero value reads as
// the initial 1.5, so a rating that was never stored starts users at the
// midpoint rather than the floor.
type UserRating struct {
	v   decimal.Decimal
	set bool
}

func New() UserRating {
	return UserRating{v: initialRating, set: true}
}

func (r UserRating) score() decimal.Decimal {
	if !r.set {
		return initialRating
	}
	return r.v
}

func FromFloat(f float64) (UserRating, error) {
	d := decimal.NewFromFloat(f)
	if d.LessThan(minRating) || d.GreaterThan(maxRating) {
		return UserRating{}, apperrors.InvalidInput(fmt.Sprintf("rating must be between 0 and 3, got %v", f))
	}
	return UserRating{v: d, set: true}, nil
}

func (r UserRating) GoodIncrease() UserRating {
	return clamp(r.score().Add(goodStep))
}

func (r UserRating) BadDecrease() UserRating {
	return clamp(r.score().Sub(badStep))
}

func (r UserRating) NeutralIncrease() UserRating {
	return clamp(r.score().Add(neutralStep))
}

func (r UserRating) Value() float64 {
	f, _ := r.score().Float64()
	return f
}

func (r UserRating) Equal(o UserRating) bool {
	return r.score().Equal(o.score())
}

func (r UserRating) String() string {
	return r.score().StringFixed(2)
}

func clamp(d decimal.Decimal) UserRating {
	switch {
	case d.LessThan(minRating):
		return UserRating{v: minRating, set: true}
	case d.GreaterThan(maxRating):
		return UserRating{v: maxRating, set: true}
	default:
		return UserRating{v: d, set: true}
	}
}

func (r UserRating) MarshalJSON() ([]byte, error) {
	return []byte(r.score().String()), nil
}

func (r *UserRating) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid rating: %s", string(data)))
	}
	*r = clamp(d)
	return nil
}

func (r UserRating) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(r.score().String())
}

func (r *UserRating) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		d, err := decimal.NewFromString(raw.StringValue())
		if err != nil {
			return fmt.Errorf("failed to decode rating: %w", err)
		}
		*r = clamp(d)
	case bsontype.Double:
		*r = clamp(decimal.NewFromFloat(raw.Double()))
	case bsontype.Null:
		*r = New()
	default:
		return fmt.Errorf("cannot decode rating from bson type %s", t)
	}
	return nil
}
