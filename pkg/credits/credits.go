// Package credits implements the internal currency. A Credits value is always
// rounded to two fractional digits at construction, so no unrounded amount
// ever leaves this package.
package credits

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "parkshare/pkg/errors"
)

const Places = 2

type Credits struct {
	d decimal.Decimal
}

var Zero = Credits{d: decimal.Zero}

func New(d decimal.Decimal) Credits {
	return Credits{d: d.Round(Places)}
}

func FromInt(n int64) Credits {
	return New(decimal.NewFromInt(n))
}

func FromFloat(f float64) Credits {
	return New(decimal.NewFromFloat(f))
}

func Parse(s string) (Credits, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, apperrors.InvalidInput(fmt.Sprintf("invalid credits amount: %q", s))
	}
	return New(d), nil
}

// ForDuration prices a duration at rate credits per hour.
func ForDuration(d time.Duration, rate Credits) Credits {
	hours := decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour)))
	return New(hours.Mul(rate.d))
}

func Sum(values ...Credits) Credits {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (c Credits) Add(o Credits) Credits { return New(c.d.Add(o.d)) }
func (c Credits) Sub(o Credits) Credits { return New(c.d.Sub(o.d)) }
func (c Credits) Neg() Credits { return New(c.d.Neg()) }

func (c Credits) Cmp(o Credits) int { return c.d.Cmp(o.d) }
func (c Credits) Equal(o Credits) bool { return c.d.Equal(o.d) }
func (c Credits) LessThan(o Credits) bool { return c.d.LessThan(o.d) }
func (c Credits) GreaterThan(o Credits) bool { return c.d.GreaterThan(o.d) }
func (c Credits) IsZero() bool { return c.d.IsZero() }
func (c Credits) IsNegative() bool { return c.d.IsNegative() }
func (c Credits) IsPositive() bool { return c.d.IsPositive() }
func (c Credits) Decimal() decimal.Decimal { return c.d }
func (c Credits) String() string { return c.d.StringFixed(Places) }

func (c Credits) Float64() float64 {
	f, _ := c.d.Float64()
	return f
}

// MarshalJSON writes a bare 2-decimal number, e.g. 54.00.
func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Credits) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return apperrors.InvalidInput(fmt.Sprintf("invalid credits amount: %s", string(data)))
	}
	*c = New(d)
	return nil
}

// MarshalBSONValue stores credits as Decimal128 to keep the exact fixed-point value.
func (c Credits) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(c.String())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode credits %s: %w", c.String(), err)
	}
	return bson.MarshalValue(d128)
}

func (c *Credits) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return fmt.Errorf("failed to decode credits: %w", err)
		}
		*c = New(d)
	case bsontype.Double:
		*c = FromFloat(raw.Double())
	case bsontype.Int32:
		*c = FromInt(int64(raw.Int32()))
	case bsontype.Int64:
		*c = FromInt(raw.Int64())
	case bsontype.String:
		parsed, err := Parse(raw.StringValue())
		if err != nil {
			return err
		}
		*c = parsed
	case bsontype.Null:
		*c = Zero
	default:
		return fmt.Errorf("cannot decode credits from bson type %s", t)
	}
	return nil
}
