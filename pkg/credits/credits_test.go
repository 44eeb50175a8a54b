package credits

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNew_RoundsToTwoPlaces(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1.00"},
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"-2.345", "-2.35"},
		{"0.0000001", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := New(decimal.RequireFromString(tt.in)).String()
			if got != tt.want {
				t.Errorf("New(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddSub_RoundTrip(t *testing.T) {
	values := []string{"0", "0.01", "1.99", "12.345", "-7.125", "1000000.005", "0.333333"}

	for _, as := range values {
		for _, bs := range values {
			a, _ := Parse(as)
			b, _ := Parse(bs)
			got := a.Add(b).Sub(b)
			if !got.Equal(a) {
				t.Errorf("%s + %s - %s = %s, want %s", a, b, b, got, a)
			}
		}
	}
}

func TestAdd_Associative(t *testing.T) {
	a := FromFloat(0.1)
	b := FromFloat(0.2)
	c := FromFloat(0.335)

	left := a.Add(b).Add(c)
	right := a.Add(b.Add(c))
	if !left.Equal(right) {
		t.Errorf("(a+b)+c = %s, a+(b+c) = %s", left, right)
	}
}

func TestForDuration(t *testing.T) {
	rate := FromInt(1)
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"four hours", 4 * time.Hour, "4.00"},
		{"ninety minutes", 90 * time.Minute, "1.50"},
		{"twenty minutes", 20 * time.Minute, "0.33"},
		{"one microsecond", time.Microsecond, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForDuration(tt.d, rate).String(); got != tt.want {
				t.Errorf("ForDuration(%s) = %s, want %s", tt.d, got, tt.want)
			}
		})
	}
}

func TestCmp_TotalOrder(t *testing.T) {
	a, b := FromInt(1), FromFloat(1.01)
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 || a.Cmp(a) != 0 {
		t.Errorf("Cmp ordering broken for %s and %s", a, b)
	}
	if !a.Neg().IsNegative() {
		t.Errorf("Neg() of positive should be negative")
	}
	if !Sum(a, a.Neg()).IsZero() {
		t.Errorf("a + -a should be zero")
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Credits `json:"amount"`
	}{Amount: FromInt(54)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"amount":54.00}` {
		t.Errorf("json = %s, want {\"amount\":54.00}", data)
	}

	var decoded struct {
		Amount Credits `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount":12.345}`), &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Amount.String() != "12.35" {
		t.Errorf("decoded = %s, want 12.35", decoded.Amount)
	}
}

func TestBSON(t *testing.T) {
	type doc struct {
		Amount Credits `bson:"amount"`
	}
	data, err := bson.Marshal(doc{Amount: FromFloat(-3.5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out doc
	if err := bson.Unmarshal(data, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Amount.String() != "-3.50" {
		t.Errorf("round trip = %s, want -3.50", out.Amount)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("ten"); err == nil {
		t.Errorf("Parse(\"ten\") should fail")
	}
}
