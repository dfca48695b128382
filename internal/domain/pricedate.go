package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// sortKeyLayout is fixed-width so sort keys compare lexicographically in time
// order.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

var priceDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PriceDate is a point in time supplied either as a full timestamp or as a
// plain calendar date. The original text is kept verbatim; the resolved
// instant is used for ordering only. Calendar dates resolve to midnight UTC.
type PriceDate struct {
	raw string
	at  time.Time
}

func ParsePriceDate(s string) (PriceDate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PriceDate{}, Invalid("date is required")
	}
	for _, layout := range priceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return PriceDate{raw: s, at: t}, nil
		}
	}
	return PriceDate{}, Invalid("unrecognised date %q", s)
}

// PriceDateFromTime wraps a structured timestamp.
func PriceDateFromTime(t time.Time) PriceDate {
	return PriceDate{raw: t.Format(time.RFC3339Nano), at: t}
}

// MustPriceDate is ParsePriceDate for literals known to be valid.
func MustPriceDate(s string) PriceDate {
	d, err := ParsePriceDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d PriceDate) IsZero() bool { return d.raw == "" }
func (d PriceDate) String() string { return d.raw }
func (d PriceDate) Time() time.Time { return d.at }
func (d PriceDate) Equal(o PriceDate) bool { return d.raw == o.raw }

// SortKey renders the resolved instant in a lexicographically ordered form.
func (d PriceDate) SortKey() string {
	return d.at.UTC().Format(sortKeyLayout)
}

func (d PriceDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.raw)
}

func (d *PriceDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = PriceDate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Invalid("date must be a string")
	}
	parsed, err := ParsePriceDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d PriceDate) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.raw, nil
}

func (d *PriceDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = PriceDate{}
		return nil
	case string:
		parsed, err := ParsePriceDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = PriceDateFromTime(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into PriceDate", src)
	}
}
