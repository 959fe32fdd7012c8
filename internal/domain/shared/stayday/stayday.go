package stayday

import (
	"encoding/json"
	"errors"
	"time"
)

// Layout is the external text encoding of a stay day.
const Layout = "2006-01-02"

var (
	ErrInvalidDay = errors.New("stayday: day must be formatted as YYYY-MM-DD")
)

// Day is a calendar day in UTC. The zero value is not a valid day.
type Day struct {
	t time.Time
}

// Of truncates t to its UTC calendar day.
func Of(t time.Time) Day {
	t = t.UTC()
	return Day{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func Parse(s string) (Day, error) {
	if len(s) != len(Layout) {
		return Day{}, ErrInvalidDay
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Day{}, ErrInvalidDay
	}
	return Day{t: t}, nil
}

func MustParse(s string) Day {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Day) IsZero() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return d.t
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

func (d Day) Equal(other Day) bool {
	return d.t.Equal(other.t)
}

// Contains reports whether t falls within the day.
func (d Day) Contains(t time.Time) bool {
	return Of(t).Equal(d)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
