package types

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `yaml:"hour" json:"hour" jsonschema:"minimum=0,maximum=23" validate:"gte=0,lte=23"`
	Minute int `yaml:"minute" json:"minute" jsonschema:"minimum=0,maximum=59" validate:"gte=0,lte=59"`
}

// Seconds returns the offset of t from midnight.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60
}

// On returns t on the calendar day of ts, in ts's location.
func (t TimeOfDay) On(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), t.Hour, t.Minute, 0, 0, ts.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func secondsOfDay(ts time.Time) int {
	return ts.Hour()*3600 + ts.Minute()*60 + ts.Second()
}

// TradeWindow is an inclusive time-of-day range in a time zone. A window whose
// start is after its end wraps past midnight.
type TradeWindow struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
}

// Contains reports whether ts falls within the window.
func (w TradeWindow) Contains(ts time.Time) bool {
	if w.Location != nil {
		ts = ts.In(w.Location)
	}

	now := secondsOfDay(ts)
	start, end := w.Start.Seconds(), w.End.Seconds()

	if start <= end {
		return start <= now && now <= end
	}

	return now >= start || now <= end
}

// LoadLocation resolves an IANA zone name.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidTimezone, err, "unknown time zone %q", name)
	}

	return loc, nil
}
