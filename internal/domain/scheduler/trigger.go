// Package scheduler holds the calendar triggers and fire-key bookkeeping for periodic tasks.
package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// Trigger fires once per period at a fixed UTC wall-clock hour.
// A nil Weekday fires every day; otherwise only on that weekday.
type Trigger struct {
	Name    string
	Hour    int
	Weekday *time.Weekday
}

// Daily returns a trigger firing every day at hour:00 UTC.
func Daily(name string, hour int) Trigger {
	return Trigger{Name: name, Hour: hour}
}

// Weekly returns a trigger firing on day at hour:00 UTC.
func Weekly(name string, day time.Weekday, hour int) Trigger {
	return Trigger{Name: name, Hour: hour, Weekday: &day}
}

// Validate checks the trigger fields.
func (t Trigger) Validate() error {
	if t.Name == "" {
		return errors.New("trigger name is required")
	}
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("trigger %s: hour %d out of range", t.Name, t.Hour)
	}
	if t.Weekday != nil && (*t.Weekday < time.Sunday || *t.Weekday > time.Saturday) {
		return fmt.Errorf("trigger %s: invalid weekday %d", t.Name, *t.Weekday)
	}
	return nil
}

// LastFire returns the most recent fire time at or before now.
func (t Trigger) LastFire(now time.Time) time.Time {
	now = now.UTC()
	fire := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, 0, 0, 0, time.UTC)
	if fire.After(now) {
		fire = fire.AddDate(0, 0, -1)
	}
	if t.Weekday != nil {
		back := (int(fire.Weekday()) - int(*t.Weekday) + 7) % 7
		fire = fire.AddDate(0, 0, -back)
	}
	return fire
}

// NextFire returns the first fire time strictly after now.
func (t Trigger) NextFire(now time.Time) time.Time {
	period := 24 * time.Hour
	if t.Weekday != nil {
		period = 7 * 24 * time.Hour
	}
	return t.LastFire(now).Add(period)
}

// FireKey identifies one period of the trigger.
func (t Trigger) FireKey(fire time.Time) string {
	return t.Name + ":" + fire.UTC().Format(time.RFC3339)
}

// String describes the trigger for logs.
func (t Trigger) String() string {
	if t.Weekday == nil {
		return fmt.Sprintf("%s daily at %02d:00 UTC", t.Name, t.Hour)
	}
	return fmt.Sprintf("%s %s at %02d:00 UTC", t.Name, t.Weekday.String(), t.Hour)
}
