package models

import (
	"errors"
	"fmt"
	"time"
)

// SendTimingKind identifies when a form or notification step becomes
// eligible to fire.
type SendTimingKind string

const (
	SendImmediate             SendTimingKind = "immediate"
	SendDelayDays             SendTimingKind = "delay_days"
	SendAfterFormSubmission   SendTimingKind = "after_form_submission"
	SendBeforeSubscriptionEnd SendTimingKind = "before_subscription_end"
	SendSpecificDayOfWeek     SendTimingKind = "specific_day_of_week"
	SendSpecificTimeOfDay     SendTimingKind = "specific_time_of_day"
)

// SendTiming is the tagged union of timing rules. Only the fields for the
// active kind are meaningful.
type SendTiming struct {
	Kind SendTimingKind `json:"kind,omitempty"`

	// delay_days
	DelayDays int `json:"delay_days,omitempty"`

	// after_form_submission
	TriggerFormID            string `json:"trigger_form_id,omitempty"`
	DelayDaysAfterSubmission int    `json:"delay_days_after_submission,omitempty"`

	// before_subscription_end
	DaysBefore int `json:"days_before,omitempty"`

	// specific_day_of_week, 0 = Sunday
	Weekday time.Weekday `json:"weekday,omitempty"`

	// specific_time_of_day, "15:04" wall clock
	TimeOfDay string `json:"time_of_day,omitempty"`
}

// EffectiveKind returns the timing kind, defaulting to immediate when unset.
func (t SendTiming) EffectiveKind() SendTimingKind {
	if t.Kind == "" {
		return SendImmediate
	}

	return t.Kind
}

// SingleShot reports whether the timing rule selects a single instant, in
// which case repeat policies other than once are meaningless: re-evaluating
// the rule never yields a later eligible occurrence.
func (t SendTiming) SingleShot() bool {
	switch t.EffectiveKind() {
	case SendImmediate, SendDelayDays, SendBeforeSubscriptionEnd:
		return true
	default:
		return false
	}
}

func (t SendTiming) Validate() error {
	switch t.EffectiveKind() {
	case SendImmediate:
		return nil
	case SendDelayDays:
		if t.DelayDays < 0 {
			return errors.New("delay days must not be negative")
		}

		return nil
	case SendAfterFormSubmission:
		if t.TriggerFormID == "" {
			return errors.New("after form submission timing requires a trigger form id")
		}

		if t.DelayDaysAfterSubmission < 0 {
			return errors.New("delay after submission must not be negative")
		}

		return nil
	case SendBeforeSubscriptionEnd:
		if t.DaysBefore < 0 {
			return errors.New("days before subscription end must not be negative")
		}

		return nil
	case SendSpecificDayOfWeek:
		if t.Weekday < time.Sunday || t.Weekday > time.Saturday {
			return fmt.Errorf("invalid weekday %d", t.Weekday)
		}

		return nil
	case SendSpecificTimeOfDay:
		_, err := ParseTimeOfDay(t.TimeOfDay)

		return err
	default:
		return fmt.Errorf("unknown send timing %q", t.Kind)
	}
}

// ParseTimeOfDay parses an "hh:mm" wall-clock value into the offset from
// midnight.
func ParseTimeOfDay(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", value, err)
	}

	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

// RepeatKind identifies how often a step may fire before the execution
// advances past it.
type RepeatKind string

const (
	RepeatOnce                  RepeatKind = "once"
	RepeatUntilSubscriptionEnds RepeatKind = "until_subscription_ends"
	RepeatCustom                RepeatKind = "custom"
)

// RepeatPolicy bounds how many times a step fires. Zero value means once.
type RepeatPolicy struct {
	Kind  RepeatKind `json:"kind,omitempty"`
	Count int        `json:"count,omitempty"`
}

// EffectiveKind returns the repeat kind, defaulting to once when unset.
func (p RepeatPolicy) EffectiveKind() RepeatKind {
	if p.Kind == "" {
		return RepeatOnce
	}

	return p.Kind
}

func (p RepeatPolicy) Validate() error {
	switch p.EffectiveKind() {
	case RepeatOnce, RepeatUntilSubscriptionEnds:
		return nil
	case RepeatCustom:
		if p.Count < 1 {
			return errors.New("custom repeat requires a count of at least 1")
		}

		return nil
	default:
		return fmt.Errorf("unknown repeat policy %q", p.Kind)
	}
}
