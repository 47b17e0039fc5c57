package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachflow/coachflow/pkg/models"
	"github.com/coachflow/coachflow/pkg/persistence"
)

const day = 24 * time.Hour

// errNeverEligible marks a step whose config can never be satisfied: the
// execution stalls there observably instead of failing (data-entry error,
// not a system fault).
var errNeverEligible = errors.New("step can never become eligible")

// stepRule is the timing and repeat behaviour extracted from a step's
// config union. Audience steps have no rule; they advance unconditionally.
type stepRule struct {
	timing models.SendTiming
	repeat models.RepeatPolicy
	// waitDays is set for wait steps, which use elapsed days instead of a
	// send timing.
	waitDays int
	isWait   bool
}

// ruleFor extracts the evaluation rule from a step config.
func ruleFor(step *models.WorkflowStep) (stepRule, error) {
	switch config := step.Config.(type) {
	case *models.FormConfig:
		return stepRule{timing: config.Timing, repeat: config.Repeat}, nil
	case *models.NotificationConfig:
		return stepRule{timing: config.Timing, repeat: config.Repeat}, nil
	case *models.WaitConfig:
		return stepRule{waitDays: config.Days, isWait: true, repeat: config.Repeat}, nil
	default:
		return stepRule{}, fmt.Errorf("step %s has no evaluable config", step.ID)
	}
}

// singleShot reports whether the step can only ever fire once, regardless of
// the configured repeat policy.
func (r stepRule) singleShot() bool {
	if r.repeat.EffectiveKind() == models.RepeatOnce {
		return true
	}

	if r.isWait {
		return false
	}

	return r.timing.SingleShot()
}

// suppressed reports whether the repeat policy forbids further firings, in
// which case the execution advances past the step without firing.
func (r stepRule) suppressed(client *models.Client, occurrence *models.StepOccurrence, now time.Time) bool {
	if r.singleShot() {
		return occurrence.FiredCount >= 1
	}

	switch r.repeat.EffectiveKind() {
	case models.RepeatCustom:
		return occurrence.FiredCount >= r.repeat.Count
	case models.RepeatUntilSubscriptionEnds:
		return client.SubscriptionEnded(now)
	default:
		return occurrence.FiredCount >= 1
	}
}

// eligible decides whether the step may fire now. A step whose condition can
// never be satisfied returns errNeverEligible so the caller can surface the
// stall.
func (e *Engine) eligible(
	ctx context.Context,
	rule stepRule,
	execution *models.WorkflowExecution,
	client *models.Client,
	occurrence *models.StepOccurrence,
	now time.Time,
) (bool, error) {
	// A repeating until-subscription-ends step on a client with no
	// subscription has no end condition: the execution stalls rather than
	// firing without bound.
	if !rule.singleShot() &&
		rule.repeat.EffectiveKind() == models.RepeatUntilSubscriptionEnds &&
		client.SubscriptionEndsAt == nil {
		return false, errNeverEligible
	}

	if rule.isWait {
		// Repeat firings re-anchor the wait window on the previous firing.
		anchor := execution.StepStartedAt
		if occurrence.LastFiredAt != nil {
			anchor = *occurrence.LastFiredAt
		}

		return now.Sub(anchor) >= time.Duration(rule.waitDays)*day, nil
	}

	switch rule.timing.EffectiveKind() {
	case models.SendImmediate:
		return true, nil

	case models.SendDelayDays:
		return now.Sub(execution.StepStartedAt) >= time.Duration(rule.timing.DelayDays)*day, nil

	case models.SendAfterFormSubmission:
		return e.submissionEligible(ctx, rule, execution, occurrence, now)

	case models.SendBeforeSubscriptionEnd:
		if client.SubscriptionEndsAt == nil {
			// No subscription: the condition is never satisfied.
			return false, errNeverEligible
		}

		target := client.SubscriptionEndsAt.Add(-time.Duration(rule.timing.DaysBefore) * day)

		return !now.Before(target), nil

	case models.SendSpecificDayOfWeek:
		if now.Weekday() != rule.timing.Weekday {
			return false, nil
		}

		return !firedSameDay(occurrence, now), nil

	case models.SendSpecificTimeOfDay:
		offset, err := models.ParseTimeOfDay(rule.timing.TimeOfDay)
		if err != nil {
			return false, errNeverEligible
		}

		year, month, dayOfMonth := now.Date()
		target := time.Date(year, month, dayOfMonth, 0, 0, 0, 0, now.Location()).Add(offset)

		if now.Before(target) {
			return false, nil
		}

		return !firedSameDay(occurrence, now), nil

	default:
		return false, errNeverEligible
	}
}

// submissionEligible implements after-form-submission timing: the client
// must have submitted the trigger form after the step became current (and
// after the previous firing when the step repeats), plus the configured
// delay since that submission.
func (e *Engine) submissionEligible(
	ctx context.Context,
	rule stepRule,
	execution *models.WorkflowExecution,
	occurrence *models.StepOccurrence,
	now time.Time,
) (bool, error) {
	if rule.timing.TriggerFormID == "" {
		return false, errNeverEligible
	}

	submission, err := e.roster().LatestSubmission(ctx, execution.ClientID, rule.timing.TriggerFormID)
	if err != nil {
		if errors.Is(err, persistence.ErrSubmissionNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to look up submission: %w", err)
	}

	if submission.SubmittedAt.Before(execution.StepStartedAt) {
		return false, nil
	}

	// Repeat firings each need a submission newer than the previous firing.
	if occurrence.LastFiredAt != nil && !submission.SubmittedAt.After(*occurrence.LastFiredAt) {
		return false, nil
	}

	readyAt := submission.SubmittedAt.Add(time.Duration(rule.timing.DelayDaysAfterSubmission) * day)

	return !now.Before(readyAt), nil
}

// firedSameDay reports whether the step last fired on the same local
// calendar day as now. Day/time timing rules fire at most once per day.
func firedSameDay(occurrence *models.StepOccurrence, now time.Time) bool {
	if occurrence.LastFiredAt == nil {
		return false
	}

	lastFired := occurrence.LastFiredAt.In(now.Location())

	return lastFired.Year() == now.Year() && lastFired.YearDay() == now.YearDay()
}
