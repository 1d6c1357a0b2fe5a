package submission

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SortBy selects the ordering of a ranked triage list.
type SortBy string

const (
	SortByPriority SortBy = "priority"
	SortByRecent   SortBy = "recent"
	SortByName     SortBy = "name"
)

// StatusFilter narrows a ranked list by submission status.
type StatusFilter string

const (
	StatusFilterAll      StatusFilter = "all"
	StatusFilterPending  StatusFilter = "pending"
	StatusFilterReviewed StatusFilter = "reviewed"
)

// AppointmentFilter narrows a ranked list by whether the patient has an
// upcoming appointment.
type AppointmentFilter string

const (
	AppointmentFilterAny     AppointmentFilter = "any"
	AppointmentFilterWith    AppointmentFilter = "with"
	AppointmentFilterWithout AppointmentFilter = "without"
)

// TriageItem is a submission joined with the patient details a caregiver
// sees in the queue. Score is recomputed at read time; the stored
// priority_score column is never surfaced here.
type TriageItem struct {
	Submission     *Submission `json:"submission"`
	PatientName    string      `json:"patient_name"`
	PatientEmail   string      `json:"patient_email"`
	HasAppointment bool        `json:"has_appointment"`
	Score          float64     `json:"score"`
}

// RankOptions configure Rank. Zero values mean priority ordering with no
// filtering and no limit.
type RankOptions struct {
	SortBy      SortBy
	Status      StatusFilter
	Appointment AppointmentFilter
	Limit       int
}

func (o *RankOptions) normalize() error {
	if o.SortBy == "" {
		o.SortBy = SortByPriority
	}
	if o.Status == "" {
		o.Status = StatusFilterAll
	}
	if o.Appointment == "" {
		o.Appointment = AppointmentFilterAny
	}
	switch o.SortBy {
	case SortByPriority, SortByRecent, SortByName:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrValidation, o.SortBy)
	}
	switch o.Status {
	case StatusFilterAll, StatusFilterPending, StatusFilterReviewed:
	default:
		return fmt.Errorf("%w: unknown status filter %q", ErrValidation, o.Status)
	}
	switch o.Appointment {
	case AppointmentFilterAny, AppointmentFilterWith, AppointmentFilterWithout:
	default:
		return fmt.Errorf("%w: unknown appointment filter %q", ErrValidation, o.Appointment)
	}
	return nil
}

func (o RankOptions) match(it TriageItem) bool {
	switch o.Status {
	case StatusFilterPending:
		if it.Submission.Status != StatusPending {
			return false
		}
	case StatusFilterReviewed:
		if it.Submission.Status != StatusReviewed {
			return false
		}
	}
	switch o.Appointment {
	case AppointmentFilterWith:
		if !it.HasAppointment {
			return false
		}
	case AppointmentFilterWithout:
		if it.HasAppointment {
			return false
		}
	}
	return true
}

// Rank filters, scores and orders triage items at the given instant. The
// input slice is not modified. Every filter is applied before the limit, and
// ties in any ordering break on submission id so repeated calls with the
// same inputs return the same sequence.
func Rank(items []TriageItem, now time.Time, opts RankOptions) ([]TriageItem, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	out := make([]TriageItem, 0, len(items))
	for _, it := range items {
		if !opts.match(it) {
			continue
		}
		score, err := Score(it.Submission.Severity, it.Submission.SubmittedAt, now)
		if err != nil {
			return nil, err
		}
		it.Score = score
		out = append(out, it)
	}

	less := byPriority
	switch opts.SortBy {
	case SortByRecent:
		less = byRecency
	case SortByName:
		less = byName
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func byPriority(a, b TriageItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return idLess(a, b)
}

func byRecency(a, b TriageItem) bool {
	at, bt := a.Submission.SubmittedAt, b.Submission.SubmittedAt
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return idLess(a, b)
}

// byName sorts case-insensitively ascending with unnamed patients last.
func byName(a, b TriageItem) bool {
	an := strings.ToLower(strings.TrimSpace(a.PatientName))
	bn := strings.ToLower(strings.TrimSpace(b.PatientName))
	switch {
	case an == "" && bn != "":
		return false
	case an != "" && bn == "":
		return true
	case an != bn:
		return an < bn
	}
	return idLess(a, b)
}

func idLess(a, b TriageItem) bool {
	return a.Submission.ID.String() < b.Submission.ID.String()
}
