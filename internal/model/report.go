package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal sanitization kinds.
var (
	ErrMultipleMainSavings = errors.New("multiple items flagged as main savings")
	ErrZeroUnitPrice       = errors.New("shares item has zero unit price")
)

// Correction is one auto-applied normalization: the caller sees a diff of
// what Sanitize changed and decides to accept or abort.
type Correction struct {
	EntityID string `json:"entity_id"`
	Entity   string `json:"entity"`
	Field    string `json:"field"`
	Old      string `json:"old"`
	New      string `json:"new"`
	Reason   string `json:"reason"`
}

func (c Correction) String() string {
	return fmt.Sprintf("%s %s: %s %q -> %q (%s)", c.Entity, c.EntityID, c.Field, c.Old, c.New, c.Reason)
}

// Report collects everything a Sanitize pass corrected or refused. Fatals
// do not stop the pass; they are folded into one error at the end so the
// caller sees the complete picture.
type Report struct {
	Corrections []Correction `json:"corrections"`
	Fatals      []error      `json:"-"`
}

func (r *Report) correct(entity, id, field, old, new, reason string) {
	r.Corrections = append(r.Corrections, Correction{
		EntityID: id, Entity: entity, Field: field, Old: old, New: new, Reason: reason,
	})
}

func (r *Report) fatal(err error) {
	r.Fatals = append(r.Fatals, err)
}

// Err folds the fatal findings into a single error, or nil if the config is
// runnable.
func (r *Report) Err() error {
	if len(r.Fatals) == 0 {
		return nil
	}
	return errors.Join(r.Fatals...)
}

// Empty reports whether the pass changed nothing and found nothing fatal.
// Sanitize is idempotent, so a second pass over its own output is Empty.
func (r *Report) Empty() bool {
	return len(r.Corrections) == 0 && len(r.Fatals) == 0
}
