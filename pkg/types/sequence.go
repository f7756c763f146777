package types

import (
	"context"
	"iter"
)

// Element is one item of a lazy sequence: either a record or a pending
// placeholder meaning "progress was made, no new record yet".
type Element struct {
	rec *Record
}

// Pending is the placeholder element.
var Pending = Element{}

// Value wraps a record into an element. A nil record yields Pending.
func Value(r *Record) Element {
	return Element{rec: r}
}

// IsPending reports whether the element carries no record.
func (e Element) IsPending() bool {
	return e.rec == nil
}

// Record returns the wrapped record, or nil for Pending.
func (e Element) Record() *Record {
	return e.rec
}

// Sequence is a lazy, single-pass sequence of elements. A non-nil error
// terminates the sequence; consumers must stop ranging after it.
type Sequence func(yield func(Element, error) bool)

// Empty returns a sequence that yields nothing.
func Empty() Sequence {
	return func(yield func(Element, error) bool) {}
}

// Fail returns a sequence that yields a single error.
func Fail(err error) Sequence {
	return func(yield func(Element, error) bool) {
		yield(Pending, err)
	}
}

// Single returns a sequence of exactly one record.
func Single(r *Record) Sequence {
	return func(yield func(Element, error) bool) {
		yield(Value(r), nil)
	}
}

// FromRecords returns a sequence over a fixed slice of records.
func FromRecords(records []*Record) Sequence {
	return func(yield func(Element, error) bool) {
		for _, r := range records {
			if !yield(Value(r), nil) {
				return
			}
		}
	}
}

// Records iterates only the non-pending records of s. The iteration stops
// at the first error, which is reported as the second value.
func (s Sequence) Records() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for el, err := range s {
			if err != nil {
				yield(nil, err)
				return
			}
			if el.IsPending() {
				continue
			}
			if !yield(el.Record(), nil) {
				return
			}
		}
	}
}

// Drain pulls the whole sequence and returns its records, skipping pending
// elements.
func (s Sequence) Drain(ctx context.Context) ([]*Record, error) {
	var out []*Record
	n := 0
	for el, err := range s {
		if err != nil {
			return out, err
		}
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}
		n++
		if !el.IsPending() {
			out = append(out, el.Record())
		}
	}
	return out, nil
}

// Count drains s and returns the number of records it produced.
func (s Sequence) Count(ctx context.Context) (int, error) {
	n := 0
	pulls := 0
	for el, err := range s {
		if err != nil {
			return n, err
		}
		if pulls&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		pulls++
		if !el.IsPending() {
			n++
		}
	}
	return n, nil
}

// RecordSource is the external record provider the core delegates base
// result production to.
type RecordSource interface {
	// Query runs text against the given providers (all of them when the
	// slice is empty) and returns the results lazily. No work may happen
	// before the returned sequence is ranged.
	Query(ctx context.Context, providers []string, text string, flags ExecFlags) Sequence
}
