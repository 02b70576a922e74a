package core

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

type (
	// Amount is a named aggregate value (revenue, hours, rate...).
	Amount struct {
		Name  string
		Value float64
	}

	// Ranking is an ordered sequence of amounts. Order is part of the
	// contract: a sorted ranking is descending by value.
	Ranking []Amount

	// Count is a named integer aggregate.
	Count struct {
		Name  string
		Value int
	}

	// Counts keeps integer aggregates in first-seen order.
	Counts []Count
)

// Float is a float64 that encodes as null in JSON when it is not finite.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	if !IsDefined(float64(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// IsDefined reports whether v is a finite number. Hourly rates and average
// service values are NaN or Inf when the divisor is zero.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SortDesc orders amounts by descending value, keeping encounter order among
// equal values. +Inf ranks first, NaN ranks last.
func (r Ranking) SortDesc() {
	sort.SliceStable(r, func(i, j int) bool {
		a, b := r[i].Value, r[j].Value
		if math.IsNaN(a) {
			return false
		}
		if math.IsNaN(b) {
			return true
		}
		return a > b
	})
}

// Lookup returns the value stored for name.
func (r Ranking) Lookup(name string) (float64, bool) {
	for _, a := range r {
		if a.Name == name {
			return a.Value, true
		}
	}
	return 0, false
}

// ValueOr returns the value for name, or def when absent.
func (r Ranking) ValueOr(name string, def float64) float64 {
	if v, ok := r.Lookup(name); ok {
		return v
	}
	return def
}

// Names returns the keys in ranking order.
func (r Ranking) Names() []string {
	out := make([]string, len(r))
	for i, a := range r {
		out[i] = a.Name
	}
	return out
}

// First and Last return the head and tail of the ranking.
func (r Ranking) First() (Amount, bool) {
	if len(r) == 0 {
		return Amount{}, false
	}
	return r[0], true
}

func (r Ranking) Last() (Amount, bool) {
	if len(r) == 0 {
		return Amount{}, false
	}
	return r[len(r)-1], true
}

// MarshalJSON encodes the ranking as an object whose member order follows
// the slice. Non-finite values become null.
func (r Ranking) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, a := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		v, err := Float(a.Value).MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Lookup returns the count stored for name.
func (c Counts) Lookup(name string) (int, bool) {
	for _, n := range c {
		if n.Name == name {
			return n.Value, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the counts as an ordered object.
func (c Counts) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, n := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(n.Name)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(n.Value))
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
