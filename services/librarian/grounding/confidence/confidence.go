// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package confidence defines the tagged confidence value attached to every
// verification verdict.
//
// A Value records how a number was obtained, not just the number. Absence
// of evidence is an explicit Absent value with a reason code; callers must
// never substitute a default score.
package confidence

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the provenance tag of a confidence value.
type Kind string

const (
	// KindDeterministic is an exact, rule-derived value.
	KindDeterministic Kind = "deterministic"

	// KindDerived is computed by a named formula from other inputs.
	KindDerived Kind = "derived"

	// KindMeasured is observed from a named source.
	KindMeasured Kind = "measured"

	// KindBounded is known only to lie in [Lower, Upper].
	KindBounded Kind = "bounded"

	// KindAbsent means no evidence was available.
	KindAbsent Kind = "absent"
)

// Reason codes for absent values.
const (
	ReasonNoContext  = "no_context"
	ReasonNoClaims   = "no_claims"
	ReasonNoEvidence = "no_evidence"
	ReasonEmptyInput = "empty_input"
)

// Input is one named term of a derived value.
type Input struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Value is a tagged confidence. Only the fields relevant to Kind are set.
type Value struct {
	Kind    Kind    `json:"kind"`
	Score   float64 `json:"score"`
	Lower   float64 `json:"lower,omitempty"`
	Upper   float64 `json:"upper,omitempty"`
	Source  string  `json:"source,omitempty"`
	Formula string  `json:"formula,omitempty"`
	Inputs  []Input `json:"inputs,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Deterministic returns an exact value.
func Deterministic(v float64) Value {
	return Value{Kind: KindDeterministic, Score: Clamp(v)}
}

// Measured returns a value observed from source.
func Measured(v float64, source string) Value {
	return Value{Kind: KindMeasured, Score: Clamp(v), Source: source}
}

// Bounded returns an interval value. The bounds are clamped and ordered.
func Bounded(lower, upper float64) Value {
	lo, hi := Clamp(lower), Clamp(upper)
	if lo > hi {
		lo, hi = hi, lo
	}
	return Value{Kind: KindBounded, Score: lo, Lower: lo, Upper: hi}
}

// Derived returns a value computed by formula from inputs.
func Derived(formula string, v float64, inputs ...Input) Value {
	return Value{Kind: KindDerived, Score: Clamp(v), Formula: formula, Inputs: inputs}
}

// Absent returns an explicit no-evidence value.
func Absent(reason string) Value {
	return Value{Kind: KindAbsent, Reason: reason}
}

// Scalar returns the value as a number in [0,1]. Bounded values report
// their lower bound and absent values report 0.
func (v Value) Scalar() float64 {
	switch v.Kind {
	case KindAbsent:
		return 0
	case KindBounded:
		return Clamp(v.Lower)
	default:
		return Clamp(v.Score)
	}
}

// IsAbsent reports whether the value carries no evidence.
func (v Value) IsAbsent() bool {
	return v.Kind == KindAbsent || v.Kind == ""
}

// String renders the value with its provenance.
func (v Value) String() string {
	switch v.Kind {
	case KindAbsent:
		return "absent(" + v.Reason + ")"
	case KindBounded:
		return fmt.Sprintf("bounded[%.2f,%.2f]", v.Lower, v.Upper)
	case KindDerived:
		parts := make([]string, 0, len(v.Inputs))
		for _, in := range v.Inputs {
			parts = append(parts, fmt.Sprintf("%s=%.2f", in.Name, in.Value))
		}
		return fmt.Sprintf("derived(%s)=%.2f [%s]", v.Formula, v.Score, strings.Join(parts, " "))
	case KindMeasured:
		return fmt.Sprintf("measured(%s)=%.2f", v.Source, v.Score)
	default:
		return fmt.Sprintf("%s=%.2f", v.Kind, v.Score)
	}
}

// Clamp limits v to [0,1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
