// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

// numberWords maps English number words to their integer values.
var numberWords = map[string]int{
	"zero":  0,
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
	"six":   6,
	"seven": 7,
	"eight": 8,
	"nine":  9,
	"ten":   10,
}

// digitWords is the reverse of numberWords.
var digitWords = [...]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten"}

// NumberAlternation is the regex alternation for a count: digits or a
// number word from zero to ten.
const NumberAlternation = `\d+|zero|one|two|three|four|five|six|seven|eight|nine|ten`

var (
	numberWordPattern = regexp.MustCompile(`(?i)\b(zero|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
	countPattern      = regexp.MustCompile(`(?i)\b(` + NumberAlternation + `)\b`)
)

// ParseCount parses a digit string or a number word.
//
// Outputs:
//
//	int - The parsed value.
//	bool - False if s is neither a non-negative integer nor a known word.
func ParseCount(s string) (int, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if v, ok := numberWords[s]; ok {
		return v, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// NumberWord returns the English word for n in [0,10], or the digits.
func NumberWord(n int) string {
	if n >= 0 && n < len(digitWords) {
		return digitWords[n]
	}
	return strconv.Itoa(n)
}

// CanonicalizeNumbers rewrites number words in text as digits.
func CanonicalizeNumbers(text string) string {
	return numberWordPattern.ReplaceAllStringFunc(text, func(w string) string {
		return strconv.Itoa(numberWords[strings.ToLower(w)])
	})
}

// FindCounts returns every count in text in order of appearance, with
// number words resolved to their values.
func FindCounts(text string) []int {
	var out []int
	for _, m := range countPattern.FindAllString(text, -1) {
		if v, ok := ParseCount(m); ok {
			out = append(out, v)
		}
	}
	return out
}

func isNumberToken(tok string) bool {
	_, ok := ParseCount(tok)
	return ok
}
