// Package star provides star-allele label ordering and diplotype string formatting.
package star

import (
	"strconv"
	"strings"
)

// label is a star-allele name split into its numeric prefix and suffix.
// "*3A" -> {num: 3, hasNum: true, suffix: "A"}; "*HapB3" -> {suffix: "HapB3"}.
type label struct {
	num    int
	hasNum bool
	suffix string
}

func parse(s string) label {
	s = strings.TrimPrefix(strings.TrimSpace(s), "*")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return label{suffix: s}
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return label{suffix: s}
	}
	return label{num: n, hasNum: true, suffix: s[i:]}
}

// Compare orders two star-allele labels.
// Labels with a leading number sort first, by number then suffix ("*1" < "*1b" < "*2" < "*17" < "*HapB3").
// Returns -1, 0 or +1.
func Compare(a, b string) int {
	la, lb := parse(a), parse(b)
	switch {
	case la.hasNum && !lb.hasNum:
		return -1
	case !la.hasNum && lb.hasNum:
		return 1
	case la.hasNum && la.num != lb.num:
		if la.num < lb.num {
			return -1
		}
		return 1
	}
	return strings.Compare(la.suffix, lb.suffix)
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Canonical returns the label with a single leading '*'.
func Canonical(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "*" + strings.TrimLeft(s, "*")
}

// Pair joins two alleles into a diplotype string in canonical order.
// Pair(a, b) == Pair(b, a) for all inputs.
func Pair(a, b string) string {
	a, b = Canonical(a), Canonical(b)
	if Less(b, a) {
		a, b = b, a
	}
	return a + "/" + b
}

// Split splits a diplotype string such as "*4/*1" into its two alleles.
// ok is false when the string does not contain exactly two non-empty alleles.
func Split(diplotype string) (a, b string, ok bool) {
	a, b, found := strings.Cut(strings.TrimSpace(diplotype), "/")
	if !found || strings.Contains(b, "/") {
		return "", "", false
	}
	a, b = Canonical(a), Canonical(b)
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Normalize re-orders a diplotype string canonically.
// ok is false when the input is not an "A/B" pair.
func Normalize(diplotype string) (string, bool) {
	a, b, ok := Split(diplotype)
	if !ok {
		return "", false
	}
	return Pair(a, b), true
}
