package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey returns the comparison key for free text: NFKC-normalized,
// case-folded, with runs of whitespace collapsed to one space and the ends
// trimmed. Two values are considered equal for matching iff their keys match.
// A Caser is stateful, so one is built per call.
func NormalizeKey(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail returns the comparison key for an email address. Internal
// whitespace is not meaningful in an address, so it is removed entirely.
func NormalizeEmail(s string) string {
	k := NormalizeKey(s)
	return strings.ReplaceAll(k, " ", "")
}

// MergeEmails unions add into existing, keeping the existing order and the
// first-seen spelling of each address. Blank values are dropped. The result
// never has fewer entries than the de-duplicated existing slice.
func MergeEmails(existing []string, add ...string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	push := func(e string) {
		e = strings.TrimSpace(e)
		key := NormalizeEmail(e)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	for _, e := range existing {
		push(e)
	}
	for _, e := range add {
		push(e)
	}
	return out
}

// EmailKeys returns the normalized keys of emails.
func EmailKeys(emails []string) []string {
	keys := make([]string, 0, len(emails))
	for _, e := range emails {
		if k := NormalizeEmail(e); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// SplitName splits a full name into first name and the remainder.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// JoinName is the inverse of SplitName.
func JoinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
