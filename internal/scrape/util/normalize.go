package util

import "strings"

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// CleanEmails trims, lower-cases and dedupes, keeping first-seen order.
func CleanEmails(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// CleanPhones strips everything but digits and dedupes.
func CleanPhones(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range in {
		d := DigitsOnly(p)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FirstLink returns the first non-blank link.
func FirstLink(links []string) string {
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// SplitList splits a ", " joined cell back into its items.
func SplitList(cell string) []string {
	var out []string
	for _, p := range strings.Split(cell, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func JoinList(items []string) string {
	return strings.Join(items, ", ")
}
