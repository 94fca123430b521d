package suggest

import (
	"sort"
	"strings"
)

// minTokenLen drops one-character fragments that would produce noise matches.
const minTokenLen = 2

func isTagDelimiter(r rune) bool {
	switch r {
	case ' ', '\t', '\n', ',', '.', '_', '-':
		return true
	}
	return false
}

// NormalizeTags canonicalizes a raw tag list: trimmed, lower-cased,
// de-duplicated, empty entries dropped. The result is sorted so repeated
// normalization of the same input yields the same slice (idempotent).
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TokenizeTags splits normalized tags into word-level tokens so that a
// multi-word tag like "gojo saturu" matches a candidate tagged just "gojo".
// Tokens shorter than minTokenLen are discarded; the result is de-duplicated
// and sorted.
func TokenizeTags(tags []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tag := range tags {
		for _, word := range strings.FieldsFunc(tag, isTagDelimiter) {
			if len(word) < minTokenLen {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			out = append(out, word)
		}
	}
	sort.Strings(out)
	return out
}

// tokenMatchesTag reports whether token matches tag as a whole word.
// "cat" must not match "category", but "gojo" matches "gojo saturu".
// Lowering here keeps the check correct for raw candidate tags too.
func tokenMatchesTag(token, tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, word := range strings.FieldsFunc(tag, isTagDelimiter) {
		if word == token {
			return true
		}
	}
	return false
}

// tokenMatchesAny reports whether token matches at least one of tags as a
// whole word.
func tokenMatchesAny(token string, tags []string) bool {
	for _, tag := range tags {
		if tokenMatchesTag(token, tag) {
			return true
		}
	}
	return false
}
