package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wenyongqd/anniversary/internal/timeline"
)

var statusCaser = cases.Title(language.English)

func statusLabel(status timeline.Status) string {
	return statusCaser.String(string(status))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateText(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit-1]) + "…"
}

// resolveIDs expands unique id prefixes against the current entries.
func resolveIDs(entries []timeline.PhotoEntry, prefixes []string) ([]string, error) {
	ids := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		var matches []string
		for _, e := range entries {
			if e.ID == prefix {
				matches = []string{e.ID}
				break
			}
			if strings.HasPrefix(e.ID, prefix) {
				matches = append(matches, e.ID)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("no entry matches %q", prefix)
		case 1:
			ids = append(ids, matches[0])
		default:
			return nil, fmt.Errorf("%q matches %d entries; use a longer prefix", prefix, len(matches))
		}
	}
	return ids, nil
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
