package receipt

import (
	"strings"

	"golang.org/x/text/width"
)

// displayWidth counts terminal columns: wide and fullwidth runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// wrap breaks text into lines no wider than limit, splitting on spaces and
// hard-breaking words that are wider than a whole line.
func wrap(text string, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var cur strings.Builder
	curW := 0
	flush := func() {
		lines = append(lines, cur.String())
		cur.Reset()
		curW = 0
	}

	for _, w := range words {
		ww := displayWidth(w)
		if curW > 0 && curW+1+ww <= limit {
			cur.WriteByte(' ')
			cur.WriteString(w)
			curW += 1 + ww
			continue
		}
		if curW > 0 {
			flush()
		}
		for ww > limit {
			head, rest := cutWidth(w, limit)
			lines = append(lines, head)
			w = rest
			ww = displayWidth(w)
		}
		cur.WriteString(w)
		curW = ww
	}
	if curW > 0 {
		flush()
	}
	return lines
}

// cutWidth splits s after at most limit columns, always taking at least one rune.
func cutWidth(s string, limit int) (string, string) {
	used := 0
	for i, r := range s {
		rw := runeWidth(r)
		if used+rw > limit && i > 0 {
			return s[:i], s[i:]
		}
		used += rw
	}
	return s, ""
}

func center(s string, cols int) string {
	pad := (cols - displayWidth(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}

// leftRight places right flush against the last column.
func leftRight(left, right string, cols int) string {
	gap := cols - displayWidth(left) - displayWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
