package receipt

import (
	"fmt"
	"strings"
)

// cutterFeed is the number of blank lines appended so the ticket clears the
// thermal cutter.
const cutterFeed = 4

// EncodeText lays the document out as fixed-width text.
func EncodeText(doc *Document) string {
	cols := doc.Columns
	if cols <= 0 {
		cols = ColumnsFor(doc.PaperWidth)
	}
	var lines []string
	add := func(s ...string) { lines = append(lines, s...) }
	centered := func(s string) {
		for _, l := range wrap(s, cols) {
			add(center(l, cols))
		}
	}

	for _, h := range doc.Header {
		centered(h)
	}
	add(strings.Repeat("=", cols))
	centered("ORDER #" + doc.OrderNumber)
	for _, r := range doc.Rows {
		label := r.Label + ": "
		for i, l := range wrap(r.Value, cols-len(label)) {
			if i == 0 {
				add(label + l)
			} else {
				add(strings.Repeat(" ", len(label)) + l)
			}
		}
	}
	add(strings.Repeat("-", cols))

	for _, it := range doc.Items {
		add(itemLines(it, cols)...)
	}
	add(strings.Repeat("-", cols))

	add(leftRight("Subtotal", doc.Subtotal, cols))
	add(leftRight("Tax", doc.Tax, cols))
	add(leftRight("TOTAL", doc.Total, cols))

	if doc.Instructions != "" {
		add(strings.Repeat("-", cols))
		add("NOTES:")
		for _, para := range strings.Split(doc.Instructions, "\n") {
			add(wrap(para, cols)...)
		}
	}

	add(strings.Repeat("-", cols))
	if doc.Timestamp != "" {
		centered(doc.Timestamp)
	}
	for _, f := range doc.Footer {
		centered(f)
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.TrimRight(l, " "))
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("\n", cutterFeed))
	return b.String()
}

func itemLines(it Item, cols int) []string {
	prefix := fmt.Sprintf("%d x ", it.Quantity)
	indent := strings.Repeat(" ", len(prefix))
	nameCols := cols - displayWidth(it.Total) - 1 - len(prefix)

	var out []string
	for i, l := range wrap(it.Name, nameCols) {
		if i == 0 {
			out = append(out, leftRight(prefix+l, it.Total, cols))
		} else {
			out = append(out, indent+l)
		}
	}

	const modPrefix = "   + "
	modIndent := strings.Repeat(" ", len(modPrefix))
	for _, m := range it.Modifiers {
		for i, l := range wrap(m, cols-len(modPrefix)) {
			if i == 0 {
				out = append(out, modPrefix+l)
			} else {
				out = append(out, modIndent+l)
			}
		}
	}
	return out
}
