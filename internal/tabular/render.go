package tabular

import "strings"

// Width returns the widest row length.
func (g Grid) Width() int {
	w := 0
	for _, r := range g {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// NonEmpty drops rows whose cells are all blank.
func (g Grid) NonEmpty() Grid {
	out := make(Grid, 0, len(g))
	for _, r := range g {
		if !IsEmptyRow(r) {
			out = append(out, r)
		}
	}
	return out
}

// TSV renders rows tab-separated, one per line. Tabs and newlines inside cells become spaces.
func TSV(rows [][]string) string {
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, c := range r {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(cleanCell(c))
		}
	}
	return b.String()
}

// Markdown renders a header plus rows as a pipe table padded to the header width.
func Markdown(header []string, rows [][]string) string {
	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	var b strings.Builder
	writeRow := func(r []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			c := ""
			if i < len(r) {
				c = strings.ReplaceAll(cleanCell(r[i]), "|", "/")
			}
			b.WriteString(" ")
			b.WriteString(c)
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}
	writeRow(header)
	b.WriteString("|")
	for i := 0; i < width; i++ {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')
	for _, r := range rows {
		writeRow(r)
	}
	return b.String()
}

var cellCleaner = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func cleanCell(c string) string {
	return strings.TrimSpace(cellCleaner.Replace(c))
}
