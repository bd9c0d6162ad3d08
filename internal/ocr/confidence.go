package ocr

import (
	"regexp"
	"strings"
)

var (
	reBoxNoise = regexp.MustCompile(`[│┃┆┊╎╏]+`)
	reDate     = regexp.MustCompile(`\b(19|20)\d{2}[-/.]\d{1,2}[-/.]\d{1,2}\b|\b\d{1,2}[-/.]\d{1,2}[-/.](19|20)\d{2}\b`)
	reWeight   = regexp.MustCompile(`\b\d[\d\s.,]*\s?(kg|ton|t)\b`)
	reWaste    = regexp.MustCompile(`avfall|material|vikt|mottagare|fraktion|waste|weight`)
	reSpaces   = regexp.MustCompile(`[ \t]+`)
	reBlank    = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of spaces and blank lines.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reSpaces.ReplaceAllString(s, " ")
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// heuristicConfidence scores recognised text by the waste-report artifacts it contains.
func heuristicConfidence(txt string) float64 {
	txtL := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reWeight.MatchString(txtL) {
		score += 0.2
	}
	if reWaste.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	return min(score, 1.0)
}
