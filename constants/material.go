package constants

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultMaterial is the document-level material used when a record mixes fractions.
const DefaultMaterial = "Blandat"

// UnknownMaterial is used for rows where no material could be read.
const UnknownMaterial = "Okänt"

// DefaultReceiver is the receiver assumed when neither the row nor the filename names one.
const DefaultReceiver = "Ragn-Sells"

// UnknownReceiver is the receiver label when inference fails and no default is configured.
const UnknownReceiver = "Okänd mottagare"

// DefaultLanguage is assumed whenever language detection is unavailable.
const DefaultLanguage = "Swedish"

// HazardousPattern matches material labels that denote regulated waste.
var HazardousPattern = regexp.MustCompile(`(?i)(farligt\s*avfall|\bfa\b|hazardous|asbest|spillolja|oljeavfall|lösningsmedel|färgavfall|batterier|elavfall|kemikalier)`)

// IsHazardousMaterial reports whether a material label carries a hazardous marker.
func IsHazardousMaterial(material string) bool {
	return HazardousPattern.MatchString(material)
}

// DefaultMaterialSynonyms is the glossary used when no settings are stored.
var DefaultMaterialSynonyms = map[string][]string{
	"Trä":            {"trä", "träavfall", "wood", "virke", "brädor"},
	"Brännbart":      {"brännbart", "brännbart avfall", "combustible", "energiåtervinning"},
	"Blandat":        {"blandat", "blandavfall", "mixed", "osorterat"},
	"Metall":         {"metall", "metallskrot", "järn", "skrot", "metal"},
	"Well/Kartong":   {"wellpapp", "kartong", "cardboard", "well"},
	"Gips":           {"gips", "gipsskivor", "gypsum"},
	"Betong":         {"betong", "concrete", "tegel", "sten"},
	"Plast":          {"plast", "plastic", "mjukplast", "hårdplast"},
	"Glas":           {"glas", "glass", "planglas"},
	"Farligt avfall": {"farligt avfall", "fa", "hazardous"},
}

// KnownReceivers maps filename markers to the receiver they identify.
var KnownReceivers = []struct {
	Marker   string
	Receiver string
}{
	{"ragn-sells", "Ragn-Sells"},
	{"ragnsells", "Ragn-Sells"},
	{"renova", "Renova"},
	{"nsr", "NSR"},
	{"collecct", "Collecct"},
}

// ReceiverFromFilename returns the receiver a filename points at, if any.
func ReceiverFromFilename(filename string) (string, bool) {
	fn := strings.ToLower(filename)
	for _, k := range KnownReceivers {
		if strings.Contains(fn, k.Marker) {
			return k.Receiver, true
		}
	}
	return "", false
}

// CanonicalizeMaterial maps a raw material label onto its standard name using the glossary.
// Unknown labels are returned trimmed and unchanged.
func CanonicalizeMaterial(input string, synonyms map[string][]string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	normalized := strings.ToLower(trimmed)

	for _, std := range sortedKeys(synonyms) {
		if normalized == strings.ToLower(std) {
			return std, true
		}
		for _, syn := range synonyms[std] {
			if normalized == strings.ToLower(strings.TrimSpace(syn)) {
				return std, true
			}
		}
	}
	return trimmed, false
}

// FormatSynonyms renders the glossary as "Standard: a, b, c" lines in stable order.
func FormatSynonyms(synonyms map[string][]string) string {
	var b strings.Builder
	for _, std := range sortedKeys(synonyms) {
		b.WriteString("- ")
		b.WriteString(std)
		b.WriteString(": ")
		b.WriteString(strings.Join(synonyms[std], ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
