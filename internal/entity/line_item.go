package entity

// LineItem is one disposal event. WeightKg is always kilograms.
type LineItem struct {
	Date        ConfidenceField[string]  `json:"date"`
	Material    ConfidenceField[string]  `json:"material"`
	Handling    ConfidenceField[string]  `json:"handling"`
	WeightKg    ConfidenceField[float64] `json:"weightKg"`
	Percentage  ConfidenceField[string]  `json:"percentage"`
	CO2Saved    ConfidenceField[float64] `json:"co2Saved"`
	IsHazardous ConfidenceField[bool]    `json:"isHazardous"`
	Address     ConfidenceField[string]  `json:"address"`
	Receiver    ConfidenceField[string]  `json:"receiver"`

	VerificationIssues []VerificationIssue `json:"_verificationIssues,omitempty"`
}

// AggregationKey identifies the logical disposal event a row belongs to.
type AggregationKey struct {
	Date     string
	Location string
	Material string
	Receiver string
}

// Key returns the (date, location, material, receiver) tuple of the item.
func (li LineItem) Key() AggregationKey {
	return AggregationKey{
		Date:     li.Date.Value,
		Location: li.Address.Value,
		Material: li.Material.Value,
		Receiver: li.Receiver.Value,
	}
}

// CloneItems copies items so annotations on the copy never leak into the source slice.
func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.VerificationIssues != nil {
			out[i].VerificationIssues = append([]VerificationIssue(nil), it.VerificationIssues...)
		}
	}
	return out
}
