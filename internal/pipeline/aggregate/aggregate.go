// Package aggregate collapses line items that describe the same disposal event.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
)

type Result struct {
	Items      []entity.LineItem
	InputRows  int
	OutputRows int
	MergedRows int

	ExtractionRate  float64 // InputRows / totalRows, 0 when totalRows is unknown
	TotalWeightKg   float64
	UniqueAddresses int
	UniqueReceivers int
	UniqueMaterials int
}

// Aggregate merges items sharing (date, address, material, receiver). Weights are summed
// exactly; every other field keeps its first occurrence. Output is in first-seen order.
func Aggregate(items []entity.LineItem, totalRows int) Result {
	index := make(map[entity.AggregationKey]int, len(items))
	weights := make([]decimal.Decimal, 0, len(items))
	out := make([]entity.LineItem, 0, len(items))

	for _, it := range items {
		k := it.Key()
		if i, ok := index[k]; ok {
			weights[i] = weights[i].Add(decimal.NewFromFloat(it.WeightKg.Value))
			if len(it.VerificationIssues) > 0 {
				out[i].VerificationIssues = append(out[i].VerificationIssues, it.VerificationIssues...)
			}
			continue
		}
		index[k] = len(out)
		weights = append(weights, decimal.NewFromFloat(it.WeightKg.Value))
		out = append(out, entity.CloneItems([]entity.LineItem{it})[0])
	}

	total := decimal.Zero
	addresses := map[string]struct{}{}
	receivers := map[string]struct{}{}
	materials := map[string]struct{}{}
	for i := range out {
		w, _ := weights[i].Float64()
		out[i].WeightKg.Value = w
		total = total.Add(weights[i])
		addresses[out[i].Address.Value] = struct{}{}
		receivers[out[i].Receiver.Value] = struct{}{}
		materials[out[i].Material.Value] = struct{}{}
	}

	res := Result{
		Items:           out,
		InputRows:       len(items),
		OutputRows:      len(out),
		MergedRows:      len(items) - len(out),
		UniqueAddresses: len(addresses),
		UniqueReceivers: len(receivers),
		UniqueMaterials: len(materials),
	}
	res.TotalWeightKg, _ = total.Float64()
	if totalRows > 0 {
		res.ExtractionRate = float64(len(items)) / float64(totalRows)
	}
	return res
}
