package reporting

import (
	"errors"
	"sort"

	"opsdesk/internal/core"
	"opsdesk/internal/ledger"
	"opsdesk/internal/units"
)

type WasteTotal struct {
	MaterialID string  `json:"materialId"`
	Name       string  `json:"name"`
	Waste      float64 `json:"waste"`
}

type WasteRate struct {
	MaterialID string  `json:"materialId"`
	Name       string  `json:"name"`
	Waste      float64 `json:"waste"`
	Used       float64 `json:"used"`
	Rate       float64 `json:"rate"`
}

// TheoreticalLine is the recipe-implied consumption of one material.
type TheoreticalLine struct {
	MaterialID string         `json:"materialId"`
	Name       string         `json:"name"`
	Quantity   float64        `json:"quantity"`
	Unit       units.BaseUnit `json:"unit"`
}

// Theoretical is the recipe-implied consumption of all sold items. Recipe
// lines that cannot be converted are listed, never summed.
type Theoretical struct {
	Lines      []TheoreticalLine `json:"lines"`
	Unresolved []string          `json:"unresolved,omitempty"`
}

func materialNames(materials []core.MaterialItem) map[string]string {
	names := make(map[string]string, len(materials))
	for _, m := range materials {
		names[m.ID] = m.Name
	}
	return names
}

// WasteTotals sums waste per material, largest first.
func WasteTotals(records []core.UsageRecord, materials []core.MaterialItem) []WasteTotal {
	names := materialNames(materials)
	sums := make(map[string]float64)
	for _, r := range records {
		sums[r.MaterialID] += r.Waste
	}
	out := make([]WasteTotal, 0, len(sums))
	for id, w := range sums {
		out = append(out, WasteTotal{MaterialID: id, Name: core.NameOf(names, id), Waste: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Waste != out[j].Waste {
			return out[i].Waste > out[j].Waste
		}
		return out[i].MaterialID < out[j].MaterialID
	})
	return out
}

// WasteRates is total waste over total used quantity per material, in
// percent. Materials with no usage are left out.
func WasteRates(records []core.UsageRecord, materials []core.MaterialItem) []WasteRate {
	names := materialNames(materials)
	history := ledger.FromUsages(records)
	flows := ledger.Recompute(history)
	waste := make(map[string]float64)
	used := make(map[string]float64)
	for _, r := range records {
		waste[r.MaterialID] += r.Waste
		used[r.MaterialID] += flows[r.ID]
	}
	out := make([]WasteRate, 0, len(used))
	for id, u := range used {
		if u == 0 {
			continue
		}
		out = append(out, WasteRate{
			MaterialID: id,
			Name:       core.NameOf(names, id),
			Waste:      waste[id],
			Used:       u,
			Rate:       waste[id] / u * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].MaterialID < out[j].MaterialID
	})
	return out
}

// TheoreticalUsage multiplies each item's sold quantity by its recipe,
// converting every line to base units.
func TheoreticalUsage(sales []ItemTotal, bom core.BOM, packs []units.Pack, materials []core.MaterialItem) Theoretical {
	names := materialNames(materials)
	type key struct {
		id   string
		unit units.BaseUnit
	}
	sums := make(map[key]float64)
	var res Theoretical
	for _, s := range sales {
		for _, line := range bom[s.ItemID] {
			q, err := units.ToBase(s.Quantity*line.Qty, line.Unit, packs)
			if err != nil {
				reason := "unknown unit"
				if errors.Is(err, units.ErrUnknownPack) {
					reason = "unknown pack"
				}
				res.Unresolved = append(res.Unresolved, s.Name+" / "+core.NameOf(names, line.MaterialID)+": "+reason+" "+string(line.Unit))
				continue
			}
			sums[key{line.MaterialID, q.Unit}] += q.Qty
		}
	}
	for k, q := range sums {
		res.Lines = append(res.Lines, TheoreticalLine{MaterialID: k.id, Name: core.NameOf(names, k.id), Quantity: q, Unit: k.unit})
	}
	sort.Slice(res.Lines, func(i, j int) bool {
		if res.Lines[i].Name != res.Lines[j].Name {
			return res.Lines[i].Name < res.Lines[j].Name
		}
		return res.Lines[i].MaterialID < res.Lines[j].MaterialID
	})
	return res
}
