package market

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amass-me/locale-engine/pkg/model"
)

var (
	uae = model.Market{Code: "AE", DisplayName: "UAE"}
	ksa = model.Market{Code: "SA", DisplayName: "Saudi Arabia"}
	chn = model.Market{Code: "CN", DisplayName: "China"}
)

func entry(name string, m model.Market) model.CatalogEntry[string] {
	return model.CatalogEntry[string]{Payload: name, Market: m}
}

func payloads(entries []model.CatalogEntry[string]) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Payload
	}
	return out
}

func officeCatalog() []model.CatalogEntry[string] {
	return []model.CatalogEntry[string]{
		entry("UAE-HeadOffice", uae),
		entry("UAE-CFS", uae),
		entry("KSA-Dammam", ksa),
		entry("KSA-Jeddah", ksa),
		entry("KSA-Riyadh", ksa),
	}
}

func TestPrioritize_KSAWithCap(t *testing.T) {
	got := Prioritize(officeCatalog(), ksa, 4)
	assert.Equal(t, []string{"KSA-Dammam", "KSA-Jeddah", "KSA-Riyadh", "UAE-HeadOffice"}, payloads(got))
}

func TestPrioritize_NoCap(t *testing.T) {
	got := Prioritize(officeCatalog(), ksa, 0)
	assert.Equal(t, []string{"KSA-Dammam", "KSA-Jeddah", "KSA-Riyadh", "UAE-HeadOffice", "UAE-CFS"}, payloads(got))
}

func TestPrioritize_PrimaryExceedsCapDropsSecondary(t *testing.T) {
	got := Prioritize(officeCatalog(), ksa, 2)
	assert.Equal(t, []string{"KSA-Dammam", "KSA-Jeddah"}, payloads(got))
}

func TestPrioritize_NoMatchKeepsOrder(t *testing.T) {
	got := Prioritize(officeCatalog(), chn, 3)
	assert.Equal(t, []string{"UAE-HeadOffice", "UAE-CFS", "KSA-Dammam"}, payloads(got))
}

func TestPrioritize_DoesNotMutateInput(t *testing.T) {
	in := officeCatalog()
	_ = Prioritize(in, ksa, 1)
	assert.Equal(t, officeCatalog(), in)
}

func TestPrioritize_Empty(t *testing.T) {
	assert.Empty(t, Prioritize([]model.CatalogEntry[string]{}, ksa, 3))
	assert.Empty(t, Prioritize[string](nil, ksa, 0))
}

func TestPrioritize_PartitionProperty(t *testing.T) {
	markets := []model.Market{uae, ksa, chn}
	var catalog []model.CatalogEntry[string]
	for i := 0; i < 30; i++ {
		m := markets[(i*7+i/3)%len(markets)]
		catalog = append(catalog, entry(m.Code+"-"+string(rune('a'+i)), m))
	}

	for _, m := range markets {
		for limit := 0; limit <= len(catalog)+1; limit++ {
			got := Prioritize(catalog, m, limit)

			matching := 0
			for _, e := range catalog {
				if e.Market.Equal(m) {
					matching++
				}
			}
			head := matching
			if limit > 0 && limit < head {
				head = limit
			}
			for i := 0; i < head; i++ {
				assert.True(t, got[i].Market.Equal(m))
			}
			assertPartitionOrder(t, catalog, got, m)
		}
	}
}

// assertPartitionOrder checks both partitions of got keep their catalog order.
func assertPartitionOrder(t *testing.T, catalog, got []model.CatalogEntry[string], m model.Market) {
	t.Helper()
	index := make(map[string]int, len(catalog))
	for i, e := range catalog {
		index[e.Payload] = i
	}
	last := map[bool]int{true: -1, false: -1}
	for _, e := range got {
		primary := e.Market.Equal(m)
		assert.Greater(t, index[e.Payload], last[primary])
		last[primary] = index[e.Payload]
	}
}
