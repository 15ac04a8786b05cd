package offerkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmasatrya/flightoffers/internal/models"
)

func sampleOffer(price float64) models.Offer {
	dep := time.Date(2025, 6, 10, 8, 30, 0, 0, time.UTC)
	return models.Offer{
		CarrierCode: "BG",
		BasePrice:   price,
		Segments: []models.Segment{
			{CarrierCode: "BG", Origin: "DAC", Destination: "CGP", DepartureTime: dep, ArrivalTime: dep.Add(time.Hour)},
			{CarrierCode: "BG", Origin: "CGP", Destination: "DXB", DepartureTime: dep.Add(3 * time.Hour), ArrivalTime: dep.Add(9 * time.Hour)},
		},
	}
}

func TestGenerate_Composite(t *testing.T) {
	key := Generate(sampleOffer(450))
	assert.Equal(t, "BG|DAC|2025-06-10T08:30:00Z|DXB|2025-06-10T17:30:00Z|450.00", key)
}

func TestGenerate_Deterministic(t *testing.T) {
	assert.Equal(t, Generate(sampleOffer(450)), Generate(sampleOffer(450)))
}

func TestGenerate_PriceChangesCompositeKeyOnly(t *testing.T) {
	assert.NotEqual(t, Generate(sampleOffer(450)), Generate(sampleOffer(451)))

	a := sampleOffer(450)
	b := sampleOffer(451)
	a.ProviderID = "17"
	b.ProviderID = "17"
	assert.Equal(t, Generate(a), Generate(b))
	assert.Equal(t, "id:17", Generate(a))
}

func TestGenerate_PrefersRawTimestamps(t *testing.T) {
	o := sampleOffer(100)
	o.Segments[0].DepartureRaw = "2025-06-10T14:30:00"
	o.Segments[1].ArrivalRaw = "2025-06-10T23:30:00"

	assert.Equal(t, "BG|DAC|2025-06-10T14:30:00|DXB|2025-06-10T23:30:00|100.00", Generate(o))
}

func TestGenerate_OmitsEmptyFields(t *testing.T) {
	assert.Equal(t, "EK", Generate(models.Offer{CarrierCode: "EK"}))
	assert.Equal(t, "", Generate(models.Offer{}))
}

func TestTagDedupFind(t *testing.T) {
	offers := Tag([]models.Offer{sampleOffer(450), sampleOffer(450), sampleOffer(500)})
	require.Len(t, offers, 3)
	assert.Equal(t, offers[0].Key, offers[1].Key)

	unique := Dedup(offers)
	assert.Len(t, unique, 2)

	found, ok := Find(unique, offers[2].Key)
	require.True(t, ok)
	assert.Equal(t, 500.0, found.BasePrice)

	_, ok = Find(unique, "missing")
	assert.False(t, ok)
}
