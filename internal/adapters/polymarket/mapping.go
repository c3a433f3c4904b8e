package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

// mapGammaMarket convierte un gammaMarket DTO a domain.MarketSnapshot.
// Devuelve además el token id YES y false si el mercado no es utilizable
// (no binario, cerrado, sin precios).
func mapGammaMarket(gm gammaMarket) (domain.MarketSnapshot, string, bool) {
	if !gm.Active || gm.Closed {
		return domain.MarketSnapshot{}, "", false
	}

	prices := parseJSONFloats(gm.OutcomePrices)
	if len(prices) != 2 {
		return domain.MarketSnapshot{}, "", false
	}

	snap := domain.MarketSnapshot{
		ID:        gm.ConditionID,
		Question:  gm.Question,
		Slug:      gm.Slug,
		YesPrice:  prices[0],
		NoPrice:   prices[1],
		Category:  domain.ParseCategory(gm.Category),
		Exclusive: gm.NegRisk,
		StartDate: parseGammaDate(gm.StartDateISO),
		EndDate:   parseGammaDate(gm.EndDateISO),
	}
	if snap.ID == "" {
		snap.ID = gm.ID
	}
	if len(gm.Events) > 0 {
		snap.EventID = gm.Events[0].ID
	}
	if v, err := gm.Volume24h.Float64(); err == nil {
		snap.Volume24h = v
	}
	if v, err := gm.Liquidity.Float64(); err == nil {
		snap.Liquidity = v
	}

	var yesToken string
	if tokens := parseJSONStrings(gm.ClobTokenIDs); len(tokens) > 0 {
		yesToken = tokens[0]
	}

	return snap, yesToken, true
}

// parseGammaDate intenta los formatos de fecha que usa Polymarket.
func parseGammaDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseJSONFloats decodifica un array JSON de strings numéricos
// (`["0.62","0.38"]`) a floats.
func parseJSONFloats(s string) []float64 {
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, r := range raw {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// parseJSONStrings decodifica un array JSON de strings.
func parseJSONStrings(s string) []string {
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	return raw
}

// mapOrderBooks convierte la respuesta batch de /books a un map
// marketID → OrderBook usando el índice token → market.
func mapOrderBooks(raw []orderBookResponse, tokenToMarket map[string]string) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		mid, ok := tokenToMarket[r.AssetID]
		if !ok {
			continue
		}
		result[mid] = domain.OrderBook{
			MarketID: mid,
			Bids:     mapBookEntries(r.Bids, false),
			Asks:     mapBookEntries(r.Asks, true),
		}
	}
	return result
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price := domain.ParsePrice(r.Price)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}
