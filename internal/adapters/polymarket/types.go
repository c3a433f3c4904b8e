package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene el snapshot de un mercado binario.
// Gamma devuelve algunos campos numéricos como strings JSON, usamos json.Number.
type gammaMarket struct {
	ID            string      `json:"id"`
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	Category      string      `json:"category"`
	OutcomePrices string      `json:"outcomePrices"` // JSON array codificado: ["0.62","0.38"]
	ClobTokenIDs  string      `json:"clobTokenIds"`  // JSON array codificado
	Volume24h     json.Number `json:"volume24hr"`
	Liquidity     json.Number `json:"liquidity"`
	StartDateISO  string      `json:"startDateIso"`
	EndDateISO    string      `json:"endDateIso"`
	NegRisk       bool        `json:"negRisk"` // exactamente un outcome del evento resuelve YES
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
	Events        []gammaRef  `json:"events"`
}

// gammaRef referencia al evento padre del mercado.
type gammaRef struct {
	ID string `json:"id"`
}

// --- CLOB API ---

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de un item en POST /books.
type orderBookResponse struct {
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
