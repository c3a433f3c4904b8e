package estimator

// http.go — HTTP adapter for the external probability-estimation service.
// The service is a black box: it gets the market plus supporting context and
// answers with a probability, a confidence and a narrative. How it reasons
// is not this repo's problem.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alejandrodnm/edgebot/internal/domain"
	"github.com/alejandrodnm/edgebot/internal/ports"
)

// HTTPEstimator implementa ports.ProbabilityEstimator contra un endpoint JSON.
type HTTPEstimator struct {
	http    *http.Client
	baseURL string
}

// NewHTTP crea el adapter. El timeout por llamada lo impone el caller vía
// context; el del http.Client es solo la red de seguridad.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPEstimator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEstimator{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// estimateRequest es el payload enviado al servicio.
type estimateRequest struct {
	MarketID  string    `json:"market_id"`
	Question  string    `json:"question"`
	Category  string    `json:"category"`
	YesPrice  float64   `json:"yes_price"`
	Liquidity float64   `json:"liquidity"`
	EndDate   string    `json:"end_date"`
	BestBid   float64   `json:"best_bid,omitempty"`
	BestAsk   float64   `json:"best_ask,omitempty"`
	History   []pricePt `json:"history,omitempty"`
}

type pricePt struct {
	At    string  `json:"at"`
	Price float64 `json:"price"`
}

// estimateResponse es la respuesta del servicio.
type estimateResponse struct {
	Probability float64  `json:"probability"`
	Confidence  float64  `json:"confidence"`
	Narrative   string   `json:"narrative"`
	Citations   []string `json:"citations"`
}

// Estimate consulta el servicio para un mercado.
func (e *HTTPEstimator) Estimate(ctx context.Context, req ports.EstimateRequest) (domain.Estimate, error) {
	payload := estimateRequest{
		MarketID:  req.Snapshot.ID,
		Question:  req.Snapshot.Question,
		Category:  string(req.Snapshot.Category),
		YesPrice:  req.Snapshot.YesPrice,
		Liquidity: req.Snapshot.Liquidity,
		EndDate:   req.Snapshot.EndDate.UTC().Format(time.RFC3339),
	}
	if req.Book != nil {
		payload.BestBid = req.Book.BestBid()
		payload.BestAsk = req.Book.BestAsk()
	}
	for _, p := range req.Snapshot.History {
		payload.History = append(payload.History, pricePt{
			At:    p.At.UTC().Format(time.RFC3339),
			Price: p.YesPrice,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("estimator.Estimate: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/estimate", bytes.NewReader(body))
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("estimator.Estimate: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return domain.Estimate{}, fmt.Errorf("estimator.Estimate: %w: %v", domain.ErrEstimator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Estimate{}, fmt.Errorf("estimator.Estimate: %w: status %d", domain.ErrEstimator, resp.StatusCode)
	}

	var out estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Estimate{}, fmt.Errorf("estimator.Estimate: decode: %w", err)
	}

	est := domain.Estimate{
		Probability: out.Probability,
		Confidence:  out.Confidence,
		Narrative:   out.Narrative,
		Citations:   out.Citations,
	}
	if !est.Valid() {
		return domain.Estimate{}, fmt.Errorf("estimator.Estimate: %w: out-of-range result (p=%.4f conf=%.1f)",
			domain.ErrEstimator, out.Probability, out.Confidence)
	}
	return est, nil
}
