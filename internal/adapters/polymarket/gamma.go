package polymarket

// gamma.go — Gamma /markets adapter, implementa ports.MarketDataProvider.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/edgebot/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 100
	// gammaMaxPages acota el universo: 100 páginas ≈ 10k mercados.
	gammaMaxPages = 100
)

// FetchSnapshots devuelve los mercados binarios activos con sus snapshots.
// Pagina con offset hasta agotar resultados y aprende el mapping
// marketID → YES token para los fetches de books posteriores.
func (c *Client) FetchSnapshots(ctx context.Context) ([]domain.MarketSnapshot, error) {
	var all []domain.MarketSnapshot
	tokens := make(map[string]string)

	for page := 0; page < gammaMaxPages; page++ {
		url := fmt.Sprintf("%s%s?active=true&closed=false&limit=%d&offset=%d",
			c.gammaBase, gammaMarketsPath, gammaPageSize, page*gammaPageSize)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
			return nil, fmt.Errorf("gamma.FetchSnapshots: %w", err)
		}

		for _, gm := range resp {
			snap, yesToken, ok := mapGammaMarket(gm)
			if !ok {
				continue
			}
			all = append(all, snap)
			if yesToken != "" {
				tokens[snap.ID] = yesToken
			}
		}

		slog.Debug("fetched markets page", "page", page, "count", len(resp), "total", len(all))
		if len(resp) < gammaPageSize {
			break
		}
	}

	c.mu.Lock()
	c.yesToken = tokens
	c.mu.Unlock()

	slog.Info("market snapshots fetched", "total", len(all))
	return all, nil
}

// yesTokenFor devuelve el token id YES de un mercado, si se conoce.
func (c *Client) yesTokenFor(marketID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.yesToken[marketID]
	return id, ok
}
