package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/volbot/internal/domain"
)

const (
	// Archivos de snapshots suelen limitar a ~10 req/s; nos quedamos
	// por debajo para no pelear con otros consumidores.
	archiveRatePerSec = 8

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// HTTPProvider implementa ports.ChainProvider y ports.SignalSource
// contra un archivo HTTP de snapshots históricos, con rate limiting y
// retries con backoff.
type HTTPProvider struct {
	http    *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
}

// NewHTTPProvider crea un provider contra el base URL dado. La API key
// puede ser vacía si el archivo es público.
func NewHTTPProvider(base, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    base,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(archiveRatePerSec, 4),
	}
}

// Snapshot descarga la cadena del símbolo en la fecha dada. Un 404 del
// archivo se traduce a domain.ErrNoData: es un hueco del dataset, no un
// fallo del transporte.
func (p *HTTPProvider) Snapshot(ctx context.Context, symbol string, asOf time.Time) (domain.ChainSnapshot, error) {
	u := fmt.Sprintf("%s/v1/chains/%s/%s", p.base,
		url.PathEscape(symbol), asOf.Format(dateLayout))

	var dto chainDTO
	if err := p.get(ctx, u, &dto); err != nil {
		return domain.ChainSnapshot{}, fmt.Errorf("marketdata.Snapshot: %w", err)
	}
	snap, err := dto.toDomain()
	if err != nil {
		return domain.ChainSnapshot{}, fmt.Errorf("marketdata.Snapshot: %s: %w", u, err)
	}
	return snap, nil
}

// Signals descarga las señales del rango.
func (p *HTTPProvider) Signals(ctx context.Context, from, to time.Time) ([]domain.Signal, error) {
	u := fmt.Sprintf("%s/v1/signals?from=%s&to=%s", p.base,
		from.Format(dateLayout), to.Format(dateLayout))

	var dtos []signalDTO
	if err := p.get(ctx, u, &dtos); err != nil {
		return nil, fmt.Errorf("marketdata.Signals: %w", err)
	}

	out := make([]domain.Signal, 0, len(dtos))
	for _, d := range dtos {
		asOf, err := time.Parse(dateLayout, d.AsOf)
		if err != nil {
			return nil, fmt.Errorf("marketdata.Signals: fecha %q: %w", d.AsOf, err)
		}
		out = append(out, domain.Signal{
			Symbol:    d.Symbol,
			AsOf:      asOf,
			Direction: domain.Direction(d.Direction),
			Strength:  d.Strength,
			Regime:    d.Regime,
		})
	}
	return out, nil
}

// get hace un GET con rate limiting y retries con backoff exponencial.
func (p *HTTPProvider) get(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if p.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}

		resp, err := p.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return domain.ErrNoData
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("marketdata: rate limited by archive", "attempt", attempt+1)
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (p *HTTPProvider) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
