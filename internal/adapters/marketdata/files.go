// Package marketdata contiene los providers de datos históricos: cadenas
// de opciones y señales de volatilidad. El provider de ficheros es el
// camino por defecto de los backtests; el HTTP tira de un archivo remoto.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
)

// chainDTO es el formato JSON en disco de un snapshot de cadena.
type chainDTO struct {
	Symbol    string        `json:"symbol"`
	AsOf      string        `json:"as_of"`
	Spot      float64       `json:"spot"`
	Contracts []contractDTO `json:"contracts"`
}

type contractDTO struct {
	Symbol       string  `json:"symbol"`
	Strike       float64 `json:"strike"`
	Expiry       string  `json:"expiry"`
	Right        string  `json:"right"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	LastValidMid float64 `json:"last_valid_mid,omitempty"`
	LastSpot     float64 `json:"last_valid_spot,omitempty"`
	LastAsOf     string  `json:"last_valid_as_of,omitempty"`
	Volume       int     `json:"volume,omitempty"`
	OpenInterest int     `json:"open_interest,omitempty"`
}

type signalDTO struct {
	Symbol    string  `json:"symbol"`
	AsOf      string  `json:"as_of"`
	Direction string  `json:"direction"`
	Strength  float64 `json:"strength"`
	Regime    string  `json:"regime"`
}

const dateLayout = "2006-01-02"

// FileStore lee snapshots y señales de un directorio local:
//
//	<root>/chains/<SYMBOL>/<YYYY-MM-DD>.json
//	<root>/signals.json
//
// Implementa ports.ChainProvider y ports.SignalSource.
type FileStore struct {
	root string
}

// NewFileStore crea un store sobre el directorio raíz dado.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Snapshot carga la cadena del símbolo en la fecha dada. Si el fichero
// no existe devuelve domain.ErrNoData envuelto: un hueco en el dataset
// no es un fallo transitorio.
func (f *FileStore) Snapshot(_ context.Context, symbol string, asOf time.Time) (domain.ChainSnapshot, error) {
	path := filepath.Join(f.root, "chains", symbol, asOf.Format(dateLayout)+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ChainSnapshot{}, fmt.Errorf("marketdata.Snapshot: %s %s: %w",
				symbol, asOf.Format(dateLayout), domain.ErrNoData)
		}
		return domain.ChainSnapshot{}, fmt.Errorf("marketdata.Snapshot: read %q: %w", path, err)
	}

	var dto chainDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return domain.ChainSnapshot{}, fmt.Errorf("marketdata.Snapshot: parse %q: %w", path, err)
	}
	snap, err := dto.toDomain()
	if err != nil {
		return domain.ChainSnapshot{}, fmt.Errorf("marketdata.Snapshot: %q: %w", path, err)
	}
	return snap, nil
}

// Signals carga todas las señales del rango, ordenadas por fecha y
// símbolo para que el replay sea determinista.
func (f *FileStore) Signals(_ context.Context, from, to time.Time) ([]domain.Signal, error) {
	path := filepath.Join(f.root, "signals.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata.Signals: read %q: %w", path, err)
	}

	var dtos []signalDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("marketdata.Signals: parse %q: %w", path, err)
	}

	var out []domain.Signal
	for _, d := range dtos {
		asOf, err := time.Parse(dateLayout, d.AsOf)
		if err != nil {
			return nil, fmt.Errorf("marketdata.Signals: fecha %q: %w", d.AsOf, err)
		}
		if asOf.Before(from) || asOf.After(to) {
			continue
		}
		out = append(out, domain.Signal{
			Symbol:    d.Symbol,
			AsOf:      asOf,
			Direction: domain.Direction(d.Direction),
			Strength:  d.Strength,
			Regime:    d.Regime,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AsOf.Equal(out[j].AsOf) {
			return out[i].AsOf.Before(out[j].AsOf)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (d chainDTO) toDomain() (domain.ChainSnapshot, error) {
	asOf, err := time.Parse(dateLayout, d.AsOf)
	if err != nil {
		return domain.ChainSnapshot{}, fmt.Errorf("fecha as_of %q: %w", d.AsOf, err)
	}
	snap := domain.ChainSnapshot{
		Symbol:    d.Symbol,
		AsOf:      asOf,
		Spot:      domain.Points(d.Spot),
		Contracts: make([]domain.OptionContract, 0, len(d.Contracts)),
	}
	for _, c := range d.Contracts {
		expiry, err := time.Parse(dateLayout, c.Expiry)
		if err != nil {
			return domain.ChainSnapshot{}, fmt.Errorf("expiry %q: %w", c.Expiry, err)
		}
		oc := domain.OptionContract{
			Symbol:       c.Symbol,
			Strike:       domain.Points(c.Strike),
			Expiry:       expiry,
			Right:        domain.OptionRight(c.Right),
			Quote:        domain.Quote{Bid: domain.Points(c.Bid), Ask: domain.Points(c.Ask)},
			LastValidMid: domain.Points(c.LastValidMid),
			Volume:       c.Volume,
			OpenInterest: c.OpenInterest,
		}
		if c.LastAsOf != "" {
			lastAsOf, err := time.Parse(dateLayout, c.LastAsOf)
			if err != nil {
				return domain.ChainSnapshot{}, fmt.Errorf("last_valid_as_of %q: %w", c.LastAsOf, err)
			}
			oc.LastValidAsOf = lastAsOf
			oc.LastValidSpot = domain.Points(c.LastSpot)
		}
		snap.Contracts = append(snap.Contracts, oc)
	}
	return snap, nil
}
