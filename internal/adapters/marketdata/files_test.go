package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/volbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainJSON = `{
  "symbol": "XYZ",
  "as_of": "2025-06-02",
  "spot": 100.5,
  "contracts": [
    {"symbol": "XYZ", "strike": 95, "expiry": "2025-07-02", "right": "P",
     "bid": 1.40, "ask": 1.60, "volume": 120, "open_interest": 900},
    {"symbol": "XYZ", "strike": 90, "expiry": "2025-07-02", "right": "P",
     "bid": 0, "ask": 0, "last_valid_mid": 0.45, "last_valid_spot": 101.2,
     "last_valid_as_of": "2025-05-30"}
  ]
}`

const signalsJSON = `[
  {"symbol": "XYZ", "as_of": "2025-06-03", "direction": "short_vol", "strength": 1.2, "regime": "trending"},
  {"symbol": "AAA", "as_of": "2025-06-02", "direction": "long_vol", "strength": 0.8, "regime": "trending"},
  {"symbol": "XYZ", "as_of": "2025-06-10", "direction": "short_vol", "strength": 1.0, "regime": "range_bound"}
]`

func writeFixtures(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "chains", "XYZ")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-06-02.json"), []byte(chainJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "signals.json"), []byte(signalsJSON), 0o644))
	return root
}

func TestFileStore_Snapshot(t *testing.T) {
	fs := NewFileStore(writeFixtures(t))
	asOf := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	snap, err := fs.Snapshot(context.Background(), "XYZ", asOf)
	require.NoError(t, err)

	assert.Equal(t, "XYZ", snap.Symbol)
	assert.Equal(t, domain.Points(100.5), snap.Spot)
	require.Len(t, snap.Contracts, 2)

	c := snap.Contracts[0]
	assert.Equal(t, domain.Points(95), c.Strike)
	assert.Equal(t, domain.Put, c.Right)
	assert.True(t, c.Quote.Valid())
	assert.Equal(t, 120, c.Volume)

	// Contrato con quote muerta pero último mid observado.
	c = snap.Contracts[1]
	assert.False(t, c.Quote.Valid())
	assert.Equal(t, domain.Points(0.45), c.LastValidMid)
	assert.Equal(t, domain.Points(101.2), c.LastValidSpot)
	assert.Equal(t, time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), c.LastValidAsOf)
}

func TestFileStore_SnapshotMissingIsNoData(t *testing.T) {
	fs := NewFileStore(writeFixtures(t))

	_, err := fs.Snapshot(context.Background(), "XYZ", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrNoData)

	_, err = fs.Snapshot(context.Background(), "NOPE", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestFileStore_SignalsFilteredAndSorted(t *testing.T) {
	fs := NewFileStore(writeFixtures(t))
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

	sigs, err := fs.Signals(context.Background(), from, to)
	require.NoError(t, err)

	// La señal del 10 de junio queda fuera del rango; el resto sale
	// ordenado por fecha y símbolo.
	require.Len(t, sigs, 2)
	assert.Equal(t, "AAA", sigs[0].Symbol)
	assert.Equal(t, domain.LongVol, sigs[0].Direction)
	assert.Equal(t, "XYZ", sigs[1].Symbol)
	assert.Equal(t, 1.2, sigs[1].Strength)
}

func TestFileStore_BadJSONFails(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "chains", "XYZ")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2025-06-02.json"), []byte("{nope"), 0o644))

	fs := NewFileStore(root)
	_, err := fs.Snapshot(context.Background(), "XYZ", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoData)
}
