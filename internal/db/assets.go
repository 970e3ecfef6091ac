package db

import (
	"time"

	"github.com/b0ase/path402/apps/zanomcp/internal/amount"
)

// SaveAsset upserts the metadata of one asset on network.
func (s *Store) SaveAsset(network string, a amount.Asset) error {
	_, err := s.db.Exec(`
		INSERT INTO assets (network, asset_id, ticker, decimals, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(network, asset_id) DO UPDATE SET
			ticker = excluded.ticker, decimals = excluded.decimals, updated_at = excluded.updated_at`,
		network, a.ID, a.Ticker, a.Decimals, time.Now().Unix())
	return err
}

// LoadAssets returns every cached asset on network, most recently updated first.
func (s *Store) LoadAssets(network string) ([]amount.Asset, error) {
	rows, err := s.db.Query(`SELECT asset_id, ticker, decimals FROM assets
		WHERE network = ? ORDER BY updated_at DESC, asset_id`, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []amount.Asset
	for rows.Next() {
		var a amount.Asset
		if err := rows.Scan(&a.ID, &a.Ticker, &a.Decimals); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAssets returns how many assets are cached for network.
func (s *Store) CountAssets(network string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM assets WHERE network = ?`, network).Scan(&n)
	return n, err
}
