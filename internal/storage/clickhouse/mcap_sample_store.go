package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"fee-token-lab/internal/domain"
	"fee-token-lab/internal/storage"
)

// McapSampleStore implements storage.McapSampleStore using ClickHouse.
type McapSampleStore struct {
	conn *Conn
}

// NewMcapSampleStore creates a new McapSampleStore.
func NewMcapSampleStore(conn *Conn) *McapSampleStore {
	return &McapSampleStore{conn: conn}
}

var _ storage.McapSampleStore = (*McapSampleStore)(nil)

const mcapSampleColumns = `
	run_id, step, phase, sampled_at,
	onchain_mcap, reference_mcap, within_tolerance,
	token_balance, native_balance, feed_price, feed_decimals,
	reserve0, reserve1, pair_decimals, total_supply, pair_amount
`

// InsertBulk adds multiple samples. Fails entire batch on duplicate (run_id, step, phase).
// MergeTree does not enforce keys, so duplicates are checked before the batch is sent.
func (s *McapSampleStore) InsertBulk(ctx context.Context, samples []*domain.MarketCapSample) error {
	if len(samples) == 0 {
		return nil
	}

	type key struct {
		runID string
		step  domain.Step
		phase string
	}
	seen := make(map[key]struct{}, len(samples))
	for _, m := range samples {
		if m == nil || m.RunID == "" || m.Step == "" {
			return storage.ErrInvalidInput
		}
		k := key{m.RunID, m.Step, m.Phase}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for k := range seen {
		exists, err := s.exists(ctx, k.runID, k.step, k.phase)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO mcap_samples (`+mcapSampleColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range samples {
		var within uint8
		if m.WithinTolerance {
			within = 1
		}
		err = batch.Append(
			m.RunID, string(m.Step), m.Phase, uint64(m.SampledAt),
			bigString(m.OnChainMcap), bigString(m.ReferenceMcap), within,
			bigString(m.TokenBalance), bigString(m.NativeBalance), bigString(m.FeedPrice), m.FeedDecimals,
			bigString(m.Reserve0), bigString(m.Reserve1), m.PairDecimals, bigString(m.TotalSupply), bigString(m.PairAmount),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all samples of a run, ordered by sampled_at ASC.
func (s *McapSampleStore) GetByRunID(ctx context.Context, runID string) ([]*domain.MarketCapSample, error) {
	query := `SELECT ` + mcapSampleColumns + `
		FROM mcap_samples
		WHERE run_id = ?
		ORDER BY sampled_at ASC`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	samples, err := scanMcapSamples(rows)
	if err != nil {
		return nil, err
	}
	storage.SortSamples(samples)
	return samples, nil
}

func (s *McapSampleStore) exists(ctx context.Context, runID string, step domain.Step, phase string) (bool, error) {
	query := `
		SELECT count(*) FROM mcap_samples
		WHERE run_id = ? AND step = ? AND phase = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, string(step), phase).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanMcapSamples(rows chRows) ([]*domain.MarketCapSample, error) {
	var samples []*domain.MarketCapSample

	for rows.Next() {
		var (
			m                                            domain.MarketCapSample
			step                                         string
			sampledAt                                    uint64
			within                                       uint8
			onChain, ref, tokenBal, nativeBal, feedPrice string
			reserve0, reserve1, totalSupply, pairAmount  string
		)

		err := rows.Scan(
			&m.RunID, &step, &m.Phase, &sampledAt,
			&onChain, &ref, &within,
			&tokenBal, &nativeBal, &feedPrice, &m.FeedDecimals,
			&reserve0, &reserve1, &m.PairDecimals, &totalSupply, &pairAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan mcap sample row: %w", err)
		}

		m.Step = domain.Step(step)
		m.SampledAt = int64(sampledAt)
		m.WithinTolerance = within == 1

		targets := []struct {
			dst **big.Int
			src string
		}{
			{&m.OnChainMcap, onChain}, {&m.ReferenceMcap, ref},
			{&m.TokenBalance, tokenBal}, {&m.NativeBalance, nativeBal}, {&m.FeedPrice, feedPrice},
			{&m.Reserve0, reserve0}, {&m.Reserve1, reserve1},
			{&m.TotalSupply, totalSupply}, {&m.PairAmount, pairAmount},
		}
		for _, t := range targets {
			if *t.dst, err = parseBigString(t.src); err != nil {
				return nil, fmt.Errorf("decode mcap sample: %w", err)
			}
		}

		samples = append(samples, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mcap sample rows: %w", err)
	}

	return samples, nil
}
