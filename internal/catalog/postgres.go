package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexpricer/internal/model"
)

// Pool describes a swap venue and the ordered token list its events refer to.
type Pool struct {
	Address  string         `json:"address"`
	Protocol model.Protocol `json:"protocol"`
	Tokens   []string       `json:"tokens"`
}

// Store provides Postgres persistence for the token and pool catalog.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadTokens returns every token in the catalog.
func (s *Store) LoadTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, symbol, COALESCE(name, ''), decimals
		FROM tokens
		ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(&t.Address, &t.Symbol, &t.Name, &t.Decimals); err != nil {
			return nil, err
		}
		t.Address = strings.ToLower(t.Address)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// LoadPools returns every pool in the catalog.
func (s *Store) LoadPools(ctx context.Context) ([]Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, protocol, tokens
		FROM pools
		ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []Pool
	for rows.Next() {
		var p Pool
		var protocol string
		if err := rows.Scan(&p.Address, &protocol, &p.Tokens); err != nil {
			return nil, err
		}
		p.Address = strings.ToLower(p.Address)
		p.Protocol = model.Protocol(protocol)
		for i, token := range p.Tokens {
			p.Tokens[i] = strings.ToLower(token)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// UpsertTokens inserts or updates token metadata.
func (s *Store) UpsertTokens(ctx context.Context, tokens []model.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`
			INSERT INTO tokens (address, symbol, name, decimals, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (address)
			DO UPDATE SET
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				decimals = EXCLUDED.decimals,
				updated_at = now()
		`,
			strings.ToLower(t.Address),
			t.Symbol,
			t.Name,
			int16(t.Decimals),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tokens {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		tokens := make([]string, len(p.Tokens))
		for i, token := range p.Tokens {
			tokens[i] = strings.ToLower(token)
		}
		batch.Queue(`
			INSERT INTO pools (address, protocol, tokens, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			ON CONFLICT (address)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				tokens = EXCLUDED.tokens,
				updated_at = now()
		`,
			strings.ToLower(p.Address),
			string(p.Protocol),
			tokens,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
