package cluster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"plixa.org/internal/ids"
)

// PGStore implements Service on Postgres via the pgx stdlib driver.
type PGStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Service = (*PGStore)(nil)

// Open dials Postgres and returns a store with tuned pool defaults.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPGStore(db), nil
}

// NewPGStore wraps an existing pool, used by tests.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

const clusterColumns = `id, owner_id, name, description, currency, amount, min_acceptable_payment, status, expires_at, metadata, created_at`

// marshalMeta renders metadata for a jsonb column; empty maps become '{}'
// so the not-null default holds.
func marshalMeta(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func unmarshalMeta(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func scanCluster(row *sql.Row) (Cluster, error) {
	var c Cluster
	var expires sql.NullTime
	var meta []byte
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Amount.Currency, &c.Amount.Amount,
		&c.MinAcceptablePayment, &c.Status, &expires, &meta, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cluster{}, ErrNotFound
	}
	if err != nil {
		return Cluster{}, err
	}
	if expires.Valid {
		t := expires.Time
		c.ExpiresAt = &t
	}
	if c.Metadata, err = unmarshalMeta(meta); err != nil {
		return Cluster{}, err
	}
	return c, nil
}

func (s *PGStore) CreateCluster(ctx context.Context, in CreateClusterInput) (Cluster, error) {
	if err := in.validate(); err != nil {
		return Cluster{}, err
	}
	min := in.MinAcceptablePayment
	if min == "" {
		min = PaymentFull
	}
	c := Cluster{
		ID:                   uuid.NewString(),
		OwnerID:              in.OwnerID,
		Name:                 strings.TrimSpace(in.Name),
		Description:          in.Description,
		Amount:               in.Amount,
		MinAcceptablePayment: min,
		Status:               StatusOffline,
		ExpiresAt:            in.ExpiresAt,
		Metadata:             in.Metadata,
		CreatedAt:            s.now(),
	}
	var expires any
	if c.ExpiresAt != nil {
		expires = *c.ExpiresAt
	}
	meta, err := marshalMeta(c.Metadata)
	if err != nil {
		return Cluster{}, fmt.Errorf("cluster: metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into clusters(id, owner_id, name, description, currency, amount, min_acceptable_payment, status, expires_at, metadata, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, c.ID, c.OwnerID, c.Name, c.Description, c.Amount.Currency, c.Amount.Amount, c.MinAcceptablePayment, c.Status, expires, meta, c.CreatedAt)
	if err != nil {
		return Cluster{}, fmt.Errorf("cluster: insert: %w", err)
	}
	return c, nil
}

func (s *PGStore) GetCluster(ctx context.Context, id string) (Cluster, error) {
	row := s.db.QueryRowContext(ctx, `select `+clusterColumns+` from clusters where id=$1`, id)
	return scanCluster(row)
}

func (s *PGStore) ListClusters(ctx context.Context, ownerID string) ([]Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+clusterColumns+`
		from clusters
		where ($1 = '' or owner_id = $1)
		order by created_at desc
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Cluster
	for rows.Next() {
		var c Cluster
		var expires sql.NullTime
		var meta []byte
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Amount.Currency, &c.Amount.Amount,
			&c.MinAcceptablePayment, &c.Status, &expires, &meta, &c.CreatedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			c.ExpiresAt = &t
		}
		if c.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) Deploy(ctx context.Context, id, ownerID string) (Cluster, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Cluster{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `select `+clusterColumns+` from clusters where id=$1 for update`, id)
	c, err := scanCluster(row)
	if err != nil {
		return Cluster{}, err
	}
	if ownerID != "" && c.OwnerID != ownerID {
		return Cluster{}, ErrNotFound
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(s.now()) {
		return Cluster{}, ErrClusterExpired
	}
	if _, err := tx.ExecContext(ctx, `update clusters set status=$2 where id=$1`, id, StatusOnline); err != nil {
		return Cluster{}, err
	}
	if err := tx.Commit(); err != nil {
		return Cluster{}, err
	}
	c.Status = StatusOnline
	return c, nil
}

func (s *PGStore) Balance(ctx context.Context, id string) (Money, error) {
	var currency string
	var bal int64
	err := s.db.QueryRowContext(ctx, `
		select c.currency,
		       coalesce((select sum(t.amount) from transactions t where t.cluster_id=c.id and t.status='successful'), 0)
		     - coalesce((select sum(w.amount) from withdrawals w where w.cluster_id=c.id), 0)
		from clusters c
		where c.id=$1
	`, id).Scan(&currency, &bal)
	if errors.Is(err, sql.ErrNoRows) {
		return Money{}, ErrNotFound
	}
	if err != nil {
		return Money{}, err
	}
	return Money{Currency: currency, Amount: bal}, nil
}

func (s *PGStore) RecordPayment(ctx context.Context, in PaymentInput) (Transaction, error) {
	if !in.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	if in.Reference == "" {
		return Transaction{}, fmt.Errorf("%w: reference must be provided", ErrInvalidInput)
	}
	if !strings.Contains(in.Email, "@") {
		return Transaction{}, fmt.Errorf("%w: payer email must be provided", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Transaction{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Idempotency: a replayed reference returns the recorded transaction.
	var prior Transaction
	var priorMeta []byte
	err = tx.QueryRowContext(ctx, `
		select id, cluster_id, reference, email, currency, amount, status, sequence, metadata, created_at
		from transactions where cluster_id=$1 and reference=$2
	`, in.ClusterID, in.Reference).Scan(&prior.ID, &prior.ClusterID, &prior.Reference, &prior.Email,
		&prior.Amount.Currency, &prior.Amount.Amount, &prior.Status, &prior.Sequence, &priorMeta, &prior.CreatedAt)
	if err == nil {
		if prior.Metadata, err = unmarshalMeta(priorMeta); err != nil {
			return Transaction{}, err
		}
		return prior, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, err
	}

	row := tx.QueryRowContext(ctx, `select `+clusterColumns+` from clusters where id=$1 for update`, in.ClusterID)
	c, err := scanCluster(row)
	if err != nil {
		return Transaction{}, err
	}
	if c.Status != StatusOnline {
		return Transaction{}, ErrClusterOffline
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(s.now()) {
		return Transaction{}, ErrClusterExpired
	}
	if in.Amount.Currency != c.Amount.Currency {
		return Transaction{}, ErrInvalidCurrency
	}
	if in.Amount.Amount < c.MinAcceptablePayment.MinimumOf(c.Amount.Amount) {
		return Transaction{}, ErrBelowMinimumPayment
	}

	out := Transaction{
		ID:        ids.New(),
		ClusterID: in.ClusterID,
		Reference: in.Reference,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Amount:    in.Amount,
		Status:    TxSuccessful,
		Metadata:  in.Metadata,
		CreatedAt: s.now(),
	}
	meta, err := marshalMeta(out.Metadata)
	if err != nil {
		return Transaction{}, fmt.Errorf("cluster: metadata: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `
		insert into transactions(id, cluster_id, reference, email, currency, amount, status, metadata, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9) returning sequence
	`, out.ID, out.ClusterID, out.Reference, out.Email, out.Amount.Currency, out.Amount.Amount, out.Status, meta, out.CreatedAt).Scan(&out.Sequence); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (s *PGStore) ListTransactions(ctx context.Context, clusterID string, limit int, afterSeq uint64) ([]Transaction, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from clusters where id=$1`, clusterID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, cluster_id, reference, email, currency, amount, status, sequence, metadata, created_at
		from transactions
		where cluster_id=$1 and sequence > $2
		order by sequence asc
		limit $3
	`, clusterID, afterSeq, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []Transaction
	var last uint64
	for rows.Next() {
		var t Transaction
		var meta []byte
		if err := rows.Scan(&t.ID, &t.ClusterID, &t.Reference, &t.Email, &t.Amount.Currency, &t.Amount.Amount,
			&t.Status, &t.Sequence, &meta, &t.CreatedAt); err != nil {
			return nil, 0, err
		}
		if t.Metadata, err = unmarshalMeta(meta); err != nil {
			return nil, 0, err
		}
		res = append(res, t)
		last = t.Sequence
	}
	return res, last, rows.Err()
}

func (s *PGStore) Withdraw(ctx context.Context, in WithdrawalInput) (Withdrawal, error) {
	if !in.Amount.IsPositive() {
		return Withdrawal{}, ErrInvalidAmount
	}
	if in.Reference == "" {
		return Withdrawal{}, fmt.Errorf("%w: reference must be provided", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Withdrawal{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the cluster row so concurrent withdrawals serialize on the balance.
	row := tx.QueryRowContext(ctx, `select `+clusterColumns+` from clusters where id=$1 for update`, in.ClusterID)
	c, err := scanCluster(row)
	if err != nil {
		return Withdrawal{}, err
	}
	if in.BeneficiaryID != "" && c.OwnerID != in.BeneficiaryID {
		return Withdrawal{}, ErrNotFound
	}
	if in.Amount.Currency != c.Amount.Currency {
		return Withdrawal{}, ErrInvalidCurrency
	}

	var bal int64
	if err := tx.QueryRowContext(ctx, `
		select coalesce((select sum(t.amount) from transactions t where t.cluster_id=$1 and t.status='successful'), 0)
		     - coalesce((select sum(w.amount) from withdrawals w where w.cluster_id=$1), 0)
	`, in.ClusterID).Scan(&bal); err != nil {
		return Withdrawal{}, err
	}
	if bal < in.Amount.Amount {
		return Withdrawal{}, ErrInsufficientFunds
	}

	out := Withdrawal{
		ID:            ids.New(),
		ClusterID:     in.ClusterID,
		Reference:     in.Reference,
		BeneficiaryID: c.OwnerID,
		Amount:        in.Amount,
		Metadata:      in.Metadata,
		CreatedAt:     s.now(),
	}
	meta, err := marshalMeta(out.Metadata)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("cluster: metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		insert into withdrawals(id, cluster_id, reference, beneficiary_id, currency, amount, metadata, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, out.ID, out.ClusterID, out.Reference, out.BeneficiaryID, out.Amount.Currency, out.Amount.Amount, meta, out.CreatedAt); err != nil {
		return Withdrawal{}, err
	}
	if err := tx.Commit(); err != nil {
		return Withdrawal{}, err
	}
	return out, nil
}
