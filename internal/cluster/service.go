package cluster

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"plixa.org/internal/ids"
)

// CreateClusterInput carries the fields needed to open a new collection.
type CreateClusterInput struct {
	OwnerID              string            `json:"-"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	Amount               Money             `json:"amount"`
	MinAcceptablePayment AcceptablePayment `json:"min_acceptable_payment"`
	ExpiresAt            *time.Time        `json:"expires_at,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

func (in CreateClusterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name must be provided", ErrInvalidInput)
	}
	if in.OwnerID == "" {
		return fmt.Errorf("%w: owner must be provided", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.Amount.Currency == "" {
		return ErrInvalidCurrency
	}
	if in.MinAcceptablePayment != "" && !in.MinAcceptablePayment.Valid() {
		return fmt.Errorf("%w: unsupported min_acceptable_payment %q", ErrInvalidInput, in.MinAcceptablePayment)
	}
	return nil
}

// PaymentInput is a payment attempt against an online cluster. Reference is
// the caller-chosen idempotency key.
type PaymentInput struct {
	ClusterID string            `json:"-"`
	Reference string            `json:"reference"`
	Email     string            `json:"email"`
	Amount    Money             `json:"amount"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// WithdrawalInput moves collected funds out of a cluster.
type WithdrawalInput struct {
	ClusterID     string            `json:"-"`
	BeneficiaryID string            `json:"-"`
	Reference     string            `json:"reference"`
	Amount        Money             `json:"amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Service defines collection operations.
type Service interface {
	CreateCluster(ctx context.Context, in CreateClusterInput) (Cluster, error)
	GetCluster(ctx context.Context, id string) (Cluster, error)
	ListClusters(ctx context.Context, ownerID string) ([]Cluster, error)
	Deploy(ctx context.Context, id, ownerID string) (Cluster, error)
	Balance(ctx context.Context, id string) (Money, error)
	RecordPayment(ctx context.Context, in PaymentInput) (Transaction, error)
	ListTransactions(ctx context.Context, clusterID string, limit int, afterSeq uint64) ([]Transaction, uint64, error)
	Withdraw(ctx context.Context, in WithdrawalInput) (Withdrawal, error)
}

// InMemory implements Service with in-process concurrency safety.
// NOTE: Replace with durable storage later (Postgres via PGService).
type InMemory struct {
	mu       sync.RWMutex
	clusters map[string]*Cluster
	seq      uint64
	txs      []Transaction
	wds      []Withdrawal
	idem     map[string]Transaction // clusterID+reference -> tx
	now      func() time.Time
}

// NewInMemory creates an empty collection service.
func NewInMemory() *InMemory {
	return &InMemory{
		clusters: make(map[string]*Cluster),
		idem:     make(map[string]Transaction),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, used by tests.
func (s *InMemory) WithClock(now func() time.Time) *InMemory {
	s.now = now
	return s
}

func idemKey(clusterID, reference string) string {
	return clusterID + "\x00" + reference
}

func (s *InMemory) CreateCluster(ctx context.Context, in CreateClusterInput) (Cluster, error) {
	if err := in.validate(); err != nil {
		return Cluster{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	min := in.MinAcceptablePayment
	if min == "" {
		min = PaymentFull
	}
	c := &Cluster{
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
	s.clusters[c.ID] = c
	return *c, nil
}

func (s *InMemory) GetCluster(ctx context.Context, id string) (Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, ErrNotFound
	}
	return *c, nil
}

func (s *InMemory) ListClusters(ctx context.Context, ownerID string) ([]Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Cluster
	for _, c := range s.clusters {
		if ownerID != "" && c.OwnerID != ownerID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// Deploy flips a cluster from offline to online. Only the owner may deploy.
// Deploying an already online cluster is a no-op.
func (s *InMemory) Deploy(ctx context.Context, id, ownerID string) (Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return Cluster{}, ErrNotFound
	}
	if ownerID != "" && c.OwnerID != ownerID {
		return Cluster{}, ErrNotFound
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(s.now()) {
		return Cluster{}, ErrClusterExpired
	}
	c.Status = StatusOnline
	return *c, nil
}

// Balance is collected successful payments minus prior withdrawals.
func (s *InMemory) Balance(ctx context.Context, id string) (Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[id]
	if !ok {
		return Money{}, ErrNotFound
	}
	return Money{Currency: c.Amount.Currency, Amount: s.balanceLocked(id)}, nil
}

func (s *InMemory) balanceLocked(id string) int64 {
	var bal int64
	for _, tx := range s.txs {
		if tx.ClusterID == id && tx.Status == TxSuccessful {
			bal += tx.Amount.Amount
		}
	}
	for _, w := range s.wds {
		if w.ClusterID == id {
			bal -= w.Amount.Amount
		}
	}
	return bal
}

func (s *InMemory) RecordPayment(ctx context.Context, in PaymentInput) (Transaction, error) {
	if !in.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	if in.Reference == "" {
		return Transaction{}, fmt.Errorf("%w: reference must be provided", ErrInvalidInput)
	}
	if !strings.Contains(in.Email, "@") {
		return Transaction{}, fmt.Errorf("%w: payer email must be provided", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotency: replaying a reference returns the recorded transaction.
	if tx, ok := s.idem[idemKey(in.ClusterID, in.Reference)]; ok {
		return tx, nil
	}

	c, ok := s.clusters[in.ClusterID]
	if !ok {
		return Transaction{}, ErrNotFound
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

	s.seq++
	tx := Transaction{
		ID:        ids.New(),
		ClusterID: in.ClusterID,
		Reference: in.Reference,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Amount:    in.Amount,
		Status:    TxSuccessful,
		Metadata:  in.Metadata,
		Sequence:  s.seq,
		CreatedAt: s.now(),
	}
	s.txs = append(s.txs, tx)
	s.idem[idemKey(in.ClusterID, in.Reference)] = tx
	return tx, nil
}

func (s *InMemory) ListTransactions(ctx context.Context, clusterID string, limit int, afterSeq uint64) ([]Transaction, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clusters[clusterID]; !ok {
		return nil, 0, ErrNotFound
	}
	var res []Transaction
	var last uint64
	for _, tx := range s.txs {
		if tx.ClusterID != clusterID || tx.Sequence <= afterSeq {
			continue
		}
		res = append(res, tx)
		last = tx.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}

func (s *InMemory) Withdraw(ctx context.Context, in WithdrawalInput) (Withdrawal, error) {
	if !in.Amount.IsPositive() {
		return Withdrawal{}, ErrInvalidAmount
	}
	if in.Reference == "" {
		return Withdrawal{}, fmt.Errorf("%w: reference must be provided", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clusters[in.ClusterID]
	if !ok {
		return Withdrawal{}, ErrNotFound
	}
	if in.BeneficiaryID != "" && c.OwnerID != in.BeneficiaryID {
		return Withdrawal{}, ErrNotFound
	}
	if in.Amount.Currency != c.Amount.Currency {
		return Withdrawal{}, ErrInvalidCurrency
	}
	if s.balanceLocked(in.ClusterID) < in.Amount.Amount {
		return Withdrawal{}, ErrInsufficientFunds
	}

	w := Withdrawal{
		ID:            ids.New(),
		ClusterID:     in.ClusterID,
		Reference:     in.Reference,
		BeneficiaryID: c.OwnerID,
		Amount:        in.Amount,
		Metadata:      in.Metadata,
		CreatedAt:     s.now(),
	}
	s.wds = append(s.wds, w)
	return w, nil
}
