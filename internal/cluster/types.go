package cluster

import (
	"errors"
	"time"
)

// Money is represented in minor units (e.g. kobo). No floats.
type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

func (m Money) IsPositive() bool { return m.Amount > 0 }
func (m Money) IsZero() bool     { return m.Amount == 0 }

// AcceptablePayment is the minimum fraction of the cluster charge a payer may
// settle in one transaction.
type AcceptablePayment string

const (
	PaymentFull    AcceptablePayment = "full"
	PaymentHalf    AcceptablePayment = "half"
	PaymentQuarter AcceptablePayment = "quarter"
)

// Valid reports whether p is a known fraction.
func (p AcceptablePayment) Valid() bool {
	switch p {
	case PaymentFull, PaymentHalf, PaymentQuarter:
		return true
	}
	return false
}

// MinimumOf returns the smallest acceptable payment against a charge in minor
// units.
func (p AcceptablePayment) MinimumOf(charge int64) int64 {
	switch p {
	case PaymentHalf:
		return charge / 2
	case PaymentQuarter:
		return charge / 4
	default:
		return charge
	}
}

// Status is the collection state of a cluster. Clusters start offline and
// must be deployed before they accept payments.
type Status string

const (
	StatusOffline Status = "offline"
	StatusOnline  Status = "online"
)

// Cluster is a payment collection run by an individual or an organization
// against a target audience.
type Cluster struct {
	ID                   string            `json:"id"`
	OwnerID              string            `json:"owner_id"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	Amount               Money             `json:"amount"`
	MinAcceptablePayment AcceptablePayment `json:"min_acceptable_payment"`
	Status               Status            `json:"status"`
	ExpiresAt            *time.Time        `json:"expires_at,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

// TransactionStatus tracks a payment through its lifecycle.
type TransactionStatus string

const (
	TxPending    TransactionStatus = "pending"
	TxSuccessful TransactionStatus = "successful"
	TxFailed     TransactionStatus = "failed"
)

// Transaction is a payment made to a cluster. Reference doubles as the
// idempotency key: replaying a reference returns the recorded transaction.
type Transaction struct {
	ID        string            `json:"id"`
	ClusterID string            `json:"cluster_id"`
	Reference string            `json:"reference"`
	Email     string            `json:"email"`
	Amount    Money             `json:"amount"`
	Status    TransactionStatus `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Sequence  uint64            `json:"sequence"`
	CreatedAt time.Time         `json:"created_at"`
}

// Withdrawal is money taken out of a cluster by its beneficiary.
type Withdrawal struct {
	ID            string            `json:"id"`
	ClusterID     string            `json:"cluster_id"`
	Reference     string            `json:"reference"`
	BeneficiaryID string            `json:"beneficiary_id"`
	Amount        Money             `json:"amount"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

var (
	ErrNotFound            = errors.New("cluster: not found")
	ErrInvalidInput        = errors.New("cluster: invalid input")
	ErrInvalidAmount       = errors.New("cluster: invalid amount (must be > 0)")
	ErrInvalidCurrency     = errors.New("cluster: invalid currency")
	ErrClusterOffline      = errors.New("cluster: cluster is offline")
	ErrClusterExpired      = errors.New("cluster: cluster has expired")
	ErrBelowMinimumPayment = errors.New("cluster: amount below minimum acceptable payment")
	ErrInsufficientFunds   = errors.New("cluster: insufficient collected funds")
)
