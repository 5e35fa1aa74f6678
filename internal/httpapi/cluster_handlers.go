package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"plixa.org/internal/auth"
	"plixa.org/internal/cluster"
	"plixa.org/internal/stream"
)

type createClusterRequest struct {
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	Currency             string            `json:"currency"`
	Amount               int64             `json:"amount"`
	MinAcceptablePayment string            `json:"min_acceptable_payment"`
	ExpiresAt            *time.Time        `json:"expires_at"`
	Metadata             map[string]string `json:"metadata"`
}

type recordPaymentRequest struct {
	Reference string            `json:"reference"`
	Email     string            `json:"email"`
	Currency  string            `json:"currency"`
	Amount    int64             `json:"amount"`
	Metadata  map[string]string `json:"metadata"`
}

type withdrawRequest struct {
	Reference string            `json:"reference"`
	Currency  string            `json:"currency"`
	Amount    int64             `json:"amount"`
	Metadata  map[string]string `json:"metadata"`
}

type listTransactionsResponse struct {
	Items     []cluster.Transaction `json:"items"`
	NextAfter uint64                `json:"next_after"`
	AsOf      time.Time             `json:"as_of"`
}

func (a *API) handleClustersCollection(w http.ResponseWriter, r *http.Request) {
	if a.clusters == nil {
		writeError(w, r, http.StatusServiceUnavailable, "cluster service unavailable")
		return
	}
	switch r.Method {
	case http.MethodPost:
		a.createCluster(w, r)
	case http.MethodGet:
		a.listClusters(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleClusterResource(w http.ResponseWriter, r *http.Request) {
	if a.clusters == nil {
		writeError(w, r, http.StatusServiceUnavailable, "cluster service unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/clusters/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	switch len(parts) {
	case 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getCluster(w, r, id)
	case 2:
		switch parts[1] {
		case "balance":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, r, http.MethodGet)
				return
			}
			a.getBalance(w, r, id)
		case "deploy":
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.deployCluster(w, r, id)
		case "transactions":
			switch r.Method {
			case http.MethodPost:
				a.recordPayment(w, r, id)
			case http.MethodGet:
				a.listTransactions(w, r, id)
			default:
				methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
			}
		case "withdrawals":
			if r.Method != http.MethodPost {
				methodNotAllowed(w, r, http.MethodPost)
				return
			}
			a.withdraw(w, r, id)
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createCluster(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		writeError(w, r, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	var req createClusterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.clusters.CreateCluster(r.Context(), cluster.CreateClusterInput{
		OwnerID:              principal.User.ID,
		Name:                 req.Name,
		Description:          req.Description,
		Amount:               cluster.Money{Currency: strings.ToUpper(strings.TrimSpace(req.Currency)), Amount: req.Amount},
		MinAcceptablePayment: cluster.AcceptablePayment(req.MinAcceptablePayment),
		ExpiresAt:            req.ExpiresAt,
		Metadata:             req.Metadata,
	})
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	a.audit(r.Context(), "cluster.create", "cluster", c.ID, map[string]string{
		"name":     c.Name,
		"currency": c.Amount.Currency,
		"amount":   strconv.FormatInt(c.Amount.Amount, 10),
	})
	w.Header().Set("Location", "/api/v1/clusters/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) listClusters(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "me" {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok || principal.User == nil {
			writeError(w, r, http.StatusUnauthorized, "could not validate credentials")
			return
		}
		owner = principal.User.ID
	}
	items, err := a.clusters.ListClusters(r.Context(), owner)
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getCluster(w http.ResponseWriter, r *http.Request, id string) {
	c, err := a.clusters.GetCluster(r.Context(), id)
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request, id string) {
	bal, err := a.clusters.Balance(r.Context(), id)
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (a *API) deployCluster(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		writeError(w, r, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	owner := principal.User.ID
	if principal.Scopes.IsSuperuser() {
		owner = ""
	}
	c, err := a.clusters.Deploy(r.Context(), id, owner)
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	a.audit(r.Context(), "cluster.deploy", "cluster", c.ID, nil)
	writeJSON(w, http.StatusOK, c)
}

func (a *API) recordPayment(w http.ResponseWriter, r *http.Request, id string) {
	var req recordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	reference := strings.TrimSpace(req.Reference)
	if idem := strings.TrimSpace(r.Header.Get("Idempotency-Key")); idem != "" {
		if reference == "" {
			reference = idem
		} else if reference != idem {
			writeError(w, r, http.StatusBadRequest, "Idempotency-Key header and reference must match")
			return
		}
	}
	tx, err := a.clusters.RecordPayment(r.Context(), cluster.PaymentInput{
		ClusterID: id,
		Reference: reference,
		Email:     req.Email,
		Amount:    cluster.Money{Currency: strings.ToUpper(strings.TrimSpace(req.Currency)), Amount: req.Amount},
		Metadata:  req.Metadata,
	})
	if err != nil {
		handleClusterError(w, r, err)
		return
	}

	if a.stream != nil {
		a.stream.Publish(stream.FromTransaction(tx))
	}
	a.audit(r.Context(), "cluster.payment.record", "transaction", tx.ID, map[string]string{
		"cluster":   id,
		"reference": tx.Reference,
		"amount":    strconv.FormatInt(tx.Amount.Amount, 10),
	})
	writeJSON(w, http.StatusCreated, tx)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request, id string) {
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	afterParam := strings.TrimSpace(r.URL.Query().Get("after"))
	var after uint64
	if afterParam != "" {
		v, err := strconv.ParseUint(afterParam, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}

	items, next, err := a.clusters.ListTransactions(r.Context(), id, limit, after)
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		writeError(w, r, http.StatusUnauthorized, "could not validate credentials")
		return
	}
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	beneficiary := principal.User.ID
	if principal.Scopes.IsSuperuser() {
		beneficiary = ""
	}
	wd, err := a.clusters.Withdraw(r.Context(), cluster.WithdrawalInput{
		ClusterID:     id,
		BeneficiaryID: beneficiary,
		Reference:     req.Reference,
		Amount:        cluster.Money{Currency: strings.ToUpper(strings.TrimSpace(req.Currency)), Amount: req.Amount},
		Metadata:      req.Metadata,
	})
	if err != nil {
		handleClusterError(w, r, err)
		return
	}
	a.audit(r.Context(), "cluster.withdrawal.create", "withdrawal", wd.ID, map[string]string{
		"cluster": id,
		"amount":  strconv.FormatInt(wd.Amount.Amount, 10),
	})
	writeJSON(w, http.StatusCreated, wd)
}
