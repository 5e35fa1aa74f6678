package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"plixa.org/internal/audit"
	"plixa.org/internal/auth"
	"plixa.org/internal/cluster"
	"plixa.org/internal/obs"
	"plixa.org/internal/school"
	"plixa.org/internal/stream"
)

// ReadyProbe reports whether the service can take traffic (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API's collaborators. Nil services disable their routes.
type Options struct {
	Auth          *auth.Service
	Authenticator *auth.Authenticator
	Clusters      cluster.Service
	Schools       school.Store
	Stream        *stream.Stream
	Ready         ReadyProbe
	Version       string
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	mux           *http.ServeMux
	auth          *auth.Service
	authn         *auth.Authenticator
	clusters      cluster.Service
	schools       school.Store
	stream        *stream.Stream
	readyProbe    ReadyProbe
	version       string
	rateBurst     int
	ratePerSecond int
	maxBodyBytes  int64
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		auth:          opts.Auth,
		authn:         opts.Authenticator,
		clusters:      opts.Clusters,
		schools:       opts.Schools,
		stream:        opts.Stream,
		readyProbe:    opts.Ready,
		version:       opts.Version,
		rateBurst:     opts.RateBurst,
		ratePerSecond: opts.RatePerSecond,
		maxBodyBytes:  opts.MaxBodyBytes,
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.HandleFunc("/v1/docs", a.Docs)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/v1/auth/access-token", a.handleAccessToken)
	a.mux.HandleFunc("/api/v1/auth/create-user", a.handleCreateUser)
	a.mux.HandleFunc("/api/v1/auth/me", a.handleMe)

	// collections
	a.mux.HandleFunc("/api/v1/clusters", a.handleClustersCollection)
	a.mux.HandleFunc("/api/v1/clusters/", a.handleClusterResource)

	// school directory
	a.mux.HandleFunc("/api/v1/schools/", a.handleSchools)

	// live payments
	a.mux.HandleFunc("/api/v1/payments/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully assembled middleware chain for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	if a.rateBurst > 0 && a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "plixa-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "plixa-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// Docs serves a plain JSON index of the API surface.
func (a *API) Docs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "plixa-api",
		"version": a.version,
		"routes": map[string]string{
			"POST /api/v1/auth/access-token":          "exchange credentials for a bearer token",
			"POST /api/v1/auth/create-user":           "create a user account",
			"GET /api/v1/auth/me":                     "current principal",
			"GET /api/v1/clusters":                    "list payment clusters",
			"POST /api/v1/clusters":                   "create a payment cluster",
			"GET /api/v1/clusters/{id}":               "cluster detail",
			"GET /api/v1/clusters/{id}/balance":       "cluster balance",
			"POST /api/v1/clusters/{id}/deploy":       "take a cluster online",
			"GET /api/v1/clusters/{id}/transactions":  "list payments",
			"POST /api/v1/clusters/{id}/transactions": "record a payment",
			"POST /api/v1/clusters/{id}/withdrawals":  "withdraw from the balance",
			"GET /api/v1/schools/universities":        "list universities",
			"GET /api/v1/schools/universities/{id}":   "university detail",
			"GET /api/v1/payments/stream":             "live payment events (SSE)",
		},
	})
}

func (a *API) audit(ctx context.Context, event, entity, id string, meta map[string]string) {
	fields := map[string]any{
		"entity":    entity,
		"entity_id": id,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}
