package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"plixa.org/internal/auth"
	"plixa.org/internal/cluster"
	"plixa.org/internal/school"
	"plixa.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	codec, err := auth.NewCodec(auth.TokenConfig{
		Secret: []byte("test-secret"),
		Issuer: "plixa-test",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	store := auth.NewMemStore()
	svc, err := auth.NewService(store, codec)
	if err != nil {
		t.Fatal(err)
	}
	authn, err := auth.NewAuthenticator(codec, store)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := svc.CreateSuperuser(ctx, "admin@plixa.test", "Ada", "Admin", "admin-pass"); err != nil {
		t.Fatal(err)
	}
	seed := []auth.CreateUserInput{
		{Email: "student@plixa.test", FirstName: "Seyi", LastName: "Student", Type: auth.UserTypeStandard, Password: "student-pass", ConfirmPassword: "student-pass"},
		{Email: "assoc@plixa.test", FirstName: "Obi", LastName: "Organizer", Type: auth.UserTypeOrganization, Password: "assoc-pass", ConfirmPassword: "assoc-pass"},
	}
	for _, in := range seed {
		if _, err := svc.CreateUser(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	api := New(Options{
		Auth:          svc,
		Authenticator: authn,
		Clusters:      cluster.NewInMemory(),
		Schools:       school.NewMemStore(),
		Stream:        stream.New(),
		Version:       "test",
		RateBurst:     1000,
		RatePerSecond: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) postForm(path string, form url.Values) *http.Response {
	c.t.Helper()
	resp, err := c.client.Post(c.baseURL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatalf("post form: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(email, password string) string {
	c.t.Helper()
	resp := c.postForm("/api/v1/auth/access-token", url.Values{
		"username": {email},
		"password": {password},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload auth.AccessToken
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthzPublic(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDocsPublicIndex(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/v1/docs", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	routes, ok := body["routes"].(map[string]any)
	if !ok || len(routes) == 0 {
		t.Fatalf("expected route index, got %+v", body)
	}
	if _, ok := routes["POST /api/v1/auth/access-token"]; !ok {
		t.Fatalf("token route missing from index: %+v", routes)
	}
}

func TestAccessTokenFailureParity(t *testing.T) {
	c := newTestAPI(t)

	wrongPass := c.postForm("/api/v1/auth/access-token", url.Values{
		"username": {"student@plixa.test"},
		"password": {"bad-pass"},
	})
	unknownUser := c.postForm("/api/v1/auth/access-token", url.Values{
		"username": {"ghost@plixa.test"},
		"password": {"whatever"},
	})
	defer wrongPass.Body.Close()
	defer unknownUser.Body.Close()

	if wrongPass.StatusCode != http.StatusUnauthorized || unknownUser.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPass.StatusCode, unknownUser.StatusCode)
	}
	if wrongPass.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("expected WWW-Authenticate: Bearer, got %q", wrongPass.Header.Get("WWW-Authenticate"))
	}

	b1, _ := io.ReadAll(wrongPass.Body)
	b2, _ := io.ReadAll(unknownUser.Body)
	var e1, e2 map[string]any
	_ = json.Unmarshal(b1, &e1)
	_ = json.Unmarshal(b2, &e2)
	if e1["error"] != e2["error"] {
		t.Fatalf("failure bodies must be indistinguishable: %v vs %v", e1["error"], e2["error"])
	}
	if e1["error"] != "incorrect email or password" {
		t.Fatalf("unexpected error message: %v", e1["error"])
	}
}

func TestMeReturnsPrincipal(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("student@plixa.test", "student-pass")

	resp := c.get("/api/v1/auth/me", bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	user, ok := body["user"].(map[string]any)
	if !ok || user["email"] != "student@plixa.test" {
		t.Fatalf("unexpected me payload: %v", body)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatal("password hash leaked in response")
	}
}

func TestStandardUserReadOnlyScenario(t *testing.T) {
	c := newTestAPI(t)
	token := c.obtainToken("student@plixa.test", "student-pass")

	read := c.get("/api/v1/clusters", bearerHeader(token))
	defer read.Body.Close()
	if read.StatusCode != http.StatusOK {
		t.Fatalf("read with {read} scope: expected 200, got %d", read.StatusCode)
	}

	write := c.post("/api/v1/clusters", map[string]any{
		"name":     "Dues",
		"currency": "NGN",
		"amount":   500000,
	}, bearerHeader(token))
	defer write.Body.Close()
	if write.StatusCode != http.StatusForbidden {
		t.Fatalf("write without {write} scope: expected 403, got %d", write.StatusCode)
	}
	if !strings.Contains(write.Header.Get("WWW-Authenticate"), `scope="write"`) {
		t.Fatalf("expected scope challenge, got %q", write.Header.Get("WWW-Authenticate"))
	}
	body := decode[map[string]any](t, c.post("/api/v1/clusters", map[string]any{
		"name":     "Dues",
		"currency": "NGN",
		"amount":   500000,
	}, bearerHeader(token)))
	if body["error"] != "not enough permissions" {
		t.Fatalf("unexpected forbidden message: %v", body["error"])
	}
}

func TestMissingTokenUnauthorized(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/api/v1/clusters", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("WWW-Authenticate"), `scope="read"`) {
		t.Fatalf("expected scope challenge, got %q", resp.Header.Get("WWW-Authenticate"))
	}
}

func TestCreateUserRequiresScope(t *testing.T) {
	c := newTestAPI(t)

	student := c.obtainToken("student@plixa.test", "student-pass")
	denied := c.post("/api/v1/auth/create-user", map[string]any{
		"email":            "new@plixa.test",
		"first_name":       "New",
		"last_name":        "User",
		"password":         "pass-1234",
		"confirm_password": "pass-1234",
	}, bearerHeader(student))
	defer denied.Body.Close()
	if denied.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for standard user, got %d", denied.StatusCode)
	}

	admin := c.obtainToken("admin@plixa.test", "admin-pass")
	created := c.post("/api/v1/auth/create-user", map[string]any{
		"email":            "new@plixa.test",
		"first_name":       "New",
		"last_name":        "User",
		"password":         "pass-1234",
		"confirm_password": "pass-1234",
	}, bearerHeader(admin))
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d", created.StatusCode)
	}
	user := decode[map[string]any](t, created)
	if user["email"] != "new@plixa.test" {
		t.Fatalf("unexpected user payload: %v", user)
	}

	mismatch := c.post("/api/v1/auth/create-user", map[string]any{
		"email":            "other@plixa.test",
		"first_name":       "Other",
		"last_name":        "User",
		"password":         "pass-1234",
		"confirm_password": "different",
	}, bearerHeader(admin))
	defer mismatch.Body.Close()
	if mismatch.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for password mismatch, got %d", mismatch.StatusCode)
	}

	dup := c.post("/api/v1/auth/create-user", map[string]any{
		"email":            "new@plixa.test",
		"first_name":       "New",
		"last_name":        "User",
		"password":         "pass-1234",
		"confirm_password": "pass-1234",
	}, bearerHeader(admin))
	defer dup.Body.Close()
	if dup.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for duplicate email, got %d", dup.StatusCode)
	}
}

func TestClusterCollectionFlow(t *testing.T) {
	c := newTestAPI(t)
	org := c.obtainToken("assoc@plixa.test", "assoc-pass")

	created := c.post("/api/v1/clusters", map[string]any{
		"name":                   "Departmental Dues",
		"description":            "2025/2026 session",
		"currency":               "NGN",
		"amount":                 500000,
		"min_acceptable_payment": "half",
	}, bearerHeader(org))
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create cluster: expected 201, got %d", created.StatusCode)
	}
	cl := decode[cluster.Cluster](t, created)
	if cl.Status != cluster.StatusOffline {
		t.Fatalf("new cluster must be offline, got %s", cl.Status)
	}

	// Payments against an offline cluster are refused.
	refused := c.post("/api/v1/clusters/"+cl.ID+"/transactions", map[string]any{
		"reference": "ref-early",
		"email":     "payer@example.com",
		"currency":  "NGN",
		"amount":    250000,
	}, nil)
	defer refused.Body.Close()
	if refused.StatusCode != http.StatusConflict {
		t.Fatalf("payment to offline cluster: expected 409, got %d", refused.StatusCode)
	}

	deployed := c.post("/api/v1/clusters/"+cl.ID+"/deploy", nil, bearerHeader(org))
	if deployed.StatusCode != http.StatusOK {
		t.Fatalf("deploy: expected 200, got %d", deployed.StatusCode)
	}
	cl = decode[cluster.Cluster](t, deployed)
	if cl.Status != cluster.StatusOnline {
		t.Fatalf("deployed cluster must be online, got %s", cl.Status)
	}

	// Anonymous payer settles half the charge.
	paid := c.post("/api/v1/clusters/"+cl.ID+"/transactions", map[string]any{
		"reference": "ref-1",
		"email":     "payer@example.com",
		"currency":  "NGN",
		"amount":    250000,
	}, nil)
	if paid.StatusCode != http.StatusCreated {
		t.Fatalf("payment: expected 201, got %d", paid.StatusCode)
	}
	tx := decode[cluster.Transaction](t, paid)
	if tx.Status != cluster.TxSuccessful {
		t.Fatalf("expected successful transaction, got %s", tx.Status)
	}

	// Replay returns the same transaction.
	replay := c.post("/api/v1/clusters/"+cl.ID+"/transactions", map[string]any{
		"reference": "ref-1",
		"email":     "payer@example.com",
		"currency":  "NGN",
		"amount":    250000,
	}, nil)
	tx2 := decode[cluster.Transaction](t, replay)
	if tx2.ID != tx.ID {
		t.Fatalf("idempotent replay returned a different transaction")
	}

	// Below the half-minimum is refused.
	small := c.post("/api/v1/clusters/"+cl.ID+"/transactions", map[string]any{
		"reference": "ref-2",
		"email":     "payer@example.com",
		"currency":  "NGN",
		"amount":    100,
	}, nil)
	defer small.Body.Close()
	if small.StatusCode != http.StatusConflict {
		t.Fatalf("below minimum payment: expected 409, got %d", small.StatusCode)
	}

	balance := c.get("/api/v1/clusters/"+cl.ID+"/balance", bearerHeader(org))
	bal := decode[cluster.Money](t, balance)
	if bal.Amount != 250000 {
		t.Fatalf("expected balance 250000, got %d", bal.Amount)
	}

	over := c.post("/api/v1/clusters/"+cl.ID+"/withdrawals", map[string]any{
		"reference": "wd-1",
		"currency":  "NGN",
		"amount":    300000,
	}, bearerHeader(org))
	defer over.Body.Close()
	if over.StatusCode != http.StatusConflict {
		t.Fatalf("over-withdrawal: expected 409, got %d", over.StatusCode)
	}

	wd := c.post("/api/v1/clusters/"+cl.ID+"/withdrawals", map[string]any{
		"reference": "wd-2",
		"currency":  "NGN",
		"amount":    200000,
	}, bearerHeader(org))
	if wd.StatusCode != http.StatusCreated {
		t.Fatalf("withdrawal: expected 201, got %d", wd.StatusCode)
	}
}

func TestSchoolDirectoryEndpoints(t *testing.T) {
	c := newTestAPI(t)
	org := c.obtainToken("assoc@plixa.test", "assoc-pass")
	student := c.obtainToken("student@plixa.test", "student-pass")

	created := c.post("/api/v1/schools/universities", map[string]any{
		"name":         "University of Lagos",
		"abbreviation": "UNILAG",
		"state":        "Lagos",
	}, bearerHeader(org))
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("create university: expected 201, got %d", created.StatusCode)
	}
	u := decode[school.University](t, created)

	fac := c.post("/api/v1/schools/universities/"+u.ID+"/faculties", map[string]any{
		"name": "Science",
	}, bearerHeader(org))
	if fac.StatusCode != http.StatusCreated {
		t.Fatalf("create faculty: expected 201, got %d", fac.StatusCode)
	}
	f := decode[school.Faculty](t, fac)

	dep := c.post("/api/v1/schools/faculties/"+f.ID+"/departments", map[string]any{
		"name": "Computer Science",
	}, bearerHeader(org))
	defer dep.Body.Close()
	if dep.StatusCode != http.StatusCreated {
		t.Fatalf("create department: expected 201, got %d", dep.StatusCode)
	}

	list := c.get("/api/v1/schools/universities", bearerHeader(student))
	if list.StatusCode != http.StatusOK {
		t.Fatalf("list universities with {read}: expected 200, got %d", list.StatusCode)
	}
	body := decode[map[string]any](t, list)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("unexpected universities payload: %v", body)
	}

	denied := c.post("/api/v1/schools/universities", map[string]any{
		"name": "Another",
	}, bearerHeader(student))
	defer denied.Body.Close()
	if denied.StatusCode != http.StatusForbidden {
		t.Fatalf("create with {read} only: expected 403, got %d", denied.StatusCode)
	}
}
