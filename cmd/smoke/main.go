// Command smoke drives one full collection cycle against a running API:
// login, create a cluster, deploy it, record a payment, check the balance
// and withdraw. It exits non-zero on the first failure.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"time"
)

func main() {
	base := os.Getenv("PLIXA_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("PLIXA_SMOKE_EMAIL")
	password := os.Getenv("PLIXA_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("PLIXA_SMOKE_EMAIL and PLIXA_SMOKE_PASSWORD are required")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.PostForm(base+"/api/v1/auth/access-token", url.Values{
		"username": {email},
		"password": {password},
	})
	if err != nil {
		log.Fatalf("access token: %v", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	mustDecode(resp, http.StatusOK, &tok)
	if tok.AccessToken == "" {
		log.Fatal("empty access token")
	}

	charge := int64(500_000)
	var cl struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	mustDecode(post(client, base+"/api/v1/clusters", tok.AccessToken, map[string]any{
		"name":                   fmt.Sprintf("smoke-%d", rand.Int()),
		"currency":               "NGN",
		"amount":                 charge,
		"min_acceptable_payment": "half",
	}), http.StatusCreated, &cl)

	mustDecode(post(client, base+"/api/v1/clusters/"+cl.ID+"/deploy", tok.AccessToken, nil), http.StatusOK, &cl)
	if cl.Status != "online" {
		log.Fatalf("cluster not online after deploy: %s", cl.Status)
	}

	payment := charge / 2
	var tx struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	mustDecode(post(client, base+"/api/v1/clusters/"+cl.ID+"/transactions", "", map[string]any{
		"reference": fmt.Sprintf("smoke-ref-%d", rand.Int()),
		"email":     "smoke@example.com",
		"currency":  "NGN",
		"amount":    payment,
	}), http.StatusCreated, &tx)
	if tx.Status != "successful" {
		log.Fatalf("payment not successful: %s", tx.Status)
	}

	var bal struct {
		Amount int64 `json:"amount"`
	}
	mustDecode(get(client, base+"/api/v1/clusters/"+cl.ID+"/balance", tok.AccessToken), http.StatusOK, &bal)
	if bal.Amount != payment {
		log.Fatalf("balance mismatch: got %d want %d", bal.Amount, payment)
	}

	var wd struct {
		ID string `json:"id"`
	}
	mustDecode(post(client, base+"/api/v1/clusters/"+cl.ID+"/withdrawals", tok.AccessToken, map[string]any{
		"reference": fmt.Sprintf("smoke-wd-%d", rand.Int()),
		"currency":  "NGN",
		"amount":    payment,
	}), http.StatusCreated, &wd)

	fmt.Printf("smoke test passed: cluster=%s tx=%s withdrawal=%s\n", cl.ID, tx.ID, wd.ID)
}

func post(client *http.Client, url, token string, body map[string]any) *http.Response {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func get(client *http.Client, url, token string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func mustDecode(resp *http.Response, wantStatus int, dst any) {
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body := make([]byte, 512)
		n, _ := resp.Body.Read(body)
		log.Fatalf("%s: status %d (want %d): %s", resp.Request.URL.Path, resp.StatusCode, wantStatus, body[:n])
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			log.Fatalf("%s: decode: %v", resp.Request.URL.Path, err)
		}
	}
}
