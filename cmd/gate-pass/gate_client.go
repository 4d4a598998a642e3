package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-gate-pass/secrets"
)

type scanResult struct {
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	UserID    string `json:"user_id"`
	AttemptID string `json:"attempt_id"`
}

type issuedSecret struct {
	UserID     string    `json:"user_id"`
	Version    int       `json:"version"`
	Secret     string    `json:"secret"`
	ActiveFrom time.Time `json:"active_from"`
}

// gateClient talks to the gate API: it fetches the holder's secret and plays the part of a
// scanner.
type gateClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ secrets.Issuer = (*gateClient)(nil)

func newGateClient(baseURL, token string) *gateClient {
	return &gateClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Issue asks the gate for a fresh secret for userID.
func (c *gateClient) Issue(ctx context.Context, userID string) (secrets.Key, error) {
	resp, err := c.post(ctx, "/api/v1/secrets/"+url.PathEscape(userID), nil)
	if err != nil {
		return secrets.Key{}, errors.Wrap(err, "gateClient.Issue")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return secrets.Key{}, errors.Errorf("gate refused to issue a secret: %s", resp.Status)
	}
	var issued issuedSecret
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return secrets.Key{}, errors.Wrap(err, "gateClient.Issue decode")
	}
	secret, err := base64.StdEncoding.DecodeString(issued.Secret)
	if err != nil {
		return secrets.Key{}, errors.Wrap(err, "gateClient.Issue secret")
	}
	return secrets.Key{
		UserID:     issued.UserID,
		Version:    issued.Version,
		Secret:     secret,
		ActiveFrom: issued.ActiveFrom,
	}, nil
}

func (c *gateClient) Scan(ctx context.Context, payload string) (scanResult, error) {
	body, err := json.Marshal(map[string]string{"payload": payload})
	if err != nil {
		return scanResult{}, err
	}
	resp, err := c.post(ctx, "/api/v1/admissions", bytes.NewReader(body))
	if err != nil {
		return scanResult{}, errors.Wrap(err, "gateClient.Scan")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return scanResult{}, errors.Errorf("gate refused the request: %s", resp.Status)
	}
	var result scanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return scanResult{}, errors.Wrap(err, "gateClient.Scan decode")
	}
	return result, nil
}

func (c *gateClient) post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.http.Do(req)
}
