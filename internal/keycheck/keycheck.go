package keycheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UID is the verification outcome for one user id on a key.
type UID struct {
	Name      string   `json:"name"`
	Errors    []string `json:"errors,omitempty"`
	SigsOK    int      `json:"sigs_ok"`
	SigsNoKey int      `json:"sigs_no_key"`
	SigsBad   int      `json:"sigs_bad"`
}

// Result is the outcome of checking one key.
type Result struct {
	Errors []string `json:"errors,omitempty"` // key-level disqualifying flags
	UIDs   []UID    `json:"uids"`
}

// Checker verifies key health and signatures. Implementations may be slow;
// they are never called inside a mutating transaction.
type Checker interface {
	Keycheck(ctx context.Context, fingerprint string) (Result, error)
}

// Signature verification failures.
var (
	ErrBadSignature = errors.New("bad signature")
	ErrUnknownKey   = errors.New("unknown key")
)

// Verifier checks that signed is a valid signature by the key with the given
// fingerprint and returns the signed plaintext. The verification backend is
// external; implementations wrap it.
type Verifier interface {
	VerifySignature(ctx context.Context, fingerprint, signed string) (string, error)
}

const defaultTimeout = 30 * time.Second

// Client fetches keycheck results from an external verification service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) Keycheck(ctx context.Context, fingerprint string) (Result, error) {
	var res Result
	url := fmt.Sprintf("%s/keycheck/%s", c.BaseURL, fingerprint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return res, fmt.Errorf("keycheck %s: status %d: %s", fingerprint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("keycheck %s: decode: %w", fingerprint, err)
	}
	return res, nil
}
