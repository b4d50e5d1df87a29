package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const DefaultIAMEndpoint = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// iamTTL is shorter than the 12h Yandex grants so a cached token never
// reaches expiry mid-request.
const iamTTL = 11 * time.Hour

// IamClient exchanges an OAuth token for IAM tokens and caches them.
type IamClient struct {
	httpc    *http.Client
	oauth    string
	endpoint string
	now      func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewIamClient(oauth string) *IamClient {
	return &IamClient{
		httpc:    &http.Client{Timeout: 20 * time.Second},
		oauth:    oauth,
		endpoint: DefaultIAMEndpoint,
		now:      time.Now,
	}
}

// Token returns the cached IAM token or fetches a fresh one.
func (c *IamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-time.Minute)) {
		return c.token, nil
	}
	return c.refreshLocked(ctx)
}

// Invalidate drops the cached token so the next Token call refetches it.
func (c *IamClient) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *IamClient) refreshLocked(ctx context.Context) (string, error) {
	b, _ := json.Marshal(map[string]string{"yandexPassportOauthToken": c.oauth})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("iam %d", resp.StatusCode)
	}

	var out struct {
		IamToken string `json:"iamToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.IamToken == "" {
		return "", fmt.Errorf("iam: empty token")
	}
	c.token = out.IamToken
	c.expiry = c.now().Add(iamTTL)
	return c.token, nil
}
