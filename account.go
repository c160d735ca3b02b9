package dynip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const DefaultAPIURL = "https://api.opendns.com/v1/"

// Account API error codes.
const (
	CodeUnknownMethod  = 1003
	CodeBadCredentials = 1004
	CodeNoNetworks     = 4008
)

var (
	ErrUnknownMethod = &APIError{Code: CodeUnknownMethod}
	// ErrBadCredentials is returned for a wrong user name or password, and for an expired token.
	ErrBadCredentials = &APIError{Code: CodeBadCredentials}
	ErrNoNetworks     = &APIError{Code: CodeNoNetworks}
)

// APIError is a failure reported by the account API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.Code)
	}
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Is matches any *APIError with the same code.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// AccountClient calls the account API: sign in, list networks, and mark a network dynamic.
type AccountClient struct {
	// URL is the API endpoint. It defaults to DefaultAPIURL.
	URL    string
	APIKey string

	httpClient *http.Client
	logger     *slog.Logger
}

func (c *AccountClient) SetHTTPClient(hc *http.Client) { c.httpClient = hc }
func (c *AccountClient) SetLogger(l *slog.Logger)      { c.logger = l }

type envelope struct {
	Status       string          `json:"status"`
	Response     json.RawMessage `json:"response"`
	Error        int             `json:"error"`
	ErrorMessage string          `json:"error_message"`
}

// SignIn exchanges a user name and password for an API token.
func (c *AccountClient) SignIn(ctx context.Context, username, password string) (string, error) {
	resp, err := c.call(ctx, "account_signin", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	var r struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp, &r); err != nil || r.Token == "" {
		return "", fmt.Errorf("sign in: %w: no token", ErrMalformedResponse)
	}
	return r.Token, nil
}

// Networks lists the account's networks in server order.
// An account without networks yields ErrNoNetworks.
func (c *AccountClient) Networks(ctx context.Context, token string) ([]NetworkInfo, error) {
	resp, err := c.call(ctx, "networks_get", url.Values{"token": {token}})
	if err != nil {
		return nil, fmt.Errorf("networks: %w", err)
	}
	nets, err := parseNetworks(resp)
	if err != nil {
		return nil, fmt.Errorf("networks: %w", err)
	}
	if len(nets) == 0 {
		return nil, fmt.Errorf("networks: %w", ErrNoNetworks)
	}
	return nets, nil
}

// SetDynamic turns dynamic IP tracking on or off for a network.
func (c *AccountClient) SetDynamic(ctx context.Context, token, networkID string, on bool) error {
	setting := "off"
	if on {
		setting = "on"
	}
	_, err := c.call(ctx, "network_dynamic_set", url.Values{
		"token":      {token},
		"network_id": {networkID},
		"setting":    {setting},
	})
	if err != nil {
		return fmt.Errorf("set dynamic %s: %w", networkID, err)
	}
	return nil
}

// Session binds a token to the client so it can serve as a NetworkSource.
func (c *AccountClient) Session(token string) NetworkSource {
	return session{c: c, token: token}
}

type session struct {
	c     *AccountClient
	token string
}

func (s session) Networks(ctx context.Context) ([]NetworkInfo, error) {
	return s.c.Networks(ctx, s.token)
}

func (s session) SetDynamic(ctx context.Context, networkID string, on bool) error {
	return s.c.SetDynamic(ctx, s.token, networkID, on)
}

func (c *AccountClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("api_key", c.APIKey)
	form.Set("method", method)

	endpoint := c.URL
	if endpoint == "" {
		endpoint = DefaultAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpclient := c.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	resp, err := httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http request returned %s", resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if c.logger != nil {
		c.logger.Debug("account api response", "method", method, "status", env.Status, "error", env.Error)
	}
	switch env.Status {
	case "success":
		return env.Response, nil
	case "failure":
		return nil, &APIError{Code: env.Error, Message: env.ErrorMessage}
	default:
		return nil, fmt.Errorf("%w: status %q", ErrMalformedResponse, env.Status)
	}
}
