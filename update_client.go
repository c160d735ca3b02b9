package dynip

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	DefaultUpdateURL      = "https://updates.opendns.com"
	DefaultUpdateCheckURL = "https://opendnsupdate.appspot.com"
	DefaultProduct        = "dynamicip"
)

// ErrMalformedResponse is returned when a provider reply cannot be parsed.
var ErrMalformedResponse = errors.New("malformed response")

// VersionCheckType is the reason for a software version check.
type VersionCheckType int

const (
	CheckVersion VersionCheckType = iota
	CheckInstall
	CheckUninstall
)

// Code is the single-letter form sent on the wire.
func (t VersionCheckType) Code() string {
	switch t {
	case CheckInstall:
		return "i"
	case CheckUninstall:
		return "u"
	default:
		return "c"
	}
}

func (t VersionCheckType) String() string {
	switch t {
	case CheckInstall:
		return "install"
	case CheckUninstall:
		return "uninstall"
	default:
		return "versioncheck"
	}
}

// VersionCheck describes a software upgrade query.
type VersionCheck struct {
	Version  string
	Type     VersionCheckType
	UniqueID string
	UserName string
}

// UpdateClient talks to the provider's IP update and software update endpoints.
// The zero value uses the default endpoints and http.DefaultClient.
//
// UpdateClient performs no retries; a failed call returns an error and is simply absent until the next tick.
type UpdateClient struct {
	// UpdateURL is the scheme and host of the IP update endpoint.
	UpdateURL string
	// CheckURL is the scheme and host of the software update endpoint.
	CheckURL string
	APIKey   string
	Product  string

	httpClient *http.Client
	logger     *slog.Logger
}

func (c *UpdateClient) SetHTTPClient(hc *http.Client) { c.httpClient = hc }
func (c *UpdateClient) SetLogger(l *slog.Logger)      { c.logger = l }

// SendIPUpdate asks the provider to point hostname at the address the request comes from.
// An empty hostname means the account's default network.
// It returns the first line of the reply; see ParseUpdateResponse.
func (c *UpdateClient) SendIPUpdate(ctx context.Context, token, hostname string) (string, error) {
	if token == "" {
		return "", errors.New("no token")
	}
	q := url.Values{}
	q.Set("token", token)
	q.Set("api_key", c.APIKey)
	q.Set("v", "2")
	q.Set("hostname", hostname)
	u := strings.TrimRight(orDefault(c.UpdateURL, DefaultUpdateURL), "/") + "/nic/update?" + q.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("ip update: %w", err)
	}
	defer body.Close()

	line, err := bufio.NewReader(io.LimitReader(body, 4096)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("ip update: reading response: %w", err)
	}
	c.log().Debug("ip update response", "hostname", hostname, "response", strings.TrimSpace(line))
	return strings.TrimSpace(line), nil
}

type upgradeResponse struct {
	Upgrade  *bool  `json:"upgrade"`
	Download string `json:"download"`
}

// CheckForUpdate asks whether a newer version than check.Version exists.
// It returns the installer download URL, or "" when no upgrade is available.
// A reply that is not the expected JSON yields ErrMalformedResponse.
func (c *UpdateClient) CheckForUpdate(ctx context.Context, check VersionCheck) (string, error) {
	q := url.Values{}
	q.Set("v", check.Version)
	q.Set("t", check.Type.Code())
	q.Set("i", check.UniqueID)
	if check.UserName != "" {
		q.Set("u", check.UserName)
	}
	lang, country := localeParams()
	q.Set("c", country)
	q.Set("l", lang)
	if v := osVersion(); v != "" {
		q.Set("osver", v)
	}
	product := orDefault(c.Product, DefaultProduct)
	u := strings.TrimRight(orDefault(c.CheckURL, DefaultUpdateCheckURL), "/") + "/updatecheck/" + url.PathEscape(product) + "?" + q.Encode()

	body, err := c.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("update check: %w", err)
	}
	defer body.Close()

	var r upgradeResponse
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&r); err != nil {
		return "", fmt.Errorf("update check: %w: %s", ErrMalformedResponse, err)
	}
	if r.Upgrade == nil {
		return "", fmt.Errorf("update check: %w: missing \"upgrade\"", ErrMalformedResponse)
	}
	c.log().Debug("update check response", "type", check.Type, "upgrade", *r.Upgrade, "download", r.Download)
	if !*r.Upgrade {
		return "", nil
	}
	return r.Download, nil
}

// DownloadUpdate saves the installer at rawURL into dir and returns its path.
// The file is named after the last segment of the URL path;
// when a file with that name already exists the download is skipped.
func (c *UpdateClient) DownloadUpdate(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("download: error parsing URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("download: no file name in %q", rawURL)
	}
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); err == nil {
		c.log().Debug("installer already downloaded", "path", target)
		return target, nil
	}

	body, err := c.get(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("download: create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("download: writing %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if err := os.Rename(f.Name(), target); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	c.log().Info("downloaded installer", "path", target)
	return target, nil
}

// get returns the body of a 200 response. The caller closes it.
func (c *UpdateClient) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := c.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	resp, err := httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("http request returned %s", resp.Status)
	}
	return resp.Body, nil
}

func (c *UpdateClient) log() *slog.Logger {
	if c.logger == nil {
		return discard
	}
	return c.logger
}

// removeInstallers deletes previously downloaded installers from dir.
func removeInstallers(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
