package scc

import (
	"bytes"
	"context"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Settings configures the HTTP client against one SCC deployment.
type Settings struct {
	BaseURL      string `yaml:"base_url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	OutputDir    string `yaml:"output_dir"`
	PollInterval int    `yaml:"poll_interval_seconds"`
}

// HTTPClient implements Client over the SCC web API.
type HTTPClient struct {
	settings Settings
	base     *url.URL
	http     *http.Client
	poll     time.Duration
}

// NewHTTPClient builds a client from settings. The session cookie jar is
// created here; Login fills it.
func NewHTTPClient(settings Settings) (*HTTPClient, error) {
	base, err := url.Parse(settings.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing SCC base URL %q", settings.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}

	poll := time.Duration(settings.PollInterval) * time.Second
	if poll <= 0 {
		poll = 30 * time.Second
	}

	return &HTTPClient{
		settings: settings,
		base:     base,
		http: &http.Client{
			Jar:     jar,
			Timeout: 5 * time.Minute,
		},
		poll: poll,
	}, nil
}

func (c *HTTPClient) endpoint(parts ...string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(parts, "/")
	return u.String()
}

// OutputDir implements Client.
func (c *HTTPClient) OutputDir() string {
	return c.settings.OutputDir
}

// Login implements Client.
func (c *HTTPClient) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.settings.Username},
		"password": {c.settings.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("accounts", "login"), strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "building login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "SCC login")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("SCC login rejected with status %s", resp.Status)
	}
	return nil
}

// Exists implements Client.
func (c *HTTPClient) Exists(ctx context.Context, measurementID string) (bool, error) {
	body, status, err := c.get(ctx, c.endpoint("api", "measurements", measurementID))
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= 400 {
		return false, errors.Errorf("SCC measurement query for %s returned %d", measurementID, status)
	}

	return gjson.GetBytes(body, "id").Exists(), nil
}

// Upload implements Client.
func (c *HTTPClient) Upload(ctx context.Context, filePath, systemID string, replace bool) error {
	file, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filePath)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("data", filepath.Base(filePath))
	if err != nil {
		return errors.Wrap(err, "building upload form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return errors.Wrapf(err, "reading %s", filePath)
	}
	writer.WriteField("system", systemID)
	if replace {
		writer.WriteField("replace", "true")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "finalizing upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("measurements", "upload"), &buf)
	if err != nil {
		return errors.Wrap(err, "building upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "uploading to SCC")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("SCC upload returned status %s", resp.Status)
	}
	return nil
}

// Rerun implements Client.
func (c *HTTPClient) Rerun(ctx context.Context, measurementID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("measurements", measurementID, "rerun"), nil)
	if err != nil {
		return errors.Wrap(err, "building rerun request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "triggering rerun of %s", measurementID)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("SCC rerun of %s returned status %s", measurementID, resp.Status)
	}
	return nil
}

// MonitorProcessing implements Client. It polls the measurement status
// until every chain stage leaves the queued/running states, then fetches
// the products on success.
func (c *HTTPClient) MonitorProcessing(ctx context.Context, measurementID string) (ProcessingResult, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		body, status, err := c.get(ctx, c.endpoint("api", "measurements", measurementID, "status"))
		if err != nil {
			return ProcessingResult{}, err
		}
		if status >= 400 {
			return ProcessingResult{}, errors.Errorf("SCC status query for %s returned %d", measurementID, status)
		}

		result := ProcessingResult{
			ELPP: int(gjson.GetBytes(body, "elpp").Int()),
			ELDA: int(gjson.GetBytes(body, "elda").Int()),
		}

		if terminal(result.ELPP) && terminal(result.ELDA) {
			if result.Succeeded() {
				if err := c.downloadProducts(ctx, measurementID); err != nil {
					return result, err
				}
			}
			return result, nil
		}

		log.Printf("[%s] Processing not finished (elpp=%d, elda=%d), polling again in %s",
			measurementID, result.ELPP, result.ELDA, c.poll)

		select {
		case <-ctx.Done():
			return ProcessingResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProductVersion implements Client.
func (c *HTTPClient) ProductVersion(ctx context.Context, measurementID string) (string, error) {
	body, status, err := c.get(ctx, c.endpoint("api", "measurements", measurementID, "version"))
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", errors.Errorf("SCC version query for %s returned %d", measurementID, status)
	}

	version := gjson.GetBytes(body, "scc_version").String()
	if version == "" {
		return "", errors.Errorf("no version descriptor in SCC response for %s", measurementID)
	}
	return version, nil
}

func (c *HTTPClient) downloadProducts(ctx context.Context, measurementID string) error {
	dir := filepath.Join(c.settings.OutputDir, measurementID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating product folder %s", dir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("measurements", measurementID, "download"), nil)
	if err != nil {
		return errors.Wrap(err, "building download request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "downloading products of %s", measurementID)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("SCC download of %s returned status %s", measurementID, resp.Status)
	}

	out, err := os.Create(filepath.Join(dir, "products.zip"))
	if err != nil {
		return errors.Wrap(err, "creating product file")
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return errors.Wrapf(err, "saving products of %s", measurementID)
	}
	return nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrapf(err, "reading response of %s", url)
	}
	return body, resp.StatusCode, nil
}

func terminal(status int) bool {
	return status != StatusNotStarted && status != StatusInProgress
}

var _ Client = (*HTTPClient)(nil)
