// Package lms uploads built packages into a Chamilo LMS through its web
// interface: form login, course discovery, and a multipart import into the
// Learning Path tool. Chamilo 1.11.x exposes no usable upload API, so the
// client drives the same forms a browser would.
package lms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig indicates missing connection settings. Raised before
	// any network traffic.
	ErrInvalidConfig = errors.New("lms: invalid configuration")

	// ErrUnavailable indicates the LMS could not be reached.
	ErrUnavailable = errors.New("lms: server unavailable")

	// ErrAuthFailed indicates the login form rejected the credentials.
	ErrAuthFailed = errors.New("lms: authentication failed")

	// ErrNoCourses indicates no course could be discovered for the account.
	ErrNoCourses = errors.New("lms: no courses available")

	// ErrUploadFailed indicates the import did not complete.
	ErrUploadFailed = errors.New("lms: upload failed")
)

// Params configures a Client.
type Params struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client drives one Chamilo instance. Each client owns a cookie session;
// construct a fresh one per operation from the current settings snapshot.
type Client struct {
	baseURL  string
	username string
	password string

	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. Missing URL or credentials fail locally with
// ErrInvalidConfig so callers never issue doomed network requests.
func New(p Params, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base_url required", ErrInvalidConfig)
	}
	if strings.TrimSpace(p.Username) == "" {
		return nil, fmt.Errorf("%w: username required", ErrInvalidConfig)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("%w: password required", ErrInvalidConfig)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	return &Client{
		baseURL:  baseURL,
		username: strings.TrimSpace(p.Username),
		password: p.Password,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		logger: logger.With("system", "lms"),
	}, nil
}

// NewWithHTTPClient is intended for tests. The provided client must carry a
// cookie jar for the login session to hold.
func NewWithHTTPClient(p Params, logger *slog.Logger, httpClient *http.Client) (*Client, error) {
	c, err := New(p, logger)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		if httpClient.Jar == nil {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, fmt.Errorf("cookie jar: %w", err)
			}
			httpClient.Jar = jar
		}
		c.httpClient = httpClient
	}
	return c, nil
}

// TestConnection performs a login round-trip and nothing else.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.login(ctx)
}

// ListCourses returns the course codes visible to the account, primary
// portal page first, course catalog as fallback.
func (c *Client) ListCourses(ctx context.Context) ([]string, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.baseURL+"/user_portal.php")
	if err == nil {
		if codes := findCourseCodes(body); len(codes) > 0 {
			return codes, nil
		}
	}

	body, err = c.get(ctx, c.baseURL+"/main/auth/courses.php")
	if err != nil {
		return nil, err
	}
	if codes := findCatalogCodes(body); len(codes) > 0 {
		return codes, nil
	}

	return nil, ErrNoCourses
}

// Upload imports a SCORM zip into the course's Learning Path tool. An empty
// courseCode selects the first discoverable course.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, courseCode string) (string, error) {
	if err := c.login(ctx); err != nil {
		return "", err
	}

	courseCode = strings.TrimSpace(courseCode)
	if courseCode == "" {
		codes, err := c.ListCourses(ctx)
		if err != nil {
			return "", err
		}
		courseCode = codes[0]
	}

	c.logger.Info("uploading package", "filename", filename, "course", courseCode)

	formURL := fmt.Sprintf(
		"%s/main/upload/index.php?cidReq=%s&id_session=0&gidReq=0&gradebook=0&origin=&curdirpath=/&tool=learnpath",
		c.baseURL, url.QueryEscape(courseCode))

	formBody, err := c.get(ctx, formURL)
	if err != nil {
		return "", err
	}

	uploadURL := c.resolveUploadURL(formBody, courseCode)
	hidden := findHiddenFields(formBody)

	respURL, respBody, err := c.postMultipart(ctx, uploadURL, filename, data, hidden)
	if err != nil {
		return "", err
	}

	if !uploadSucceeded(respURL, respBody) {
		return "", fmt.Errorf("%w: course %s did not accept the package", ErrUploadFailed, courseCode)
	}

	c.logger.Info("package uploaded", "filename", filename, "course", courseCode)
	return courseCode, nil
}

// login authenticates through the Chamilo login form, scraping the CSRF
// token from the login page first.
func (c *Client) login(ctx context.Context) error {
	loginURL := c.baseURL + "/index.php"

	page, err := c.get(ctx, loginURL)
	if err != nil {
		return err
	}

	form := url.Values{
		"login":      {c.username},
		"password":   {c.password},
		"submitAuth": {"1"},
	}
	if token := findCSRFToken(page); token != "" {
		form.Set("sec_token", token)
		form.Set("_token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if loginSucceeded(resp.Request.URL.String(), string(body), c.username) {
		c.logger.Debug("login succeeded", "user", c.username)
		return nil
	}

	return ErrAuthFailed
}

func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %s returned %d", ErrUnavailable, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return string(body), nil
}

// resolveUploadURL prefers the form's own action attribute; Chamilo builds
// it with the session parameters baked in. Falls back to the canonical
// upload endpoint.
func (c *Client) resolveUploadURL(formBody, courseCode string) string {
	if action := findFormAction(formBody); action != "" {
		switch {
		case strings.HasPrefix(action, "http"):
			return action
		case strings.HasPrefix(action, "/"):
			if u, err := url.Parse(c.baseURL); err == nil {
				return u.Scheme + "://" + u.Host + action
			}
		default:
			return c.baseURL + "/main/upload/" + action
		}
	}
	return fmt.Sprintf(
		"%s/main/upload/upload.php?cidReq=%s&id_session=0&gidReq=0&gradebook=0&origin=",
		c.baseURL, url.QueryEscape(courseCode))
}

func (c *Client) postMultipart(ctx context.Context, rawURL, filename string, data []byte, hidden map[string]string) (string, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"submit":        "Upload",
		"use_max_score": "1",
		"curdirpath":    "/",
		"tool":          "learnpath",
		"MAX_FILE_SIZE": fmt.Sprintf("%d", max(int64(len(data))*2, 100_000_000)),
	}
	for k, v := range hidden {
		fields[k] = v
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
	}

	fw, err := mw.CreateFormFile("user_file", filename)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return "", "", fmt.Errorf("%w: upload returned %d", ErrUploadFailed, resp.StatusCode)
	}

	return resp.Request.URL.String(), string(body), nil
}
