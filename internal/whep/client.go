package whep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pion/logging"

	"github.com/mpromonet/go-whep-play/internal/domain"
)

const (
	contentTypeSDP     = "application/sdp"
	contentTypeTrickle = "application/trickle-ice-sdpfrag"

	// bodySnippetLimit bounds how much of an error body is kept for messages.
	bodySnippetLimit = 256
)

// Client talks WHEP to a single endpoint over plain HTTP.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
	log      logging.LeveledLogger
}

// Config configures a Client.
type Config struct {
	// Endpoint is the WHEP endpoint URL offers are posted to.
	Endpoint string
	// Token, when set, is sent as a bearer token on every request.
	Token string
	// HTTPClient overrides the HTTP client used for all exchanges.
	HTTPClient *http.Client
	// LoggerFactory overrides the default logger factory.
	LoggerFactory logging.LoggerFactory
}

// NewClient validates the endpoint URL and builds a client.
func NewClient(config Config) (*Client, error) {
	u, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint url %q is not an absolute http url", config.Endpoint)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	loggerFactory := config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	return &Client{
		endpoint: u,
		token:    config.Token,
		http:     httpClient,
		log:      loggerFactory.NewLogger("whep"),
	}, nil
}

// CreateSession posts the SDP offer to the endpoint. On 201 Created the
// answer body and the resolved Location header become the session handle,
// along with the entity tag and any advertised ICE servers.
func (c *Client) CreateSession(ctx context.Context, offerSDP string) (*domain.SessionHandle, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint.String(), contentTypeSDP, offerSDP)
	if err != nil {
		return nil, err
	}
	resp, body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, rejected(resp.StatusCode, body)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, errors.New("whep: create response has no Location header")
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("parse Location header: %w", err)
	}

	handle := &domain.SessionHandle{
		ResourceURL: c.endpoint.ResolveReference(ref).String(),
		ETag:        resp.Header.Get("ETag"),
		AnswerSDP:   string(body),
		ICEServers:  parseLinkICEServers(resp.Header.Values("Link")),
	}
	c.log.Infof("session created: %s", handle.ResourceURL)
	return handle, nil
}

// Trickle patches an ICE candidate fragment into the session resource.
func (c *Client) Trickle(ctx context.Context, handle *domain.SessionHandle, fragment string) error {
	if handle == nil || handle.ResourceURL == "" {
		return errors.New("whep: no session resource")
	}
	req, err := c.newRequest(ctx, http.MethodPatch, handle.ResourceURL, contentTypeTrickle, fragment)
	if err != nil {
		return err
	}
	if handle.ETag != "" {
		req.Header.Set("If-Match", handle.ETag)
	}
	resp, body, err := c.send(req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return domain.ErrResourceGone
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return domain.ErrTrickleUnsupported
	default:
		return rejected(resp.StatusCode, body)
	}
}

// Renegotiate patches a new offer into the session resource and returns
// the new answer.
func (c *Client) Renegotiate(ctx context.Context, handle *domain.SessionHandle, offerSDP string) (string, error) {
	if handle == nil || handle.ResourceURL == "" {
		return "", errors.New("whep: no session resource")
	}
	req, err := c.newRequest(ctx, http.MethodPatch, handle.ResourceURL, contentTypeSDP, offerSDP)
	if err != nil {
		return "", err
	}
	resp, body, err := c.send(req)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return string(body), nil
	case http.StatusNotFound, http.StatusGone:
		return "", domain.ErrResourceGone
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return "", domain.ErrRenegotiationUnsupported
	default:
		return "", rejected(resp.StatusCode, body)
	}
}

// Terminate deletes the session resource. A resource that is already gone
// counts as deleted.
func (c *Client) Terminate(ctx context.Context, handle *domain.SessionHandle) error {
	if handle == nil || handle.ResourceURL == "" {
		return nil
	}
	req, err := c.newRequest(ctx, http.MethodDelete, handle.ResourceURL, "", "")
	if err != nil {
		return err
	}
	resp, body, err := c.send(req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusGone:
		c.log.Debugf("session resource deleted")
		return nil
	default:
		return rejected(resp.StatusCode, body)
	}
}

func (c *Client) newRequest(ctx context.Context, method, target, contentType, body string) (*http.Request, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	c.log.Debugf(">>> %s %s (%d bytes)", req.Method, req.URL, req.ContentLength)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &domain.TransportError{Err: err}
	}
	c.log.Debugf("<<< %d (%d bytes)", resp.StatusCode, len(body))
	return resp, body, nil
}

func rejected(code int, body []byte) error {
	s := strings.TrimSpace(string(body))
	if len(s) > bodySnippetLimit {
		s = s[:bodySnippetLimit]
	}
	return &domain.RejectedError{Code: code, Body: s}
}
