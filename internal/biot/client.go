package biot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/onalabs/biotupload/internal/version"
)

// deviceTemplateID is the fixed ONASPORT device template on the platform.
const deviceTemplateID = "0acb3d5b-c70b-4101-b8f7-be17c452fbc5"

// API paths. The searchRequest query strings are sent URL-encoded exactly as
// the manufacturer portal issues them.
const (
	loginPath             = "/ums/v2/users/login"
	organizationsPath     = "/organization/v1/organizations?searchRequest=%7B%22limit%22%3A30%2C%22filter%22%3A%7B%7D%2C%22freeTextSearch%22%3A%22%22%7D"
	rcTemplatesPath       = "/settings/v1/templates/minimized?searchRequest=%7B%22filter%22%3A%7B%22entityTypeName%22%3A%7B%22in%22%3A%5B%22registration-code%22%5D%7D%7D%2C%22limit%22%3A1000%7D"
	deviceTemplatePath    = "/settings/v1/portal-builder/MANUFACTURER_PORTAL/views-full-info/TEMPLATE_EXPAND?entityTypeName=device&templateId=" + deviceTemplateID
	registrationCodesPath = "/organization/v1/registration-codes"
	devicesPath           = "/device/v2/devices"
)

// Client talks to the BioT platform API. Login stores the bearer token; all
// later calls reuse it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	authHeader string // "Bearer <token>" after Login, empty before
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "biotupload/" + version.Version,
	}
}

// APIError is a non-2xx response from the platform
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// GetAPIError extracts APIError from error if possible
func GetAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Login exchanges credentials for a bearer token and keeps the resulting
// Authorization header for all subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var resp loginResponse
	if err := c.post(ctx, loginPath, loginRequest{Username: username, Password: password}, &resp); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.AccessJwt.Token == "" {
		return fmt.Errorf("login: response missing accessJwt.token")
	}

	c.authHeader = "Bearer " + resp.AccessJwt.Token
	logTokenExpiry(resp.AccessJwt.Token)
	return nil
}

// logTokenExpiry peeks at the token's expiry claim without verifying the
// signature. The platform is the verifier; this is informational only.
func logTokenExpiry(token string) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return
	}
	if claims.ExpiresAt != nil {
		log.Printf("Session token expires at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
}

// Organizations fetches the organization list (limit-30 query).
func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	var resp organizationList
	if err := c.get(ctx, organizationsPath, &resp); err != nil {
		return nil, fmt.Errorf("organizations: %w", err)
	}
	return resp.Data, nil
}

// RegistrationCodeTemplateID returns the id of the first registration-code
// template the platform reports. The platform may list several; the first is
// selected deterministically.
func (c *Client) RegistrationCodeTemplateID(ctx context.Context) (string, error) {
	var resp templateList
	if err := c.get(ctx, rcTemplatesPath, &resp); err != nil {
		return "", fmt.Errorf("registration-code templates: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("registration-code templates: empty template list")
	}
	return resp.Data[0].ID, nil
}

// DeviceTemplateID resolves the fixed ONASPORT device template.
func (c *Client) DeviceTemplateID(ctx context.Context) (string, error) {
	var resp deviceTemplateResponse
	if err := c.get(ctx, deviceTemplatePath, &resp); err != nil {
		return "", fmt.Errorf("device template: %w", err)
	}
	if resp.Template.ID == "" {
		return "", fmt.Errorf("device template: response missing template.id")
	}
	return resp.Template.ID, nil
}

// CreateRegistrationCode creates a registration-code entity owned by the
// given organization and returns the created entity's id.
func (c *Client) CreateRegistrationCode(ctx context.Context, ownerID *string, code, templateID string) (string, error) {
	req := registrationCodeRequest{
		OwnerOrganization: OwnerOrganization{ID: ownerID},
		Code:              code,
		TemplateID:        templateID,
	}
	var resp registrationCodeResponse
	if err := c.post(ctx, registrationCodesPath, req, &resp); err != nil {
		return "", fmt.Errorf("create registration code: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create registration code: response missing _id")
	}
	return resp.ID, nil
}

// CreateDevice creates a device entity linked to the registration code. The
// serial number is used as the device's primary identifier.
func (c *Client) CreateDevice(ctx context.Context, ownerID *string, registrationCodeID, templateID string, spec DeviceSpec) error {
	req := deviceRequest{
		OwnerOrganization: OwnerOrganization{ID: ownerID},
		RegistrationCode:  entityRef{ID: registrationCodeID},
		ID:                spec.SerialNumber,
		Description:       spec.Description,
		DeviceVersion:     spec.DeviceVersion,
		TemplateID:        templateID,
	}
	if err := c.post(ctx, devicesPath, req, nil); err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// do performs one request. Non-2xx responses become *APIError with the body
// captured for logging; decode failures wrap the underlying error.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request error: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response error: %w", err)
	}
	return nil
}
