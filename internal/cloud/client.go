package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veluxhome/lumen-core/internal/infrastructure/config"
)

// maxResponseBytes caps response body reads. Device fleets are small; a
// larger body indicates a broken upstream, not real data.
const maxResponseBytes = 4 << 20 // 4MB

// API paths relative to the configured base URL.
const (
	pathDevices   = "/user/devices"
	pathState     = "/device/state"
	pathControl   = "/device/control"
	pathScenes    = "/device/scenes"
	pathDIYScenes = "/device/diy-scenes"
)

// Logger defines the logging interface the client requires.
// Matches the logging package's Logger, allowing no-op substitution in tests.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log messages.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Client talks to the device cloud API.
//
// Every method acquires the shared RateLimiter before issuing a request and
// classifies failures into the package's sentinel errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *RateLimiter
	logger     Logger
}

// NewClient creates a cloud API client.
//
// Parameters:
//   - cfg: Cloud section of the application configuration
//   - limiter: Shared admission gate; required
//   - logger: Logger for request diagnostics (nil for no logging)
func NewClient(cfg config.CloudConfig, limiter *RateLimiter, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: limiter,
		logger:  logger,
	}
}

// RateLimiter returns the shared admission gate, for observability surfaces.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// ListDevices fetches the account's device list.
//
// Returns:
//   - []DeviceInfo: All devices, including group pseudo-devices
//   - error: Classified sentinel error on failure
func (c *Client) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	body, err := c.do(ctx, http.MethodGet, pathDevices, nil)
	if err != nil {
		return nil, err
	}

	var resp deviceListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: device list: %s", ErrMalformedResponse, err)
	}

	c.logger.Debug("device list fetched", "count", len(resp.Data))
	return resp.Data, nil
}

// GetDeviceState queries the current state of one device.
//
// Parameters:
//   - deviceID: Cloud device identifier (MAC-style)
//   - sku: Product model, required by the cloud alongside the ID
func (c *Client) GetDeviceState(ctx context.Context, deviceID, sku string) (*DeviceStateInfo, error) {
	req := requestEnvelope{
		RequestID: uuid.NewString(),
		Payload:   deviceRequestPayload{SKU: sku, Device: deviceID},
	}

	body, err := c.do(ctx, http.MethodPost, pathState, req)
	if err != nil {
		return nil, err
	}

	var resp stateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: device state: %s", ErrMalformedResponse, err)
	}

	return &resp.Payload, nil
}

// SendCommand issues one capability command to a device.
//
// The cloud acknowledges acceptance, not completion; the device applies the
// command asynchronously.
func (c *Client) SendCommand(ctx context.Context, deviceID, sku string, capability CapabilityCommand) error {
	req := requestEnvelope{
		RequestID: uuid.NewString(),
		Payload: controlRequestPayload{
			SKU:        sku,
			Device:     deviceID,
			Capability: capability,
		},
	}

	body, err := c.do(ctx, http.MethodPost, pathControl, req)
	if err != nil {
		return err
	}

	var resp controlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: control: %s", ErrMalformedResponse, err)
	}

	c.logger.Debug("command accepted",
		"device", deviceID,
		"instance", capability.Instance,
	)
	return nil
}

// ListScenes fetches the dynamic scenes available to a device.
func (c *Client) ListScenes(ctx context.Context, deviceID, sku string) ([]Scene, error) {
	return c.fetchScenes(ctx, pathScenes, deviceID, sku)
}

// ListDIYScenes fetches the user-authored DIY scenes available to a device.
func (c *Client) ListDIYScenes(ctx context.Context, deviceID, sku string) ([]Scene, error) {
	return c.fetchScenes(ctx, pathDIYScenes, deviceID, sku)
}

// fetchScenes queries one of the scene list endpoints and flattens the
// capability options into Scene values.
func (c *Client) fetchScenes(ctx context.Context, path, deviceID, sku string) ([]Scene, error) {
	req := requestEnvelope{
		RequestID: uuid.NewString(),
		Payload:   deviceRequestPayload{SKU: sku, Device: deviceID},
	}

	body, err := c.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return nil, err
	}

	var resp sceneResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: scenes: %s", ErrMalformedResponse, err)
	}

	var scenes []Scene
	for _, capability := range resp.Payload.Capabilities {
		if capability.Parameters == nil {
			continue
		}
		for _, opt := range capability.Parameters.Options {
			scenes = append(scenes, Scene{Name: opt.Name, Value: opt.Value})
		}
	}
	return scenes, nil
}

// do executes one request: acquire the rate limiter, send, classify the
// status, adopt quota headers, and return the raw body for decoding.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquiring rate limit slot: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Govee-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	c.adoptQuotaHeaders(resp)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %s", ErrTransient, err)
	}
	return body, nil
}

// adoptQuotaHeaders feeds server-reported quota values into the limiter.
// Present on every response, not just 429s.
func (c *Client) adoptQuotaHeaders(resp *http.Response) {
	perMinute := headerInt(resp, headerRateLimitMinute)
	perDay := headerInt(resp, headerRateLimitDay)
	if perMinute > 0 || perDay > 0 {
		c.limiter.UpdateLimits(perMinute, perDay)
	}
}

// headerInt parses an integer header, returning 0 when absent or invalid.
func headerInt(resp *http.Response, name string) int {
	v := resp.Header.Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// classifyStatus maps an HTTP status to a sentinel error.
// Classification is by status code only; response messages vary and are
// never matched.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthFailed, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, status)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrTransient, status)
	}
}
