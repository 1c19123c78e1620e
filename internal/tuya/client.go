package tuya

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jgoulah/tuyalogger/pkg/models"
)

// energyDatapoint is the device status code holding cumulative forward energy
const energyDatapoint = "forward_energy_total"

// energyScale converts the device's raw value (hundredths of a kWh) to kWh
const energyScale = 100.0

// APIError represents an error response from the Tuya OpenAPI
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tuya api error %d: %s", e.Code, e.Message)
}

// Client is a minimal Tuya OpenAPI client. It performs the signed token
// handshake and device status queries needed to read a smart meter.
type Client struct {
	endpoint  string
	accessID  string
	accessKey string
	client    *http.Client
	log       zerolog.Logger

	token       string
	tokenExpiry time.Time
}

// NewClient creates a Tuya API client for the given region endpoint
func NewClient(endpoint, accessID, accessKey string, log zerolog.Logger) *Client {
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		accessID:  accessID,
		accessKey: accessKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

// envelope is the common Tuya response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
}

// tokenResult is the /v1.0/token response payload
type tokenResult struct {
	AccessToken string `json:"access_token"`
	ExpireTime  int    `json:"expire_time"` // seconds
}

// datapoint is one entry of a device status response
type datapoint struct {
	Code  string          `json:"code"`
	Value json.RawMessage `json:"value"`
}

// GetEnergyReading fetches the meter's cumulative forward energy and stamps
// it with the current UTC time
func (c *Client) GetEnergyReading(ctx context.Context, deviceID string) (*models.Reading, error) {
	points, err := c.DeviceStatus(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	raw, ok := points[energyDatapoint]
	if !ok {
		codes := make([]string, 0, len(points))
		for code := range points {
			codes = append(codes, code)
		}
		return nil, fmt.Errorf("%s not found in device status (available: %s)", energyDatapoint, strings.Join(codes, ", "))
	}

	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("parsing %s value %q: %w", energyDatapoint, string(raw), err)
	}

	return &models.Reading{
		Timestamp:        time.Now().UTC().Truncate(time.Second),
		ForwardEnergyKWh: value / energyScale,
	}, nil
}

// DeviceStatus returns the device's current datapoints keyed by code
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (map[string]json.RawMessage, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	var result []datapoint
	path := fmt.Sprintf("/v1.0/devices/%s/status", deviceID)
	if err := c.get(ctx, path, true, &result); err != nil {
		return nil, fmt.Errorf("querying device status: %w", err)
	}

	points := make(map[string]json.RawMessage, len(result))
	for _, dp := range result {
		points[dp.Code] = dp.Value
	}
	return points, nil
}

// ensureToken obtains an access token if none is cached or the cached one
// is about to expire
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	var result tokenResult
	if err := c.get(ctx, "/v1.0/token?grant_type=1", false, &result); err != nil {
		return fmt.Errorf("requesting token: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("token response contained no access_token")
	}

	c.token = result.AccessToken
	// Renew a minute early so in-flight requests don't race expiry
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpireTime)*time.Second - time.Minute)
	c.log.Debug().Time("expiry", c.tokenExpiry).Msg("obtained access token")
	return nil
}

// get performs a signed GET request against the Tuya API and unmarshals the
// result payload. authed requests carry the cached access token.
func (c *Client) get(ctx context.Context, path string, authed bool, out interface{}) error {
	if authed {
		if err := c.ensureToken(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	token := ""
	if authed {
		token = c.token
	}
	c.sign(req, path, token)

	c.log.Debug().Str("path", path).Msg("tuya api request")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	c.log.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("tuya api response")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if !env.Success {
		return &APIError{Code: env.Code, Message: env.Msg}
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("parsing result payload: %w", err)
		}
	}
	return nil
}

// sign attaches the Tuya OpenAPI v2 HMAC-SHA256 signature headers. The
// string to sign covers the method, a SHA256 of the (empty) body and the
// request path; token requests omit the access token from the HMAC input.
func (c *Client) sign(req *http.Request, path string, token string) {
	t := fmt.Sprintf("%d", time.Now().UnixMilli())
	nonce := uuid.NewString()

	bodyHash := sha256.Sum256(nil)
	stringToSign := req.Method + "\n" + hex.EncodeToString(bodyHash[:]) + "\n" + "\n" + path

	mac := hmac.New(sha256.New, []byte(c.accessKey))
	mac.Write([]byte(c.accessID + token + t + nonce + stringToSign))
	signature := strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))

	req.Header.Set("client_id", c.accessID)
	req.Header.Set("t", t)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign_method", "HMAC-SHA256")
	req.Header.Set("sign", signature)
	if token != "" {
		req.Header.Set("access_token", token)
	}
}
