package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// Client talks to the ATP ToPay gateway. It is deliberately conservative:
// secrets are never logged, and when the gateway env is not configured it
// degrades to a mock QR code so the deposit flow stays demoable.
//
// Signing: filter empty values, sort keys ascending, join as k=v&...,
// HMAC-SHA256 hex. The notification verifier is the mirror image.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Logger
}

type Config struct {
	BaseURL      string
	MerchantID   string
	OrderSecret  string
	NotifySecret string
	NotifyURL    string
}

// ConfigFromEnv reads gateway settings from viper-bound env.
func ConfigFromEnv() Config {
	viper.SetDefault("atp.base_url", "https://atptopay.atptrade.site")
	return Config{
		BaseURL:      viper.GetString("atp.base_url"),
		MerchantID:   viper.GetString("atp.merchant_id"),
		OrderSecret:  viper.GetString("atp.order_secret"),
		NotifySecret: viper.GetString("atp.notify_secret"),
		NotifyURL:    viper.GetString("atp.notify_url"),
	}
}

func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://atptopay.atptrade.site"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

func (c *Client) configured() bool {
	return c.cfg.MerchantID != "" && c.cfg.OrderSecret != ""
}

func sign(payload map[string]string, secret string) string {
	keys := make([]string, 0, len(payload))
	for k, v := range payload {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+payload[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyResult is what the money-movement core consumes; it never sees
// signatures or secrets.
type VerifyResult struct {
	Verified bool
	Reason   string
}

// VerifyNotify checks the signature on an asynchronous payment notification.
// With no secret configured the notification is accepted but marked
// unverified; the settlement layer will not move money on it.
func (c *Client) VerifyNotify(payload map[string]string) VerifyResult {
	secret := c.cfg.OrderSecret
	if secret == "" {
		secret = c.cfg.NotifySecret
	}
	if secret == "" {
		return VerifyResult{Verified: false, Reason: "notify secret not configured"}
	}

	provided := payload["sign"]
	if provided == "" {
		provided = payload["signature"]
	}
	if provided == "" {
		return VerifyResult{Verified: false, Reason: "missing signature"}
	}

	toSign := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == "sign" || k == "signature" {
			continue
		}
		toSign[k] = v
	}

	expected := sign(toSign, secret)
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return VerifyResult{Verified: false, Reason: "bad signature"}
	}
	return VerifyResult{Verified: true}
}

// Notify is a parsed, verification-stamped payment notification.
type Notify struct {
	OutTradeNo string
	TradeNo    string
	Amount     decimal.Decimal
	Currency   string
	Verified   bool
	Reason     string
}

// FlattenPayload stringifies a decoded JSON object for signing. Decode the
// request with json.Decoder.UseNumber so amounts round-trip exactly.
func FlattenPayload(payload map[string]any) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			if val {
				out[k] = "true"
			} else {
				out[k] = "false"
			}
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

type FetchQrcodeInput struct {
	OutTradeNo string
	Amount     decimal.Decimal
	Currency   string
	Subject    string
}

type FetchQrcodeResult struct {
	OK          bool            `json:"ok"`
	Mock        bool            `json:"mock,omitempty"`
	QrcodeURL   string          `json:"qrcode_url,omitempty"`
	QrcodeImage string          `json:"qrcode_image,omitempty"` // base64 PNG data URI
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// FetchQrcode requests a payment QR code for a deposit order. In mock mode
// the QR image is generated locally so the flow works without gateway creds.
func (c *Client) FetchQrcode(ctx context.Context, in FetchQrcodeInput) (*FetchQrcodeResult, error) {
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = "CNY"
	}

	if !c.configured() {
		url := "https://example.com/mock-qrcode?outTradeNo=" + in.OutTradeNo
		png, err := qrcode.Encode(url, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode mock qrcode: %w", err)
		}
		return &FetchQrcodeResult{
			OK:          true,
			Mock:        true,
			QrcodeURL:   url,
			QrcodeImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		}, nil
	}

	subject := in.Subject
	if subject == "" {
		subject = "deposit"
	}

	payload := map[string]string{
		"merchantId": c.cfg.MerchantID,
		"outTradeNo": in.OutTradeNo,
		"amount":     in.Amount.StringFixed(2),
		"currency":   currency,
		"subject":    subject,
		"notifyUrl":  c.cfg.NotifyURL,
		"ts":         fmt.Sprintf("%d", time.Now().UnixMilli()),
	}

	body := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["sign"] = sign(payload, c.cfg.OrderSecret)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal qrcode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/payment/Out/fetchQrcode", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build qrcode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		QrcodeURL  string `json:"qrcodeUrl"`
		QrcodeURL2 string `json:"qrcode_url"`
		URL        string `json:"url"`
		Data       struct {
			QrcodeURL  string `json:"qrcodeUrl"`
			QrcodeURL2 string `json:"qrcode_url"`
			URL        string `json:"url"`
		} `json:"data"`
	}
	var rawBody json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rawBody); err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		c.log.WithField("status", resp.StatusCode).Warn("gateway returned non-JSON-object qrcode response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.WithField("status", resp.StatusCode).Warn("gateway fetchQrcode failed")
		return &FetchQrcodeResult{OK: false, Raw: rawBody}, nil
	}

	// Vendors disagree on the field name; try the common shapes.
	qrcodeURL := parsed.Data.QrcodeURL
	for _, candidate := range []string{parsed.Data.QrcodeURL2, parsed.Data.URL, parsed.QrcodeURL, parsed.QrcodeURL2, parsed.URL} {
		if qrcodeURL != "" {
			break
		}
		qrcodeURL = candidate
	}

	return &FetchQrcodeResult{OK: true, QrcodeURL: qrcodeURL, Raw: rawBody}, nil
}
