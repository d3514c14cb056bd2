package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// WebhookNotifier 以签名 JSON POST 发送告警
//
// 签名头：X-Api-Key / X-Timestamp / X-Nonce / X-Signature，
// 签名为 HMAC-SHA256(secret, "POST\n<path>\n<ts>\n<nonce>\n<sha256(body)>") 的 hex。
type WebhookNotifier struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Secret   string
	Retries  int
	Backoff  []time.Duration
}

// NewWebhookNotifier 创建 webhook 通道
func NewWebhookNotifier(client *http.Client, endpoint, apiKey, secret string) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &WebhookNotifier{
		Client:   client,
		Endpoint: endpoint,
		APIKey:   apiKey,
		Secret:   secret,
		Retries:  3,
		Backoff:  []time.Duration{200 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

type webhookPayload struct {
	Message
	Nonce string `json:"nonce"`
}

// Notify 实现 Notifier；5xx 与网络错误重试，4xx 直接失败
func (w *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if w == nil || w.Client == nil {
		return errors.New("nil webhook notifier")
	}
	u, err := url.Parse(w.Endpoint)
	if err != nil {
		return fmt.Errorf("parse webhook endpoint: %w", err)
	}
	nonce := fmt.Sprintf("%08x", rand.Uint32())
	body, err := json.Marshal(webhookPayload{Message: msg, Nonce: nonce})
	if err != nil {
		return err
	}
	ts := time.Now().Unix()
	sig := SignHMAC(w.Secret, buildCanonical(http.MethodPost, u.Path, ts, nonce, hashHex(body)))

	var lastErr error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", w.APIKey)
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Nonce", nonce)

		resp, err := w.Client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("webhook http %d", resp.StatusCode)
			if resp.StatusCode < 500 {
				return lastErr
			}
		}
		if attempt == w.Retries {
			break
		}
		// Backoff 为空时立即重试
		var backoff time.Duration
		if len(w.Backoff) > 0 {
			backoff = w.Backoff[min(attempt, len(w.Backoff)-1)]
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

// buildCanonical 构建 canonical string: method\npath\ntimestamp\nnonce\nbodySha256Hex
func buildCanonical(method, path string, ts int64, nonce, bodyHex string) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s\n%s", strings.ToUpper(method), path, ts, nonce, bodyHex)
}

func hashHex(body []byte) string {
	h := sha256.Sum256(body)
	return hex.EncodeToString(h[:])
}

// SignHMAC 生成 HMAC-SHA256 签名（hex）
func SignHMAC(secret string, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
