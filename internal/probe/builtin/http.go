package builtin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

const userAgent = "Mozilla/5.0 (compatible; healthportal)"

var errRedirectLoop = errors.New("redirect loop")

type httpParams struct {
	URL        string        `kw:"url"`
	StatusCode int           `kw:"status_code"`
	Timeout    time.Duration `kw:"timeout"`
	Contains   string        `kw:"contains"`
	ClientCert string        `kw:"client_crt"`
	ClientKey  string        `kw:"client_key"`
}

var httpStatus = probe.Definition{
	Name:        "HttpStatus",
	Label:       "Page load",
	Description: "Checks the service answers with the expected HTTP status.",
	Check:       checkHTTPStatus,
	Prepare:     inheritURL,
}

// retryDelay 连接类错误后的二次确认间隔（过滤本地网络抖动）
var retryDelay = time.Second

func checkHTTPStatus(ctx context.Context, kw probe.Kwargs) (result.Result, error) {
	p := httpParams{StatusCode: http.StatusOK, Timeout: 10 * time.Second}
	if err := kw.Decode(&p); err != nil {
		return result.Result{}, err
	}
	if p.URL == "" {
		return result.Result{}, fmt.Errorf("%w: url", errMissingParam)
	}

	client, err := newHTTPClient(p)
	if err != nil {
		return result.Result{}, err
	}

	resp, body, err := fetch(ctx, client, p.URL)
	if err != nil {
		select {
		case <-ctx.Done():
			return result.Result{}, ctx.Err()
		case <-time.After(retryDelay):
		}
		resp, body, err = fetch(ctx, client, p.URL)
		if err != nil {
			return result.Unhealthy(classifyHTTPError(err)), nil
		}
	}

	if resp.StatusCode != p.StatusCode {
		if resp.StatusCode == http.StatusOK {
			return result.Unhealthy("Unexpected 200 OK received").WithValue(resp.StatusCode), nil
		}
		reason := http.StatusText(resp.StatusCode)
		if reason == "" {
			reason = resp.Status
		}
		return result.Unhealthy(reason).WithValue(resp.StatusCode), nil
	}
	if p.Contains != "" && !strings.Contains(body, p.Contains) {
		return result.Unhealthy("Unexpected page content despite correct HTTP status").WithValue(resp.StatusCode), nil
	}
	return result.Healthy().WithValue(resp.StatusCode), nil
}

func newHTTPClient(p httpParams) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(p.ClientCert, p.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	return &http.Client{
		Timeout:   p.Timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errRedirectLoop
			}
			return nil
		},
	}, nil
}

func fetch(ctx context.Context, client *http.Client, url string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, "", err
	}
	return resp, string(b), nil
}

func classifyHTTPError(err error) string {
	var (
		unknownAuth x509.UnknownAuthorityError
		invalidCert x509.CertificateInvalidError
		hostErr     x509.HostnameError
		verifyErr   *tls.CertificateVerificationError
		netErr      net.Error
		opErr       *net.OpError
	)
	switch {
	case errors.Is(err, errRedirectLoop):
		return "Redirect loop detected"
	case errors.As(err, &verifyErr), errors.As(err, &unknownAuth),
		errors.As(err, &invalidCert), errors.As(err, &hostErr):
		return "Failed to verify SSL connection"
	case errors.As(err, &netErr) && netErr.Timeout():
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return "Connection timed out"
		}
		return "Read timed out"
	default:
		return "Connection failed"
	}
}
