package builtin

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

var certificateExpiry = probe.Definition{
	Name:        "CertificateExpiry",
	Label:       "Certificate expiry",
	Description: "Checks an SSL certificate is not about to expire.",
	Interval:    time.Hour,
	Check:       checkCertificate,
	Prepare:     inheritDomain,
}

// now 可在测试中替换
var now = time.Now

func checkCertificate(ctx context.Context, kw probe.Kwargs) (result.Result, error) {
	domain := kw.String("domain", "")
	margin := kw.Duration("margin", 14*24*time.Hour)
	addr := net.JoinHostPort(domain, strconv.Itoa(kw.Int("port", 443)))

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 5 * time.Second},
		Config:    &tls.Config{ServerName: domain, InsecureSkipVerify: kw.Bool("insecure", false)},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return result.Result{}, err
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return result.Result{}, errors.New("no peer certificate")
	}
	remaining := certs[0].NotAfter.Sub(now())
	human := probe.HumanDuration(remaining)
	reason := fmt.Sprintf("SSL certificate expires in %s", human)
	if remaining > margin {
		return result.Healthy().WithReason(reason).WithValue(human), nil
	}
	return result.Unhealthy(reason).WithValue(human), nil
}
