package builtin

import (
	"context"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

var portCheck = probe.Definition{
	Name:        "PortCheck",
	Label:       "Internet connection",
	Description: "Checks a given port is listening.",
	Interval:    10 * time.Minute,
	Check:       checkPort,
	Prepare: func(_ probe.Target, kw probe.Kwargs) error {
		if err := required(kw, "host"); err != nil {
			return err
		}
		return required(kw, "port")
	},
}

func checkPort(ctx context.Context, kw probe.Kwargs) (result.Result, error) {
	addr := net.JoinHostPort(kw.String("host", ""), strconv.Itoa(kw.Int("port", 0)))
	d := net.Dialer{Timeout: kw.Duration("timeout", 5*time.Second)}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return result.Unhealthy("Network is down").WithValue("Offline"), nil
	}
	_ = conn.Close()
	return result.Healthy().WithReason("Network is responding").WithValue("Online"), nil
}

var dnsResolve = probe.Definition{
	Name:        "DnsResolve",
	Label:       "DNS record integrity",
	Description: "Checks a hostname resolves to a particular IP.",
	Interval:    10 * time.Minute,
	Check:       checkDNS,
	Prepare: func(t probe.Target, kw probe.Kwargs) error {
		if err := inheritDomain(t, kw); err != nil {
			return err
		}
		return required(kw, "expected_ip")
	},
}

// resolver 可在测试中替换
var resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
} = net.DefaultResolver

func checkDNS(ctx context.Context, kw probe.Kwargs) (result.Result, error) {
	addrs, err := resolver.LookupHost(ctx, kw.String("domain", ""))
	if err != nil {
		return result.Result{}, err
	}
	if slices.Contains(addrs, kw.String("expected_ip", "")) {
		return result.Healthy().WithReason("Resolved IP matches expected IP"), nil
	}
	return result.Unhealthy("Resolved IP does not match expected IP"), nil
}
