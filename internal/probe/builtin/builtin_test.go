package builtin

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/healthportal/internal/buildinfo"
	"github.com/taoyao-code/healthportal/internal/health"
	"github.com/taoyao-code/healthportal/internal/probe"
)

func TestRegistry(t *testing.T) {
	r := Registry()
	for _, name := range []string{"HttpStatus", "PortCheck", "DnsResolve", "CertificateExpiry",
		"RamUsage", "CpuUsage", "DiskUsage", "Uptime", "Systemd", "WorkerVersion"} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
	}
}

func TestHTTPStatus(t *testing.T) {
	retryDelay = 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("welcome home"))
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	t.Run("200正常", func(t *testing.T) {
		res, err := probe.Run(ctx, httpStatus, probe.Kwargs{"url": srv.URL})
		require.NoError(t, err)
		assert.Equal(t, health.StateHealthy, res.State())
		assert.JSONEq(t, `200`, string(res.Value))
	})

	t.Run("状态码不符", func(t *testing.T) {
		res, err := probe.Run(ctx, httpStatus, probe.Kwargs{"url": srv.URL + "/missing"})
		require.NoError(t, err)
		assert.Equal(t, health.StateUnhealthy, res.State())
		assert.Equal(t, "Not Found", res.Reason)
	})

	t.Run("期望非200却收到200", func(t *testing.T) {
		res, err := probe.Run(ctx, httpStatus, probe.Kwargs{"url": srv.URL, "status_code": "404"})
		require.NoError(t, err)
		assert.Equal(t, "Unexpected 200 OK received", res.Reason)
	})

	t.Run("内容不包含", func(t *testing.T) {
		res, err := probe.Run(ctx, httpStatus, probe.Kwargs{"url": srv.URL, "contains": "goodbye"})
		require.NoError(t, err)
		assert.Equal(t, health.StateUnhealthy, res.State())
		assert.Contains(t, res.Reason, "Unexpected page content")
	})

	t.Run("连接失败", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		res, err := probe.Run(ctx, httpStatus, probe.Kwargs{"url": "http://" + addr})
		require.NoError(t, err)
		assert.Equal(t, health.StateUnhealthy, res.State())
		assert.Equal(t, "Connection failed", res.Reason)
	})
}

func TestPrepareHooks(t *testing.T) {
	target := probe.Target{Kind: "WebApp", Name: "site", URL: "https://example.org/login", ServerVersion: "v1.2.0"}

	t.Run("继承url", func(t *testing.T) {
		kw := probe.Kwargs{}
		require.NoError(t, httpStatus.Prepare(target, kw))
		assert.Equal(t, "https://example.org/login", kw["url"])
	})

	t.Run("显式url优先", func(t *testing.T) {
		kw := probe.Kwargs{"url": "https://other.org"}
		require.NoError(t, httpStatus.Prepare(target, kw))
		assert.Equal(t, "https://other.org", kw["url"])
	})

	t.Run("缺少url", func(t *testing.T) {
		err := httpStatus.Prepare(probe.Target{Kind: "Host"}, probe.Kwargs{})
		assert.ErrorIs(t, err, errMissingParam)
	})

	t.Run("派生domain", func(t *testing.T) {
		kw := probe.Kwargs{}
		require.NoError(t, certificateExpiry.Prepare(target, kw))
		assert.Equal(t, "example.org", kw["domain"])
	})

	t.Run("注入服务端版本", func(t *testing.T) {
		kw := probe.Kwargs{}
		require.NoError(t, workerVersion.Prepare(target, kw))
		assert.Equal(t, "v1.2.0", kw["server_version"])
	})
}

func TestPortCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	res, err := probe.Run(context.Background(), portCheck, probe.Kwargs{"host": "127.0.0.1", "port": strconv.Itoa(port)})
	require.NoError(t, err)
	assert.Equal(t, health.StateHealthy, res.State())
	assert.Equal(t, "Online", res.ValueString())
}

type stubResolver map[string][]string

func (s stubResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	return s[host], nil
}

func TestDNSResolve(t *testing.T) {
	orig := resolver
	resolver = stubResolver{"example.org": {"93.184.216.34"}}
	defer func() { resolver = orig }()

	res, err := probe.Run(context.Background(), dnsResolve, probe.Kwargs{"domain": "example.org", "expected_ip": "93.184.216.34"})
	require.NoError(t, err)
	assert.Equal(t, health.StateHealthy, res.State())

	res, err = probe.Run(context.Background(), dnsResolve, probe.Kwargs{"domain": "example.org", "expected_ip": "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, health.StateUnhealthy, res.State())
}

func TestRAMUsage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meminfo")
	orig := procMeminfo
	procMeminfo = path
	defer func() { procMeminfo = orig }()

	t.Run("正常", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(
			"MemTotal:       16000000 kB\nMemFree:         8000000 kB\nBuffers:          500000 kB\nCached:          1500000 kB\n"), 0o644))
		res, err := probe.Run(context.Background(), ramUsage, nil)
		require.NoError(t, err)
		assert.Equal(t, health.StateHealthy, res.State())
		require.NotNil(t, res.BarPercent)
		assert.InDelta(t, 37.5, *res.BarPercent, 0.01)
	})

	t.Run("过高", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte(
			"MemTotal: 1000 kB\nMemFree: 10 kB\nBuffers: 10 kB\nCached: 10 kB\n"), 0o644))
		res, err := probe.Run(context.Background(), ramUsage, nil)
		require.NoError(t, err)
		assert.Equal(t, "RAM usage too high", res.Reason)
	})

	t.Run("文件缺失转为不健康", func(t *testing.T) {
		procMeminfo = filepath.Join(dir, "absent")
		res, err := probe.Run(context.Background(), ramUsage, nil)
		require.NoError(t, err)
		assert.Equal(t, health.StateUnhealthy, res.State())
	})
}

func TestUptime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uptime")
	require.NoError(t, os.WriteFile(path, []byte("259200.55 1000.00\n"), 0o644))
	orig := procUptime
	procUptime = path
	defer func() { procUptime = orig }()

	res, err := probe.Run(context.Background(), uptime, nil)
	require.NoError(t, err)
	assert.Equal(t, "3 days", res.ValueString())
}

func TestWorkerVersion(t *testing.T) {
	orig := buildinfo.Version
	buildinfo.Version = "v2.0.0"
	defer func() { buildinfo.Version = orig }()

	res, err := probe.Run(context.Background(), workerVersion, probe.Kwargs{"server_version": "v2.0.0"})
	require.NoError(t, err)
	assert.Equal(t, health.StateHealthy, res.State())

	res, err = probe.Run(context.Background(), workerVersion, probe.Kwargs{"server_version": "v1.9.0"})
	require.NoError(t, err)
	assert.Equal(t, health.StateUnhealthy, res.State())
	assert.Equal(t, "v2.0.0", res.ValueString())
}

func TestBarPercent(t *testing.T) {
	assert.Equal(t, 50.0, barPercent(50, 100, 0))
	assert.Equal(t, 0.0, barPercent(5, 100, 10))
	assert.Equal(t, 100.0, barPercent(300, 100, 0))
	assert.Equal(t, 0.0, barPercent(1, 0, 0))
}
