package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

// 可在测试中替换的 procfs 路径
var (
	procMeminfo = "/proc/meminfo"
	procLoadavg = "/proc/loadavg"
	procUptime  = "/proc/uptime"
)

var ramUsage = probe.Definition{
	Name:        "RamUsage",
	Label:       "RAM Usage",
	Description: "Checks RAM usage is less than 90%. Does not count cache and buffers.",
	Check:       checkRAM,
}

func checkRAM(context.Context, probe.Kwargs) (result.Result, error) {
	info, err := readMeminfo(procMeminfo)
	if err != nil {
		return result.Result{}, err
	}
	for _, k := range []string{"MemTotal", "MemFree", "Buffers", "Cached"} {
		if _, ok := info[k]; !ok {
			return result.Result{}, fmt.Errorf("meminfo: %s not found", k)
		}
	}
	total := info["MemTotal"] * 1024
	used := (info["MemTotal"] - info["MemFree"] - info["Buffers"] - info["Cached"]) * 1024

	res := result.Healthy().WithReason("RAM usage nominal")
	if float64(used) >= 0.9*float64(total) {
		res = result.Unhealthy("RAM usage too high")
	}
	return res.WithValue(humanBytes(used)).
		WithBar("0 GB", humanBytes(total), barPercent(float64(used), float64(total), 0)), nil
}

func readMeminfo(path string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := make(map[string]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if n, err := strconv.ParseUint(fields[0], 10, 64); err == nil {
			info[strings.TrimSpace(key)] = n
		}
	}
	return info, sc.Err()
}

var cpuUsage = probe.Definition{
	Name:        "CpuUsage",
	Label:       "CPU Utilisation",
	Description: "Checks CPU load is nominal.",
	Check:       checkCPU,
}

func checkCPU(_ context.Context, kw probe.Kwargs) (result.Result, error) {
	b, err := os.ReadFile(procLoadavg)
	if err != nil {
		return result.Result{}, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return result.Result{}, fmt.Errorf("loadavg: empty")
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return result.Result{}, fmt.Errorf("loadavg: %w", err)
	}
	// 每核等待进程数，百分比表示
	value := int(load / float64(runtime.NumCPU()) * 100)
	limit := kw.Int("max", 300)

	res := result.Healthy().WithReason("CPU usage nominal")
	if value >= limit {
		res = result.Unhealthy("CPU overloaded")
	}
	return res.WithValue(fmt.Sprintf("%d%%", value)).
		WithBar("0%", "100%", barPercent(float64(value), 100, 0)), nil
}

var uptime = probe.Definition{
	Name:        "Uptime",
	Label:       "Uptime",
	Description: "Specifies uptime in days. No check.",
	Check:       checkUptime,
}

func checkUptime(context.Context, probe.Kwargs) (result.Result, error) {
	b, err := os.ReadFile(procUptime)
	if err != nil {
		return result.Result{}, err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(b)), " ")
	secs, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return result.Result{}, fmt.Errorf("uptime: %w", err)
	}
	days := int(secs/86400 + 0.5)
	return result.Healthy().WithValue(fmt.Sprintf("%d days", days)), nil
}

var systemd = probe.Definition{
	Name:        "Systemd",
	Label:       "Systemd",
	Description: "Checks all systemd services are OK.",
	Check:       checkSystemd,
}

func checkSystemd(ctx context.Context, _ probe.Kwargs) (result.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "systemctl", "is-system-running").Output()
	state := strings.TrimSpace(string(out))
	if state == "" {
		if err != nil {
			return result.Result{}, err
		}
		state = "unknown"
	}
	value := strings.ToUpper(state[:1]) + state[1:]
	if err != nil {
		return result.Unhealthy("System is " + state).WithValue(value), nil
	}
	return result.Healthy().WithValue(value), nil
}
