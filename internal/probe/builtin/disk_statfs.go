//go:build linux || darwin

package builtin

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

var diskUsage = probe.Definition{
	Name:        "DiskUsage",
	Label:       "Disk Usage",
	Description: "Inspects used and available blocks on given mount points.",
	Check:       checkDisk,
	Prepare: func(_ probe.Target, kw probe.Kwargs) error {
		if !kw.Has("mountpoint") {
			kw["mountpoint"] = "/"
		}
		return nil
	},
}

func checkDisk(_ context.Context, kw probe.Kwargs) (result.Result, error) {
	mount := kw.String("mountpoint", "/")
	var st unix.Statfs_t
	if err := unix.Statfs(mount, &st); err != nil {
		return result.Result{}, fmt.Errorf("statfs %s: %w", mount, err)
	}
	bsize := uint64(st.Bsize)
	total := bsize * uint64(st.Blocks)
	free := bsize * uint64(st.Bavail)
	used := total - free

	res := result.Healthy().WithReason("Disk usage nominal")
	if float64(used) >= 0.9*float64(total) {
		res = result.Unhealthy("Disk is nearly full")
	}
	return res.WithValue(humanBytes(used)).
		WithBar("0 GB", humanBytes(total), barPercent(float64(used), float64(total), 0)), nil
}
