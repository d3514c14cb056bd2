//go:build !linux && !darwin

package builtin

import (
	"context"
	"errors"

	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

var diskUsage = probe.Definition{
	Name:        "DiskUsage",
	Label:       "Disk Usage",
	Description: "Inspects used and available blocks on given mount points.",
	Check: func(context.Context, probe.Kwargs) (result.Result, error) {
		return result.Result{}, errors.New("disk usage is not supported on this platform")
	},
}
