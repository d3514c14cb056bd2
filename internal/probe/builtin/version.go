package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/healthportal/internal/buildinfo"
	"github.com/taoyao-code/healthportal/internal/probe"
	"github.com/taoyao-code/healthportal/internal/result"
)

var workerVersion = probe.Definition{
	Name:        "WorkerVersion",
	Label:       "Worker version",
	Description: "Checks worker version matches server version.",
	Interval:    time.Hour,
	Check:       checkWorkerVersion,
	Prepare: func(t probe.Target, kw probe.Kwargs) error {
		kw["server_version"] = t.ServerVersion
		return nil
	},
}

func checkWorkerVersion(_ context.Context, kw probe.Kwargs) (result.Result, error) {
	mine := buildinfo.Get()
	server := kw.String("server_version", "")
	if mine == server {
		return result.Healthy().WithValue(mine), nil
	}
	return result.Unhealthy(fmt.Sprintf("worker %s does not match server %s", mine, server)).WithValue(mine), nil
}
