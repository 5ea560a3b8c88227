// Package system describes the machine the agent runs on.
package system

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

type Host struct {
	Hostname        string        `json:"hostname"`
	OS              string        `json:"os"`
	Platform        string        `json:"platform,omitempty"`
	PlatformVersion string        `json:"platform_version,omitempty"`
	KernelVersion   string        `json:"kernel_version,omitempty"`
	Arch            string        `json:"arch"`
	Uptime          time.Duration `json:"uptime"`
	BootTime        time.Time     `json:"boot_time"`
}

var hostInfo = host.InfoWithContext

func Describe(ctx context.Context) (Host, error) {
	info, err := hostInfo(ctx)
	if err != nil {
		return Host{}, fmt.Errorf("failed to read host info: %w", err)
	}

	arch := info.KernelArch
	if arch == "" {
		arch = runtime.GOARCH
	}

	return Host{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            arch,
		Uptime:          time.Duration(info.Uptime) * time.Second,
		BootTime:        time.Unix(int64(info.BootTime), 0).UTC(),
	}, nil
}
