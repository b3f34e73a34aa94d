// Package status keeps the server's view of this terminal current: a
// one-time registration, interval heartbeats, and immediate out-of-band
// updates around foreground/background and shutdown.
package status

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HardwareFacts describes the machine the terminal runs on.
type HardwareFacts struct {
	Platform         string `json:"platform"`
	UserAgent        string `json:"userAgent"`
	Locale           string `json:"locale"`
	ScreenResolution string `json:"screenResolution,omitempty"`
	MemoryHintMB     uint64 `json:"memoryHint,omitempty"`
	CPUCount         int    `json:"cpuCount"`
	UptimeSeconds    uint64 `json:"uptimeSeconds"`
	Hostname         string `json:"hostname"`
}

// Snapshot is one immutable status record, built fresh at report time and
// never mutated afterwards.
type Snapshot struct {
	TerminalID      string        `json:"terminalId"`
	Name            string        `json:"name"`
	LocalAddress    string        `json:"localAddress,omitempty"`
	Port            int           `json:"port,omitempty"`
	SoftwareVersion string        `json:"softwareVersion"`
	Online          bool          `json:"online"`
	Hardware        HardwareFacts `json:"hardwareFacts"`
	Timestamp       string        `json:"timestamp"`
}

// Facts holds the configured, non-probed snapshot inputs.
type Facts struct {
	Name             string
	LocalAddress     string
	Port             int
	ScreenResolution string
	SoftwareVersion  string
}

// BuildSnapshot probes the host and assembles a fresh snapshot. Probe
// failures leave the corresponding field zero; a partially-described
// terminal is still a live one.
func BuildSnapshot(terminalID string, facts Facts, online bool) Snapshot {
	hw := HardwareFacts{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent: fmt.Sprintf("retail-terminal/%s (%s; %s)",
			facts.SoftwareVersion, runtime.GOOS, runtime.GOARCH),
		Locale:           locale(),
		ScreenResolution: facts.ScreenResolution,
		CPUCount:         logicalCPUs(),
	}

	if info, err := host.Info(); err == nil {
		hw.Hostname = info.Hostname
		hw.UptimeSeconds = info.Uptime
		if info.Platform != "" {
			hw.Platform = fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hw.MemoryHintMB = vm.Total / (1 << 20)
	}

	return Snapshot{
		TerminalID:      terminalID,
		Name:            facts.Name,
		LocalAddress:    facts.LocalAddress,
		Port:            facts.Port,
		SoftwareVersion: facts.SoftwareVersion,
		Online:          online,
		Hardware:        hw,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

func logicalCPUs() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
