package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// SystemMetricsTool reports CPU, memory and disk usage of the host.
type SystemMetricsTool struct {
	procRoot     string
	diskPath     string
	cpuSampleGap time.Duration
}

func NewSystemMetricsTool() *SystemMetricsTool {
	return &SystemMetricsTool{procRoot: "/proc", diskPath: "/", cpuSampleGap: 200 * time.Millisecond}
}

func (t *SystemMetricsTool) Name() string { return ToolNameSystemMetrics }

func (t *SystemMetricsTool) Description() string {
	return "Check system metrics (CPU, memory, disk)"
}

func (t *SystemMetricsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"metrics": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "enum": []any{"cpu", "memory", "disk"}},
				"description": "Metrics to check: cpu, memory, disk",
			},
		},
	}
}

// Execute reads each requested metric. A metric that cannot be read is
// reported under "<name>_error" without failing the others.
func (t *SystemMetricsTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	metrics := stringSliceParam(params, "metrics")
	if len(metrics) == 0 {
		metrics = []string{"cpu", "memory", "disk"}
	}

	data := map[string]any{}
	for _, m := range metrics {
		switch strings.ToLower(m) {
		case "cpu":
			if v, err := t.cpuUsage(ctx); err != nil {
				data["cpu_error"] = err.Error()
			} else {
				data["cpu_usage"] = fmt.Sprintf("%.1f%%", v)
			}
		case "memory":
			if v, err := t.memoryUsage(); err != nil {
				data["memory_error"] = err.Error()
			} else {
				data["memory_usage"] = fmt.Sprintf("%.2f%%", v)
			}
		case "disk":
			if v, err := diskUsage(t.diskPath); err != nil {
				data["disk_error"] = err.Error()
			} else {
				data["disk_usage"] = fmt.Sprintf("%.0f%%", v)
			}
		default:
			data[m+"_error"] = "unknown metric"
		}
	}
	return dataResult(data), nil
}

// cpuUsage compares two /proc/stat samples.
func (t *SystemMetricsTool) cpuUsage(ctx context.Context) (float64, error) {
	idle1, total1, err := readCPUSample(t.procRoot + "/stat")
	if err != nil {
		return 0, err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(t.cpuSampleGap):
	}
	idle2, total2, err := readCPUSample(t.procRoot + "/stat")
	if err != nil {
		return 0, err
	}
	dTotal := total2 - total1
	if dTotal == 0 {
		return 0, nil
	}
	return 100 * float64(dTotal-(idle2-idle1)) / float64(dTotal), nil
}

func readCPUSample(path string) (idle, total uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read cpu stats: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return 0, 0, fmt.Errorf("parse cpu stats: %w", err)
			}
			total += v
			// idle and iowait
			if i == 3 || i == 4 {
				idle += v
			}
		}
		return idle, total, nil
	}
	return 0, 0, fmt.Errorf("no cpu line in %s", path)
}

func (t *SystemMetricsTool) memoryUsage() (float64, error) {
	f, err := os.Open(t.procRoot + "/meminfo")
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	defer f.Close()

	values := map[string]uint64{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		values[strings.TrimSuffix(fields[0], ":")] = v
	}

	total := values["MemTotal"]
	if total == 0 {
		return 0, fmt.Errorf("MemTotal missing from meminfo")
	}
	avail, ok := values["MemAvailable"]
	if !ok {
		avail = values["MemFree"] + values["Buffers"] + values["Cached"]
	}
	return 100 * float64(total-avail) / float64(total), nil
}

func diskUsage(path string) (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	if total == 0 {
		return 0, nil
	}
	return 100 * float64(total-free) / float64(total), nil
}
