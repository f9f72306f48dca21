package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the minimum required free disk space (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// LowDiskSpaceBytes triggers a warning: a rebuild holds two generations.
const LowDiskSpaceBytes = 1024 * 1024 * 1024

// CheckDiskSpace checks free space on the file system holding path, or its
// nearest existing parent.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
		Details:  path,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(path), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: 100 MB)", formatBytes(availableBytes))

	switch {
	case availableBytes < MinDiskSpaceBytes:
		result.Status = StatusFail
	case availableBytes < LowDiskSpaceBytes:
		result.Status = StatusWarn
		result.Details = "Rebuilding an alias needs room for a second generation"
	default:
		result.Status = StatusPass
	}
	return result
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
