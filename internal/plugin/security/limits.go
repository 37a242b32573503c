package security

import "time"

// usageWindow is the rolling window for per-minute counters.
const usageWindow = 60 * time.Second

// ResourceLimits defines the resource ceilings applied to one plugin.
// A non-positive numeric ceiling means unlimited.
type ResourceLimits struct {
	MaxMemoryMB                 int64
	MaxFileSizeMB               float64
	MaxNetworkRequestsPerMinute int
	MaxCPUTimeMs                int64
	MaxDiskIOPerMinuteMB        float64

	// Directory allow-lists for file access. An empty list denies all.
	AllowedReadPaths  []string
	AllowedWritePaths []string

	AllowNetwork        bool
	AllowSubprocess     bool
	AllowLibraryLoading bool
}

// DefaultResourceLimits returns the limits given to an untrusted plugin.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:                 100,
		MaxFileSizeMB:               10,
		MaxNetworkRequestsPerMinute: 60,
		MaxCPUTimeMs:                5000,
		MaxDiskIOPerMinuteMB:        50,
	}
}

// StrictResourceLimits returns limits for plugins of unknown origin.
func StrictResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:                 25,
		MaxFileSizeMB:               1,
		MaxNetworkRequestsPerMinute: 5,
		MaxCPUTimeMs:                1000,
		MaxDiskIOPerMinuteMB:        5,
	}
}

// RelaxedResourceLimits returns limits for vetted plugins that are not
// fully trusted.
func RelaxedResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:                 512,
		MaxFileSizeMB:               100,
		MaxNetworkRequestsPerMinute: 600,
		MaxCPUTimeMs:                30000,
		MaxDiskIOPerMinuteMB:        500,
		AllowNetwork:                true,
	}
}

// clone returns a copy that shares no slices with l.
func (l ResourceLimits) clone() ResourceLimits {
	c := l
	c.AllowedReadPaths = append([]string(nil), l.AllowedReadPaths...)
	c.AllowedWritePaths = append([]string(nil), l.AllowedWritePaths...)
	return c
}

func (l ResourceLimits) isZero() bool {
	return l.MaxMemoryMB == 0 && l.MaxFileSizeMB == 0 &&
		l.MaxNetworkRequestsPerMinute == 0 && l.MaxCPUTimeMs == 0 &&
		l.MaxDiskIOPerMinuteMB == 0 &&
		len(l.AllowedReadPaths) == 0 && len(l.AllowedWritePaths) == 0 &&
		!l.AllowNetwork && !l.AllowSubprocess && !l.AllowLibraryLoading
}

// Usage is a snapshot of a context's resource counters.
type Usage struct {
	MemoryMB        int64
	NetworkRequests int
	DiskIOMB        float64
	WindowStart     time.Time
}
