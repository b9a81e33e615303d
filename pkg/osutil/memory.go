// Package osutil inspects the host the process runs on.
package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// cgroup v1 reports this page aligned max int64 when no limit is set.
// See https://unix.stackexchange.com/questions/420906/what-is-the-value-for-the-cgroups-limit-in-bytes-if-the-memory-is-not-restricte
const unrestrictedCgroupV1Limit = 9223372036854771712

var cgroupMemoryLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",                   // cgroup v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // cgroup v1
}

// GetTotalMemory returns the memory available to the process: the container's
// limit when one is set, otherwise the host's total memory.
func GetTotalMemory() uint64 {
	total := memory.TotalMemory()

	for _, path := range cgroupMemoryLimitFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if limit, ok := parseCgroupLimit(string(raw)); ok && (total == 0 || limit < total) {
			return limit
		}
		break
	}
	return total
}

func parseCgroupLimit(raw string) (uint64, bool) {
	value := strings.TrimSpace(raw)
	if value == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil || limit == 0 || limit == unrestrictedCgroupV1Limit {
		return 0, false
	}
	return limit, true
}
