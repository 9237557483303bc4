package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

const defaultPrefix = "yearreview"

// pendingHash holds one field per marker: {prefix}:pending
func pendingHash(prefix string) string { return prefix + ":pending" }

// completedHash holds one field per context: {prefix}:completed
func completedHash(prefix string) string { return prefix + ":completed" }

// field encodes a key as username:year.
func field(key profile.JobKey) string {
	return key.Username + ":" + strconv.Itoa(key.Year)
}

// parseField splits on the last colon so the year is always the suffix.
func parseField(f string) (profile.JobKey, error) {
	idx := strings.LastIndexByte(f, ':')
	if idx <= 0 || idx == len(f)-1 {
		return profile.JobKey{}, fmt.Errorf("malformed field %q", f)
	}
	year, err := strconv.Atoi(f[idx+1:])
	if err != nil {
		return profile.JobKey{}, fmt.Errorf("malformed year in field %q: %w", f, err)
	}
	return profile.JobKey{Username: f[:idx], Year: year}, nil
}
