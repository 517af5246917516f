// Package id provides unique identifier generation for persistent records.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique record ID with the given prefix.
// Format: <prefix>-<timestamp>-<random>
// Example: vid-1701432000-a1b2c3d4
func Generate(prefix string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), random)
}
