// Package bytesize renders byte counts in human-friendly units.
package bytesize

import (
	"fmt"
	"strings"
)

// units in descending order, 1024-based.
var units = []struct {
	suffix string
	size   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
}

// Format renders n with the largest unit it fills, one decimal at most.
//
// Examples:
//
//	Format(512)        // "512B"
//	Format(2048)       // "2KB"
//	Format(1536)       // "1.5KB"
//	Format(1073741824) // "1GB"
func Format(n int64) string {
	for _, u := range units {
		if n >= u.size {
			s := fmt.Sprintf("%.1f", float64(n)/float64(u.size))
			s = strings.TrimSuffix(s, ".0")
			return s + u.suffix
		}
	}
	return fmt.Sprintf("%dB", n)
}
