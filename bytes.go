package trialkit

// This code adapted from https://github.com/cloudfoundry/bytefmt (Apache V2)

import (
	"fmt"
	"strings"
)

const (
	bbyte    = 1.0
	kilobyte = 1024 * bbyte
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte
	terabyte = 1024 * gigabyte
)

// Bytes is a byte count, such as the size of a fetched page or a cached
// artifact, which prints as 1.2G, 4M and so on.
type Bytes uint64

// String picks the largest of T, G, M, K and B which keeps the value at or
// above 1 and prints it with at most one decimal.
func (b Bytes) String() string {
	unit := ""
	value := float32(b)

	switch {
	case b >= terabyte:
		unit = "T"
		value = value / terabyte
	case b >= gigabyte:
		unit = "G"
		value = value / gigabyte
	case b >= megabyte:
		unit = "M"
		value = value / megabyte
	case b >= kilobyte:
		unit = "K"
		value = value / kilobyte
	case b >= bbyte:
		unit = "B"
	case b == 0:
		return "0"
	}

	stringValue := fmt.Sprintf("%.1f", value)
	stringValue = strings.TrimSuffix(stringValue, ".0")
	return fmt.Sprintf("%s%s", stringValue, unit)
}
