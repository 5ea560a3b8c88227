package parser

import (
	"strconv"
	"strings"

	"rpimon/internal/domain"
)

// DerivePath inserts a `core.<n>` segment before the last segment of base,
// where n is the 1-based number of the 0-based coreIndex.
//
//	DerivePath("environment.rpi.cpu.utilisation", 2) == "environment.rpi.cpu.core.3.utilisation"
func DerivePath(base domain.MetricPath, coreIndex int) domain.MetricPath {
	segs := base.Segments()
	last := segs[len(segs)-1]

	out := make([]string, 0, len(segs)+2)
	out = append(out, segs[:len(segs)-1]...)
	out = append(out, "core", strconv.Itoa(coreIndex+1), last)

	return domain.MetricPath(strings.Join(out, "."))
}
