package parser

import (
	"fmt"
	"strconv"
	"strings"

	"rpimon/internal/domain"
)

// ParseMemFree reads the `Mem:` row of `free` and returns used/total.
func ParseMemFree(raw string) (float64, error) {
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "Mem:" {
			continue
		}

		total, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, domain.NewParseError(domain.FamilyMemUtil, line, errNotNumeric)
		}
		used, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return 0, domain.NewParseError(domain.FamilyMemUtil, line, errNotNumeric)
		}
		if total == 0 {
			return 0, domain.NewParseError(domain.FamilyMemUtil, line, domain.ErrMissingTotal)
		}

		return round2(float64(used) / float64(total)), nil
	}

	return 0, domain.NewParseError(domain.FamilyMemUtil, raw, domain.ErrMissingTotal)
}

// ParseMeminfo reads a /proc/meminfo dump and returns
// (MemTotal - (MemFree + Buffers + Cached + SReclaimable)) / MemTotal.
func ParseMeminfo(raw string) (float64, error) {
	values := map[string]uint64{}

	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		key := strings.TrimSuffix(fields[0], ":")
		switch key {
		case "MemTotal", "MemFree", "Buffers", "Cached", "SReclaimable":
		default:
			continue
		}

		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, domain.NewParseError(domain.FamilyMemUtil, line, errNotNumeric)
		}
		values[key] = v
	}

	total := values["MemTotal"]
	if total == 0 {
		return 0, domain.NewParseError(domain.FamilyMemUtil, raw, domain.ErrMissingTotal)
	}

	reclaimable := values["MemFree"] + values["Buffers"] + values["Cached"] + values["SReclaimable"]
	if reclaimable > total {
		return 0, domain.NewParseError(domain.FamilyMemUtil, raw,
			fmt.Errorf("free memory %d kB exceeds total %d kB", reclaimable, total))
	}

	return round2(float64(total-reclaimable) / float64(total)), nil
}
