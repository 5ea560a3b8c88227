package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rpimon/internal/domain"
)

// Column layout of `S_TIME_FORMAT=ISO mpstat -P ALL` rows once whitespace is
// collapsed: time, CPU, %usr, %nice, %sys, %iowait, %irq, %soft, %steal,
// %guest, %gnice, %idle.
const (
	mpstatCPUField  = 1
	mpstatIdleField = 11
)

const aggregateToken = "all"

// ParseCPUUtil parses mpstat rows into one reading per row: per-core rows
// get a derived path, the aggregate row keeps base.
//
// Output without an aggregate row is rejected as a whole. Otherwise rows that
// cannot be read are skipped and reported in the returned error while the
// readings of every other row are still returned, in input order.
func ParseCPUUtil(raw string, base domain.MetricPath) ([]domain.Reading, error) {
	if !strings.Contains(strings.ToLower(raw), aggregateToken) {
		return nil, domain.NewParseError(domain.FamilyCPUUtil, raw, domain.ErrUnrecognizedOutput)
	}

	var (
		readings []domain.Reading
		skipped  []error
	)

	for _, line := range strings.Split(trimLineEnds(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		r, err := parseMpstatRow(fields, base)
		if err != nil {
			skipped = append(skipped, domain.NewParseError(domain.FamilyCPUUtil, line, err))
			continue
		}
		readings = append(readings, r)
	}

	if len(readings) == 0 && len(skipped) == 0 {
		return nil, domain.NewParseError(domain.FamilyCPUUtil, raw, domain.ErrUnrecognizedOutput)
	}

	return readings, errors.Join(skipped...)
}

func parseMpstatRow(fields []string, base domain.MetricPath) (domain.Reading, error) {
	if len(fields) <= mpstatIdleField {
		return domain.Reading{}, fmt.Errorf("%w: got %d, want %d", errShortLine, len(fields), mpstatIdleField+1)
	}

	idle, err := parseFinite(strings.Replace(fields[mpstatIdleField], ",", ".", 1))
	if err != nil {
		return domain.Reading{}, fmt.Errorf("idle column %q: %w", fields[mpstatIdleField], err)
	}

	path := base
	if idx, ok := coreIndex(fields[mpstatCPUField]); ok {
		path = DerivePath(base, idx)
	}

	return domain.Reading{Path: path, Value: round2((100 - idle) / 100)}, nil
}

// coreIndex reports whether field names a single core rather than the
// aggregate.
func coreIndex(field string) (int, bool) {
	if strings.EqualFold(field, aggregateToken) {
		return 0, false
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return n, true
}
