package parser

import (
	"fmt"
	"strconv"
	"strings"

	"rpimon/internal/domain"
)

// ParseStorage reads an integer percentage such as "42" or "42%". Values
// outside 0..100 are rejected.
func ParseStorage(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	pct, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.NewParseError(domain.FamilyStorageUtil, raw, errNotNumeric)
	}

	if pct < 0 || pct > 100 {
		return 0, domain.NewParseError(domain.FamilyStorageUtil, raw,
			fmt.Errorf("percentage %d outside 0..100", pct))
	}

	return float64(pct) / 100, nil
}
