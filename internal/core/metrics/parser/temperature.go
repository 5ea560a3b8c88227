package parser

import (
	"strconv"
	"strings"

	"rpimon/internal/domain"
)

// ParseGPUTemp parses `temp=<celsius>'C` into Kelvin.
func ParseGPUTemp(raw string) (float64, error) {
	eq := strings.IndexByte(raw, '=')
	if eq < 0 {
		return 0, domain.NewParseError(domain.FamilyGPUTemp, raw, errMissingEq)
	}

	token := raw[eq+1:]
	if q := strings.IndexByte(token, '\''); q >= 0 {
		token = token[:q]
	}

	celsius, err := parseFinite(strings.TrimSpace(token))
	if err != nil {
		return 0, domain.NewParseError(domain.FamilyGPUTemp, raw, err)
	}

	return round2(celsius + kelvinOffset), nil
}

// ParseCPUTemp parses a millidegree Celsius integer into Kelvin.
func ParseCPUTemp(raw string) (float64, error) {
	milli, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, domain.NewParseError(domain.FamilyCPUTemp, raw, errNotNumeric)
	}

	return round2(float64(milli)/1000 + kelvinOffset), nil
}
