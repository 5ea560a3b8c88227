// Package parser turns raw probe text into normalized readings.
//
// Every parser is a pure function over its input. A parser either returns
// readings or an error wrapping *domain.ParseError; it never returns NaN,
// infinities or readings for input it could not fully understand.
package parser

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"rpimon/internal/domain"
)

const kelvinOffset = 273.15

var (
	errNotNumeric = errors.New("value is not a finite number")
	errMissingEq  = errors.New("missing '=' delimiter")
	errShortLine  = errors.New("too few fields")
)

// Func parses the raw output of one probe. base is the configured path of
// the family; multi-valued families derive further paths from it.
type Func func(raw string, base domain.MetricPath) ([]domain.Reading, error)

// For returns the parser of a family. memSource selects the memory format.
func For(f domain.Family, memSource string) Func {
	switch f {
	case domain.FamilyGPUTemp:
		return single(f, ParseGPUTemp)
	case domain.FamilyCPUTemp:
		return single(f, ParseCPUTemp)
	case domain.FamilyCPUUtil:
		return ParseCPUUtil
	case domain.FamilyMemUtil:
		if memSource == "meminfo" {
			return single(f, ParseMeminfo)
		}
		return single(f, ParseMemFree)
	case domain.FamilyStorageUtil:
		return single(f, ParseStorage)
	}
	return nil
}

func single(f domain.Family, fn func(string) (float64, error)) Func {
	return func(raw string, base domain.MetricPath) ([]domain.Reading, error) {
		v, err := fn(raw)
		if err != nil {
			return nil, err
		}
		return []domain.Reading{{Path: base, Value: v}}, nil
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}

func trimLineEnds(raw string) string {
	return strings.TrimRight(raw, "\r\n")
}
