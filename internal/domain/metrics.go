package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Unit int

const (
	UnitKelvin Unit = iota + 1
	UnitRatio
)

func (u Unit) String() string {
	switch u {
	case UnitKelvin:
		return "K"
	case UnitRatio:
		return "ratio"
	default:
		return "unknown"
	}
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Unit) UnmarshalText(b []byte) error {
	parsed, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func ParseUnit(s string) (Unit, error) {
	switch s {
	case "K":
		return UnitKelvin, nil
	case "ratio":
		return UnitRatio, nil
	}
	return 0, fmt.Errorf("unknown unit %q", s)
}

type Family string

const (
	FamilyGPUTemp     Family = "gpu_temp"
	FamilyCPUTemp     Family = "cpu_temp"
	FamilyCPUUtil     Family = "cpu_util"
	FamilyMemUtil     Family = "mem_util"
	FamilyStorageUtil Family = "sd_util"
)

// Families lists every metric family in probe order.
var Families = []Family{
	FamilyCPUTemp,
	FamilyGPUTemp,
	FamilyCPUUtil,
	FamilyMemUtil,
	FamilyStorageUtil,
}

// FamilyUnits is the single source of truth for the unit of each family.
// Metadata registration and sample construction both read from it.
var FamilyUnits = map[Family]Unit{
	FamilyGPUTemp:     UnitKelvin,
	FamilyCPUTemp:     UnitKelvin,
	FamilyCPUUtil:     UnitRatio,
	FamilyMemUtil:     UnitRatio,
	FamilyStorageUtil: UnitRatio,
}

// FamilyTitles are the human readable labels shown next to a configured path.
var FamilyTitles = map[Family]string{
	FamilyCPUTemp:     "CPU temperature (K)",
	FamilyGPUTemp:     "GPU temperature (K)",
	FamilyCPUUtil:     "CPU utilisation",
	FamilyMemUtil:     "Memory utilisation",
	FamilyStorageUtil: "SD card utilisation",
}

// CheckUnits verifies that every family has a declared unit.
func CheckUnits() error {
	for _, f := range Families {
		u, ok := FamilyUnits[f]
		if !ok || (u != UnitKelvin && u != UnitRatio) {
			return fmt.Errorf("family %s has no unit declared", f)
		}
	}
	return nil
}

type MetricPath string

func (p MetricPath) String() string { return string(p) }

func (p MetricPath) Segments() []string {
	return strings.Split(string(p), ".")
}

// Valid reports whether p is non-empty and has no empty segments.
func (p MetricPath) Valid() bool {
	if p == "" {
		return false
	}
	for _, seg := range p.Segments() {
		if strings.TrimSpace(seg) == "" || strings.ContainsAny(seg, " \t\r\n") {
			return false
		}
	}
	return true
}

type Sample struct {
	Family Family     `json:"family"`
	Path   MetricPath `json:"path"`
	Value  float64    `json:"value"`
	Unit   Unit       `json:"unit"`
}

type Reading struct {
	Path  MetricPath
	Value float64
}

type Meta struct {
	Path         MetricPath `json:"path"`
	Unit         Unit       `json:"unit"`
	Family       Family     `json:"family"`
	Title        string     `json:"title"`
	RegisteredAt time.Time  `json:"registered_at"`
}

type LatestValue struct {
	Path       MetricPath `json:"path"`
	Value      float64    `json:"value"`
	RecordedAt time.Time  `json:"recorded_at"`
}

type ValueSink interface {
	PublishValue(ctx context.Context, s Sample) error
}

type MetadataSink interface {
	PublishMetadata(ctx context.Context, path MetricPath, unit Unit) error
}

type Sink interface {
	ValueSink
	MetadataSink
}

type FamilyReport struct {
	Family  Family `json:"family"`
	Samples int    `json:"samples"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// TickReport summarizes one tick once every pipeline has finished.
type TickReport struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Families  []FamilyReport `json:"families"`
}

func (r TickReport) Samples() int {
	n := 0
	for _, f := range r.Families {
		n += f.Samples
	}
	return n
}

func (r TickReport) Failures() int {
	n := 0
	for _, f := range r.Families {
		if f.Error != "" {
			n++
		}
	}
	return n
}

type MetaRepository interface {
	Upsert(ctx context.Context, m Meta) error
	List(ctx context.Context) ([]Meta, error)
}
