package parser

import (
	"errors"
	"math"
	"testing"

	"rpimon/internal/domain"
)

const cpuBase = domain.MetricPath("environment.rpi.cpu.utilisation")

const mpstatOutput = `10:15:05     all    2.51    0.00    0.50    0.00    0.00    0.00    0.00    0.00    0.00   97.50
10:15:05       0    3.00    0.00    1.00    0.00    0.00    0.00    0.00    0.00    0.00   96.00
10:15:05       1    1.00    0.00    0.00    0.00    0.00    0.00    0.00    0.00    0.00   99.00
10:15:05       2    4.00    0.00    1.00    0.00    0.00    0.00    0.00    0.00    0.00   95.00
10:15:05       3    2.00    0.00    0.00    0.00    0.00    0.00    0.00    0.00    0.00   98,00

`

func TestParseGPUTemp(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"temp=45.6'C", 318.75},
		{"temp=45.6'C\n", 318.75},
		{"temp=0.0'C", 273.15},
		{"temp=51'C", 324.15},
		{"temp=-3.5'C", 269.65},
		{"temp= 40.1 ", 313.25},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseGPUTemp(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCPUTemp(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"45600", 318.75},
		{"45600\n", 318.75},
		{"0", 273.15},
		{"52078", 325.23},
	}

	for _, tt := range tests {
		got, err := ParseCPUTemp(tt.raw)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseCPUUtil(t *testing.T) {
	readings, err := ParseCPUUtil(mpstatOutput, cpuBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Reading{
		{Path: "environment.rpi.cpu.utilisation", Value: 0.03},
		{Path: "environment.rpi.cpu.core.1.utilisation", Value: 0.04},
		{Path: "environment.rpi.cpu.core.2.utilisation", Value: 0.01},
		{Path: "environment.rpi.cpu.core.3.utilisation", Value: 0.05},
		{Path: "environment.rpi.cpu.core.4.utilisation", Value: 0.02},
	}

	if len(readings) != len(want) {
		t.Fatalf("got %d readings, want %d: %+v", len(readings), len(want), readings)
	}
	for i := range want {
		if readings[i] != want[i] {
			t.Fatalf("reading %d: got %+v, want %+v", i, readings[i], want[i])
		}
	}
}

func TestParseCPUUtilPerCorePathDiffersFromAggregate(t *testing.T) {
	readings, err := ParseCPUUtil(mpstatOutput, cpuBase)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range readings[1:] {
		if r.Path == cpuBase {
			t.Fatalf("per-core reading reuses aggregate path: %+v", r)
		}
	}
}

func TestParseCPUUtilSkipsBadRows(t *testing.T) {
	raw := "10:15:05 all 1 0 0 0 0 0 0 0 0 90.00\n" +
		"10:15:05 CPU %usr %nice %sys %iowait %irq %soft %steal %guest %gnice %idle\n" +
		"10:15:05 1 short\n" +
		"10:15:05 2 0 0 0 0 0 0 0 0 0 NaN\n" +
		"10:15:05 3 0 0 0 0 0 0 0 0 0 80.00\n"

	readings, err := ParseCPUUtil(raw, cpuBase)
	if err == nil {
		t.Fatal("expected skipped-row error")
	}
	var perr *domain.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %T", err)
	}

	if len(readings) != 2 {
		t.Fatalf("expected 2 good readings, got %+v", readings)
	}
	if readings[0].Path != cpuBase || readings[0].Value != 0.1 {
		t.Fatalf("unexpected aggregate %+v", readings[0])
	}
	if readings[1].Path != "environment.rpi.cpu.core.4.utilisation" || readings[1].Value != 0.2 {
		t.Fatalf("unexpected core reading %+v", readings[1])
	}
}

func TestParseCPUUtilRejectsUnrecognizedOutput(t *testing.T) {
	for _, raw := range []string{"", "mpstat: command not found", "10:15:05 0 1 2 3 4 5 6 7 8 9 90"} {
		readings, err := ParseCPUUtil(raw, cpuBase)
		if !errors.Is(err, domain.ErrUnrecognizedOutput) {
			t.Fatalf("%q: expected unrecognized output, got %v", raw, err)
		}
		if len(readings) != 0 {
			t.Fatalf("%q: expected no readings, got %+v", raw, readings)
		}
	}
}

func TestParseMeminfo(t *testing.T) {
	raw := `MemTotal:        1000000 kB
MemFree:          200000 kB
MemAvailable:     500000 kB
Buffers:           50000 kB
Cached:           150000 kB
SwapCached:         9999 kB
SReclaimable:      50000 kB
`
	got, err := ParseMeminfo(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.55 {
		t.Fatalf("got %v, want 0.55", got)
	}
}

func TestParseMemFree(t *testing.T) {
	raw := `               total        used        free      shared  buff/cache   available
Mem:         3884376      972044     1502012       41324     1410320     2709948
Swap:         102396           0      102396
`
	got, err := ParseMemFree(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.25 {
		t.Fatalf("got %v, want 0.25", got)
	}
}

func TestParseMemoryMissingTotal(t *testing.T) {
	inputs := map[string]func(string) (float64, error){
		"meminfo empty":    ParseMeminfo,
		"meminfo no total": ParseMeminfo,
		"meminfo zero":     ParseMeminfo,
		"free no row":      ParseMemFree,
		"free zero total":  ParseMemFree,
	}
	raws := map[string]string{
		"meminfo empty":    "",
		"meminfo no total": "MemFree: 10 kB\nCached: 5 kB\n",
		"meminfo zero":     "MemTotal: 0 kB\n",
		"free no row":      "Swap: 1 0 1\n",
		"free zero total":  "Mem: 0 0 0\n",
	}

	for name, fn := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := fn(raws[name])
			if !errors.Is(err, domain.ErrMissingTotal) {
				t.Fatalf("expected missing total, got %v", err)
			}
		})
	}
}

func TestParseStorage(t *testing.T) {
	for _, raw := range []string{"42", "42\n", " 42 \r\n", "42%\n"} {
		got, err := ParseStorage(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", raw, err)
		}
		if got != 0.42 {
			t.Fatalf("%q: got %v, want 0.42", raw, got)
		}
	}
}

func TestParseStorageBounds(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"0", 0, false},
		{"100%", 1, false},
		{"-5", 0, true},
		{"101", 0, true},
		{"250", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStorage(tt.raw)
			if tt.wantErr {
				var perr *domain.ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("expected parse error, got %v (value %v)", err, got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestMalformedInputsYieldNoReadings(t *testing.T) {
	tests := []struct {
		family domain.Family
		raw    string
	}{
		{domain.FamilyGPUTemp, "temp 45.6'C"},
		{domain.FamilyGPUTemp, "temp=hot'C"},
		{domain.FamilyGPUTemp, "temp=NaN'C"},
		{domain.FamilyCPUTemp, "warm"},
		{domain.FamilyCPUTemp, ""},
		{domain.FamilyCPUTemp, "45.6"},
		{domain.FamilyMemUtil, "Mem: lots little"},
		{domain.FamilyStorageUtil, "Use%"},
		{domain.FamilyStorageUtil, ""},
		{domain.FamilyStorageUtil, "-5"},
		{domain.FamilyStorageUtil, "250%"},
	}

	for _, tt := range tests {
		t.Run(string(tt.family)+"/"+tt.raw, func(t *testing.T) {
			readings, err := For(tt.family, "free")(tt.raw, "a.b")
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *domain.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected parse error, got %T: %v", err, err)
			}
			if perr.Family != tt.family {
				t.Fatalf("error tagged with %s", perr.Family)
			}
			if len(readings) != 0 {
				t.Fatalf("expected no readings, got %+v", readings)
			}
		})
	}
}

func TestForReturnsFiniteReadings(t *testing.T) {
	inputs := map[domain.Family]string{
		domain.FamilyGPUTemp:     "temp=45.6'C",
		domain.FamilyCPUTemp:     "45600",
		domain.FamilyCPUUtil:     mpstatOutput,
		domain.FamilyMemUtil:     "MemTotal: 100 kB\nMemFree: 50 kB\n",
		domain.FamilyStorageUtil: "7",
	}

	for family, raw := range inputs {
		readings, err := For(family, "meminfo")(raw, "x.y")
		if err != nil {
			t.Fatalf("%s: %v", family, err)
		}
		if len(readings) == 0 {
			t.Fatalf("%s: no readings", family)
		}
		for _, r := range readings {
			if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
				t.Fatalf("%s: non-finite value %v", family, r.Value)
			}
		}
	}
}

func TestDerivePath(t *testing.T) {
	tests := []struct {
		base domain.MetricPath
		core int
		want domain.MetricPath
	}{
		{"environment.rpi.cpu.utilisation", 0, "environment.rpi.cpu.core.1.utilisation"},
		{"environment.rpi.cpu.utilisation", 2, "environment.rpi.cpu.core.3.utilisation"},
		{"environment.rpi.cpu.utilisation", 11, "environment.rpi.cpu.core.12.utilisation"},
		{"utilisation", 0, "core.1.utilisation"},
	}

	for _, tt := range tests {
		got := DerivePath(tt.base, tt.core)
		if got != tt.want {
			t.Fatalf("DerivePath(%q, %d) = %q, want %q", tt.base, tt.core, got, tt.want)
		}
		if got == tt.base {
			t.Fatalf("derived path equals base %q", got)
		}
		if again := DerivePath(tt.base, tt.core); again != got {
			t.Fatalf("DerivePath not deterministic: %q vs %q", got, again)
		}
	}
}
