// Package config
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rpimon/internal/domain"
)

const (
	DefaultPathCPUTemp = "environment.rpi.cpu.temperature"
	DefaultPathGPUTemp = "environment.rpi.gpu.temperature"
	DefaultPathCPUUtil = "environment.rpi.cpu.utilisation"
	DefaultPathMemUtil = "environment.rpi.memory.utilisation"
	DefaultPathSDUtil  = "environment.rpi.sd.utilisation"
	DefaultRate        = 30 * time.Second
)

const (
	MemSourceFree    = "free"
	MemSourceMeminfo = "meminfo"
)

const (
	DefaultGPUTempCommand    = "vcgencmd measure_temp"
	DefaultCPUTempCommand    = "cat /sys/class/thermal/thermal_zone0/temp"
	DefaultCPUUtilCommand    = "S_TIME_FORMAT='ISO' mpstat -P ALL 5 1 | sed -n '4,$p' | sed '/^$/q'"
	DefaultMemFreeCommand    = "free"
	DefaultMemMeminfoCommand = "cat /proc/meminfo"
	DefaultSDUtilCommand     = "df --output=pcent / | tail -1 | awk 'gsub(\"%\",\"\")'"
)

type Config struct {
	Address        string
	LogLevel       string
	LogFormat      string
	DBPath         string
	JWTSecret      string
	AllowedOrigins []string
	SourceID       uuid.UUID

	ReportURL           string
	ReportToken         string
	ReportFlushInterval time.Duration

	Sampling Sampling
}

// Sampling is the configuration of one sampler session.
type Sampling struct {
	PathCPUTemp domain.MetricPath `json:"path_cpu_temp" validate:"metricpath"`
	PathGPUTemp domain.MetricPath `json:"path_gpu_temp" validate:"metricpath"`
	PathCPUUtil domain.MetricPath `json:"path_cpu_util" validate:"metricpath"`
	PathMemUtil domain.MetricPath `json:"path_mem_util" validate:"metricpath"`
	PathSDUtil  domain.MetricPath `json:"path_sd_util" validate:"metricpath"`

	Rate         time.Duration `json:"rate" validate:"gt=0"`
	MemSource    string        `json:"mem_source" validate:"oneof=free meminfo"`
	ProbeTimeout time.Duration `json:"probe_timeout" validate:"gte=0"`

	Commands Commands `json:"commands"`
}

type Commands struct {
	GPUTemp string `json:"gpu_temp" yaml:"gpu_temp" validate:"required"`
	CPUTemp string `json:"cpu_temp" yaml:"cpu_temp" validate:"required"`
	CPUUtil string `json:"cpu_util" yaml:"cpu_util" validate:"required"`
	MemUtil string `json:"mem_util" yaml:"mem_util" validate:"required"`
	SDUtil  string `json:"sd_util" yaml:"sd_util" validate:"required"`
}

func DefaultSampling() Sampling {
	return Sampling{
		PathCPUTemp: DefaultPathCPUTemp,
		PathGPUTemp: DefaultPathGPUTemp,
		PathCPUUtil: DefaultPathCPUUtil,
		PathMemUtil: DefaultPathMemUtil,
		PathSDUtil:  DefaultPathSDUtil,
		Rate:        DefaultRate,
		MemSource:   MemSourceFree,
		Commands: Commands{
			GPUTemp: DefaultGPUTempCommand,
			CPUTemp: DefaultCPUTempCommand,
			CPUUtil: DefaultCPUUtilCommand,
			MemUtil: DefaultMemFreeCommand,
			SDUtil:  DefaultSDUtilCommand,
		},
	}
}

// Path returns the configured base path of a family.
func (s Sampling) Path(f domain.Family) domain.MetricPath {
	switch f {
	case domain.FamilyCPUTemp:
		return s.PathCPUTemp
	case domain.FamilyGPUTemp:
		return s.PathGPUTemp
	case domain.FamilyCPUUtil:
		return s.PathCPUUtil
	case domain.FamilyMemUtil:
		return s.PathMemUtil
	case domain.FamilyStorageUtil:
		return s.PathSDUtil
	}
	return ""
}

// Command returns the probe command line of a family.
func (s Sampling) Command(f domain.Family) string {
	switch f {
	case domain.FamilyCPUTemp:
		return s.Commands.CPUTemp
	case domain.FamilyGPUTemp:
		return s.Commands.GPUTemp
	case domain.FamilyCPUUtil:
		return s.Commands.CPUUtil
	case domain.FamilyMemUtil:
		return s.Commands.MemUtil
	case domain.FamilyStorageUtil:
		return s.Commands.SDUtil
	}
	return ""
}

// SetMemSource switches the memory output format. A memory command still at
// the default of the previous format follows the new format.
func (s *Sampling) SetMemSource(src string) {
	if src == s.MemSource {
		return
	}
	switch {
	case src == MemSourceMeminfo && s.Commands.MemUtil == DefaultMemFreeCommand:
		s.Commands.MemUtil = DefaultMemMeminfoCommand
	case src == MemSourceFree && s.Commands.MemUtil == DefaultMemMeminfoCommand:
		s.Commands.MemUtil = DefaultMemFreeCommand
	}
	s.MemSource = src
}

// Load reads .env, the process environment and, when path is not empty, a
// YAML file overlaying the sampling section.
func Load(path string) (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Address:             envOr("HTTP_ADDR", ":3000"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogFormat:           envOr("LOG_FORMAT", "text"),
		DBPath:              envOr("DB_PATH", "rpimon.db"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
		ReportURL:           strings.TrimRight(os.Getenv("REPORT_URL"), "/"),
		ReportToken:         os.Getenv("REPORT_TOKEN"),
		ReportFlushInterval: 30 * time.Second,
		Sampling:            DefaultSampling(),
	}

	invalid := map[string]string{}

	if raw := os.Getenv("SOURCE_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			invalid["source_id"] = "must be a valid UUID"
		}
		cfg.SourceID = id
	} else {
		cfg.SourceID = uuid.New()
	}

	if raw := os.Getenv("REPORT_FLUSH_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			cfg.ReportFlushInterval = parsed
		} else {
			invalid["report_flush_interval"] = "must be a positive duration"
		}
	}

	applySamplingEnv(&cfg.Sampling, invalid)

	if path != "" {
		if err := applySamplingFile(&cfg.Sampling, path); err != nil {
			return nil, err
		}
	}

	if len(invalid) > 0 {
		return nil, &domain.ConfigError{Fields: invalid}
	}

	if err := cfg.Sampling.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applySamplingEnv(s *Sampling, invalid map[string]string) {
	setPath := func(key string, dst *domain.MetricPath) {
		if v := os.Getenv(key); v != "" {
			*dst = domain.MetricPath(v)
		}
	}
	setPath("PATH_CPU_TEMP", &s.PathCPUTemp)
	setPath("PATH_GPU_TEMP", &s.PathGPUTemp)
	setPath("PATH_CPU_UTIL", &s.PathCPUUtil)
	setPath("PATH_MEM_UTIL", &s.PathMemUtil)
	setPath("PATH_SD_UTIL", &s.PathSDUtil)

	if raw := os.Getenv("SAMPLE_RATE"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			invalid["rate"] = "must be a number of seconds"
		} else {
			s.Rate = seconds(secs)
		}
	}

	if raw := os.Getenv("PROBE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			invalid["probe_timeout"] = "must be a duration"
		} else {
			s.ProbeTimeout = d
		}
	}

	if v := os.Getenv("MEM_SOURCE"); v != "" {
		s.SetMemSource(strings.ToLower(v))
	}

	setCmd := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setCmd("CMD_GPU_TEMP", &s.Commands.GPUTemp)
	setCmd("CMD_CPU_TEMP", &s.Commands.CPUTemp)
	setCmd("CMD_CPU_UTIL", &s.Commands.CPUUtil)
	setCmd("CMD_MEM_UTIL", &s.Commands.MemUtil)
	setCmd("CMD_SD_UTIL", &s.Commands.SDUtil)
}

type samplingFile struct {
	PathCPUTemp  string   `yaml:"path_cpu_temp"`
	PathGPUTemp  string   `yaml:"path_gpu_temp"`
	PathCPUUtil  string   `yaml:"path_cpu_util"`
	PathMemUtil  string   `yaml:"path_mem_util"`
	PathSDUtil   string   `yaml:"path_sd_util"`
	Rate         float64  `yaml:"rate"`
	MemSource    string   `yaml:"mem_source"`
	ProbeTimeout float64  `yaml:"probe_timeout"`
	Commands     Commands `yaml:"commands"`
}

func applySamplingFile(s *Sampling, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	f := samplingFile{
		PathCPUTemp:  s.PathCPUTemp.String(),
		PathGPUTemp:  s.PathGPUTemp.String(),
		PathCPUUtil:  s.PathCPUUtil.String(),
		PathMemUtil:  s.PathMemUtil.String(),
		PathSDUtil:   s.PathSDUtil.String(),
		Rate:         s.Rate.Seconds(),
		MemSource:    s.MemSource,
		ProbeTimeout: s.ProbeTimeout.Seconds(),
		Commands:     s.Commands,
	}

	memCmd := f.Commands.MemUtil
	f.Commands.MemUtil = ""

	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	s.PathCPUTemp = domain.MetricPath(f.PathCPUTemp)
	s.PathGPUTemp = domain.MetricPath(f.PathGPUTemp)
	s.PathCPUUtil = domain.MetricPath(f.PathCPUUtil)
	s.PathMemUtil = domain.MetricPath(f.PathMemUtil)
	s.PathSDUtil = domain.MetricPath(f.PathSDUtil)
	s.Rate = seconds(f.Rate)
	s.ProbeTimeout = seconds(f.ProbeTimeout)

	if f.Commands.MemUtil == "" {
		switch {
		case f.MemSource != s.MemSource && f.MemSource == MemSourceMeminfo:
			f.Commands.MemUtil = DefaultMemMeminfoCommand
		case f.MemSource != s.MemSource && f.MemSource == MemSourceFree:
			f.Commands.MemUtil = DefaultMemFreeCommand
		default:
			f.Commands.MemUtil = memCmd
		}
	}
	s.MemSource = f.MemSource
	s.Commands = f.Commands

	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
