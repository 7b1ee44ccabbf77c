package game

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of a simulation run.
type Config struct {
	TickSeconds             float64 `yaml:"tick_seconds"`
	MaxDeltaTime            float64 `yaml:"max_delta_time"`
	Diagonals               bool    `yaml:"diagonals"`
	CustomerSpeed           float64 `yaml:"customer_speed"` // cells per second on cost-1 floor
	EmployeeSpeed           float64 `yaml:"employee_speed"`
	AskToMoveAfter          float64 `yaml:"ask_to_move_after"` // seconds waiting before asking a blocker to move
	MaxWait                 float64 `yaml:"max_wait"`          // seconds waiting before routing around agents
	RepathDelay             float64 `yaml:"repath_delay"`      // seconds between attempts after a failed search
	DoorOpenSpeed           float64 `yaml:"door_open_speed"`   // fraction per second
	DoorCloseSpeed          float64 `yaml:"door_close_speed"`
	MaxRelocationCandidates int     `yaml:"max_relocation_candidates"`
	ServeSeconds            float64 `yaml:"serve_seconds"`
	ReportWindowTicks       int     `yaml:"report_window_ticks"`
	ReportEvery             int     `yaml:"report_every"`
	SpawnEvery              float64 `yaml:"spawn_every"` // seconds between arriving customers, 0 = none
	MaxCustomers            int     `yaml:"max_customers"`
	Verbose                 bool    `yaml:"verbose"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		TickSeconds:             0.1,
		MaxDeltaTime:            0.25,
		Diagonals:               true,
		CustomerSpeed:           2.0,
		EmployeeSpeed:           2.5,
		AskToMoveAfter:          1.0,
		MaxWait:                 3.0,
		RepathDelay:             0.5,
		DoorOpenSpeed:           2.0,
		DoorCloseSpeed:          1.0,
		MaxRelocationCandidates: 32,
		ServeSeconds:            3.0,
		ReportWindowTicks:       100,
		ReportEvery:             10,
	}
}

// Validate rejects settings the stepper cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TickSeconds <= 0 {
		errs = append(errs, fmt.Errorf("tick_seconds must be positive, got %v", c.TickSeconds))
	}
	if c.MaxDeltaTime <= 0 {
		errs = append(errs, fmt.Errorf("max_delta_time must be positive, got %v", c.MaxDeltaTime))
	}
	if c.CustomerSpeed <= 0 || c.EmployeeSpeed <= 0 {
		errs = append(errs, errors.New("agent speeds must be positive"))
	}
	if c.AskToMoveAfter < 0 || c.MaxWait < 0 || c.RepathDelay < 0 {
		errs = append(errs, errors.New("wait timings must not be negative"))
	}
	if c.MaxWait < c.AskToMoveAfter {
		errs = append(errs, fmt.Errorf("max_wait (%v) must not be shorter than ask_to_move_after (%v)", c.MaxWait, c.AskToMoveAfter))
	}
	if c.DoorOpenSpeed <= 0 || c.DoorCloseSpeed < 0 {
		errs = append(errs, errors.New("door_open_speed must be positive and door_close_speed not negative"))
	}
	if c.MaxRelocationCandidates < 0 {
		errs = append(errs, errors.New("max_relocation_candidates must not be negative"))
	}
	if c.ServeSeconds < 0 {
		errs = append(errs, errors.New("serve_seconds must not be negative"))
	}
	if c.SpawnEvery < 0 || c.MaxCustomers < 0 {
		errs = append(errs, errors.New("spawn settings must not be negative"))
	}
	if c.ReportWindowTicks < 0 || c.ReportEvery < 0 {
		errs = append(errs, errors.New("report settings must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseConfig decodes YAML over the defaults, so omitted keys keep their
// default values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
