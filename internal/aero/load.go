package aero

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
)

// ParseScene parses a scene from JSON or YAML bytes and validates it.
func ParseScene(data []byte) (*SceneConfig, error) {
	var cfg SceneConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scene: %w", err)
	}
	if len(cfg.Scene.Aircraft) == 0 {
		return nil, fmt.Errorf("invalid scene: no aircraft listed")
	}
	return &cfg, nil
}

// ParseAircraft parses an aircraft from JSON or YAML bytes and validates it.
func ParseAircraft(data []byte) (*Aircraft, error) {
	var ac Aircraft
	if err := yaml.Unmarshal(data, &ac); err != nil {
		return nil, fmt.Errorf("failed to parse aircraft: %w", err)
	}
	if err := ac.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aircraft: %w", err)
	}
	return &ac, nil
}

// LoadScene reads and parses a scene file.
func LoadScene(path string) (*SceneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scene %s", path).WithComponent("aero")
	}
	cfg, err := ParseScene(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load scene %s", path).WithComponent("aero")
	}
	return cfg, nil
}

// LoadAircraft reads and parses an aircraft file.
func LoadAircraft(path string) (*Aircraft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read aircraft %s", path).WithComponent("aero")
	}
	ac, err := ParseAircraft(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load aircraft %s", path).WithComponent("aero")
	}
	return ac, nil
}
