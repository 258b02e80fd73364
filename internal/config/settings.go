package config

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
	"github.com/viant/afs"
	afsfile "github.com/viant/afs/file"
	"github.com/viant/afs/url"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/kurihiro0119/hitbatch/internal/duration"
)

// SettingsVersion is the settings layout this build reads
const SettingsVersion = 2

// SettingsEnvPrefix selects environment variables that override settings keys
const SettingsEnvPrefix = "HITBATCH_"

// Settings describes the task a HIT set is created for
type Settings struct {
	Version            int      `koanf:"version" yaml:"version"`
	URL                string   `koanf:"url" yaml:"url"`
	Title              string   `koanf:"title" yaml:"title"`
	Description        string   `koanf:"description" yaml:"description"`
	Keywords           string   `koanf:"keywords" yaml:"keywords"`
	Batch              bool     `koanf:"batch" yaml:"batch"`
	FrameHeight        int      `koanf:"frame_height" yaml:"frame_height"`
	AssignmentDuration string   `koanf:"assignment_duration" yaml:"assignment_duration"`
	AutoApprovalDelay  string   `koanf:"auto_approval_delay" yaml:"auto_approval_delay"`
	Reward             string   `koanf:"reward" yaml:"reward"`
	Qualifications     []string `koanf:"qualifications" yaml:"qualifications,omitempty"`
}

// LoadSettings reads settings from a YAML file, then applies HITBATCH_* overrides
func LoadSettings(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &ConfigError{Field: "settings", Message: fmt.Sprintf("cannot read %s (run init first): %v", path, err)}
	}

	envProvider := env.Provider(SettingsEnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(SettingsEnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, &ConfigError{Field: "settings", Message: err.Error()}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSettings writes settings as YAML, stamping the current version
func SaveSettings(ctx context.Context, path string, s *Settings) error {
	s.Version = SettingsVersion
	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	location := url.Normalize(path, afsfile.Scheme)
	if err := afs.New().Upload(ctx, location, afsfile.DefaultFileOsMode, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Validate checks every field an upload depends on
func (s *Settings) Validate() error {
	if s.Version != SettingsVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("settings version %d is not supported; run init again", s.Version)}
	}
	if _, err := NormalizeURL(s.URL); err != nil {
		return err
	}
	for field, value := range map[string]string{"title": s.Title, "description": s.Description, "keywords": s.Keywords} {
		if strings.TrimSpace(value) == "" {
			return &ConfigError{Field: field, Message: "must not be empty"}
		}
	}
	if s.FrameHeight <= 0 {
		return &ConfigError{Field: "frame_height", Message: "must be a positive integer"}
	}
	if _, err := s.RewardAmount(); err != nil {
		return err
	}
	if _, err := s.AssignmentDurationValue(); err != nil {
		return err
	}
	if _, err := s.AutoApprovalDelayValue(); err != nil {
		return err
	}
	return nil
}

// RewardAmount parses the reward, tolerating a leading dollar sign
func (s *Settings) RewardAmount() (decimal.Decimal, error) {
	reward, err := ParseReward(s.Reward)
	if err != nil {
		return decimal.Zero, &ConfigError{Field: "reward", Message: err.Error()}
	}
	return reward, nil
}

// AssignmentDurationValue is how long a worker has for one assignment
func (s *Settings) AssignmentDurationValue() (time.Duration, error) {
	d, err := duration.Parse(s.AssignmentDuration)
	if err != nil {
		return 0, &ConfigError{Field: "assignment_duration", Message: err.Error()}
	}
	return d, nil
}

// AutoApprovalDelayValue is how long until unreviewed assignments are approved
func (s *Settings) AutoApprovalDelayValue() (time.Duration, error) {
	d, err := duration.Parse(s.AutoApprovalDelay)
	if err != nil {
		return 0, &ConfigError{Field: "auto_approval_delay", Message: err.Error()}
	}
	return d, nil
}

// ParseReward parses a dollar amount such as "0.75" or "$0.75"
func ParseReward(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("reward must be a number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("reward must be positive")
	}
	return amount, nil
}

// NormalizeURL requires https and adds the scheme when it is missing
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", &ConfigError{Field: "url", Message: "must not be empty"}
	case strings.HasPrefix(raw, "http://"):
		return "", &ConfigError{Field: "url", Message: "http URLs are not allowed; use https"}
	case strings.HasPrefix(raw, "https://"):
		return raw, nil
	}
	return "https://" + raw, nil
}
