// WMBUSBRIDGE - A wireless M-Bus link-layer receiver bridge.
// Copyright (C) 2026 Kustonium
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/bridge"
)

type RadioConfig struct {
	ReplayFile   string `yaml:"replay_file"`
	HopMS        int    `yaml:"hop_ms"`
	WaitBudgetMS int    `yaml:"wait_budget_ms"`
}

type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	FrameTopic string `yaml:"frame_topic"`
}

type DiagConfig struct {
	// Topic is a pointer so an explicit empty string can disable
	// publishing while absence means the default.
	Topic             *string `yaml:"topic"`
	Verbose           *bool   `yaml:"verbose"`
	PublishRaw        *bool   `yaml:"publish_raw"`
	SummaryIntervalMS int     `yaml:"summary_interval_ms"`
}

type OutputsConfig struct {
	RTLWMBus    bool   `yaml:"rtlwmbus"`
	CSVFile     string `yaml:"csv_file"`
	ArchivePath string `yaml:"archive_path"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type Config struct {
	Radio   RadioConfig   `yaml:"radio"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Diag    DiagConfig    `yaml:"diag"`
	Outputs OutputsConfig `yaml:"outputs"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoadConfig reads the YAML configuration; an empty path yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	return cfg, nil
}

// BridgeOptions maps the diag section onto dispatcher options, filling
// firmware defaults for anything unset.
func (c *Config) BridgeOptions() bridge.Options {
	opts := bridge.DefaultOptions()
	if c.Diag.Topic != nil {
		opts.DiagTopic = *c.Diag.Topic
	}
	if c.Diag.Verbose != nil {
		opts.Verbose = *c.Diag.Verbose
	}
	if c.Diag.PublishRaw != nil {
		opts.PublishRaw = *c.Diag.PublishRaw
	}
	if c.Diag.SummaryIntervalMS > 0 {
		opts.SummaryInterval = time.Duration(c.Diag.SummaryIntervalMS) * time.Millisecond
	}
	return opts
}

func (c *Config) HopPeriod() time.Duration {
	if c.Radio.HopMS <= 0 {
		return 0
	}
	return time.Duration(c.Radio.HopMS) * time.Millisecond
}

func (c *Config) WaitBudget() time.Duration {
	if c.Radio.WaitBudgetMS <= 0 {
		return 0
	}
	return time.Duration(c.Radio.WaitBudgetMS) * time.Millisecond
}
