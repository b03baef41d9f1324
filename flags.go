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
	"flag"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/bridge"
)

var configFile = flag.String("config", "", "path to YAML configuration file")
var replayFile = flag.String("replayfile", "", "burst recording to serve instead of radio hardware")
var diagTopic = flag.String("diagtopic", bridge.DefaultDiagTopic, "MQTT topic for diagnostics, empty disables publishing")
var verbose = flag.Bool("verbose", true, "per-packet logging")
var debug = flag.Bool("debug", false, "debug-level logging")

// EnvOverride lets any flag be set through WMBUS_<NAME>; explicit
// command-line flags still win.
func EnvOverride(log *logrus.Logger) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	flag.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		envName := "WMBUS_" + strings.ToUpper(f.Name)
		value := os.Getenv(envName)
		if value == "" {
			return
		}
		if err := flag.Set(f.Name, value); err != nil {
			log.WithFields(logrus.Fields{
				"env":  envName,
				"flag": f.Name,
			}).WithError(err).Warn("environment override failed")
		} else {
			log.WithFields(logrus.Fields{
				"env":  envName,
				"flag": f.Name,
			}).Debug("environment override applied")
		}
	})
}

// ApplyFlagOverrides folds explicitly given flags (and environment
// overrides) into the loaded configuration.
func ApplyFlagOverrides(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "replayfile":
			cfg.Radio.ReplayFile = *replayFile
		case "diagtopic":
			cfg.Diag.Topic = diagTopic
		case "verbose":
			cfg.Diag.Verbose = verbose
		}
	})
}
