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
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/archive"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/bridge"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/csv"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/diag"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/mqttpub"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/radio"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

const loopTick = 10 * time.Millisecond

// rtlwmbusHandler writes every accepted frame as an rtl_wmbus line, the
// format wmbusmeters consumes on stdin.
func rtlwmbusHandler(w io.Writer) bridge.FrameHandler {
	return func(f *wmbus.Frame) {
		if _, err := io.WriteString(w, f.RTLWMBus(time.Now())); err == nil {
			f.MarkHandled()
		}
	}
}

// csvHandler logs accepted frames as CSV rows.
func csvHandler(enc *csv.Encoder, log *logrus.Entry) bridge.FrameHandler {
	return func(f *wmbus.Frame) {
		if err := enc.Encode(csv.NewFrameRecord(f, time.Now())); err != nil {
			log.WithError(err).Warn("csv write failed")
			return
		}
		f.MarkHandled()
	}
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	EnvOverride(log)

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	ApplyFlagOverrides(cfg)

	if cfg.Radio.ReplayFile == "" {
		log.Fatal("no radio configured: set radio.replay_file or -replayfile")
	}
	transceiver, err := radio.OpenReplay(cfg.Radio.ReplayFile)
	if err != nil {
		log.WithError(err).Fatal("radio")
	}

	receiver := radio.NewReceiver(transceiver, radio.Config{
		HopPeriod:  cfg.HopPeriod(),
		WaitBudget: cfg.WaitBudget(),
	}, log)

	var pub diag.Publisher
	var mqttClient *mqttpub.Client
	if cfg.MQTT.Broker != "" {
		mqttClient, err = mqttpub.Connect(mqttpub.Options{
			Broker:   cfg.MQTT.Broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("mqtt")
		}
		defer mqttClient.Close()
		pub = mqttClient
	}

	b := bridge.New(receiver.Packets(), pub, cfg.BridgeOptions(), log)
	b.SetMetrics(diag.NewMetrics())

	if cfg.Outputs.RTLWMBus {
		b.AddFrameHandler(rtlwmbusHandler(os.Stdout))
	}
	if cfg.Outputs.CSVFile != "" {
		f, err := os.OpenFile(cfg.Outputs.CSVFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Fatal("csv output")
		}
		defer f.Close()
		b.AddFrameHandler(csvHandler(csv.NewEncoder(f), log.WithField("component", "csv")))
	}
	if cfg.Outputs.ArchivePath != "" {
		a, err := archive.Open(cfg.Outputs.ArchivePath, log)
		if err != nil {
			log.WithError(err).Fatal("archive")
		}
		defer a.Close()
		b.AddFrameHandler(a.HandleFrame)
	}
	if mqttClient != nil && cfg.MQTT.FrameTopic != "" {
		b.AddFrameHandler(mqttpub.FrameHandler(mqttClient, cfg.MQTT.FrameTopic))
	}

	if cfg.Metrics.Listen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				log.WithError(err).Warn("metrics endpoint")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	receiver.Start()
	log.WithField("replay", cfg.Radio.ReplayFile).Info("running")

	b.Run(ctx, loopTick)
	receiver.Stop()
	log.Info("stopped")
}
