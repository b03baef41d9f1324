/*
Wmbusbridge receives wireless M-Bus (EN 13757-4) telegrams from a radio
transceiver, validates their link-layer framing and hands the clean DLL
payloads to configured outputs.

The pipeline detects the link mode (T1 or C1) from the leading raw bytes,
decodes T1's 3-of-6 line code, enforces the L-field length rules for
frame formats A and B, validates and strips the EN 13757-2 block CRCs and
keeps windowed reception statistics. A periodic diagnostics summary with
a triage hint is published over MQTT, alongside per-packet drop and
truncation events.

Command-line Flags:

	-config=""

Path to the YAML configuration file. Without it the bridge runs on
defaults, which require at least a replay file (see -replayfile).

	-replayfile=""

Burst recording to serve instead of real radio hardware, one burst per
line as `<rssi>,<hex>` or bare hex. Overrides radio.replay_file from the
configuration.

	-diagtopic="wmbus/diag"

MQTT topic for diagnostics summaries and per-packet events. An empty
topic disables publishing; diagnostics then appear in the log only.

	-verbose=true

Per-packet logging. Per-packet diagnostics events publish regardless.

	-debug=false

Debug-level logging.

Every flag can also be set through the environment as WMBUS_<NAME>, e.g.
WMBUS_DIAGTOPIC. Flags given on the command line win over environment
values, which win over the configuration file.

Configuration file shape (YAML, all sections optional):

	radio:
	  replay_file: bursts.txt
	  hop_ms: 500
	  wait_budget_ms: 60000
	mqtt:
	  broker: tcp://localhost:1883
	  username: ""
	  password: ""
	  frame_topic: wmbus/frame
	diag:
	  topic: wmbus/diag
	  verbose: true
	  publish_raw: true
	  summary_interval_ms: 60000
	outputs:
	  rtlwmbus: true
	  csv_file: frames.csv
	  archive_path: frames.db
	metrics:
	  listen: :9100
*/
package main
