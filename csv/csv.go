// Package csv renders received telegrams as CSV log rows.
package csv

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"strconv"
	"time"

	"golang.org/x/xerrors"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// Produces a list of fields making up a record.
type Recorder interface {
	Record() []string
}

// An Encoder writes CSV records to an output stream.
type Encoder struct {
	w *csv.Writer
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: csv.NewWriter(w)}
}

// Encode writes a CSV record representing v to the stream followed by a
// newline character. Value given must implement the Recorder interface.
func (enc *Encoder) Encode(v interface{}) (err error) {
	defer func() {
		if r, _ := recover().(error); r != nil {
			err = xerrors.Errorf("recovered: %w", r)
		}
	}()

	err = enc.w.Write(v.(Recorder).Record())
	enc.w.Flush()

	return err
}

// FrameRecord is one accepted telegram as a CSV row: time, link mode,
// frame format, RSSI, payload length and the payload as lowercase hex.
type FrameRecord struct {
	Time   time.Time
	Mode   wmbus.LinkMode
	Format wmbus.FrameFormat
	RSSI   int8
	Data   []byte
}

func NewFrameRecord(f *wmbus.Frame, now time.Time) FrameRecord {
	return FrameRecord{
		Time:   now,
		Mode:   f.LinkMode(),
		Format: f.Format(),
		RSSI:   f.RSSI(),
		Data:   f.Data(),
	}
}

func (r FrameRecord) Record() []string {
	return []string{
		r.Time.UTC().Format(time.RFC3339),
		r.Mode.String(),
		r.Format.String(),
		strconv.Itoa(int(r.RSSI)),
		strconv.Itoa(len(r.Data)),
		hex.EncodeToString(r.Data),
	}
}
