// Package archive persists accepted telegrams to a SQLite file so RF
// coverage can be analyzed after the fact. Uses the pure-Go driver; no
// cgo.
package archive

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// FrameRow is one archived telegram.
type FrameRow struct {
	ID         uint      `gorm:"primarykey"`
	ReceivedAt time.Time `gorm:"index;not null"`
	Mode       string    `gorm:"size:2;not null"`
	Format     string    `gorm:"size:1;not null"`
	RSSI       int16     `gorm:"not null"`
	Length     int       `gorm:"not null"`
	Payload    string    `gorm:"not null"` // lowercase hex
}

func (FrameRow) TableName() string {
	return "frames"
}

// Archive owns the database handle. HandleFrame is called from the
// dispatcher, so inserts must stay cheap; WAL keeps writers from
// blocking readers poking at the file.
type Archive struct {
	db  *gorm.DB
	log *logrus.Entry
}

// Open creates or opens the archive and migrates its schema.
func Open(path string, log *logrus.Logger) (*Archive, error) {
	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open frame archive")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "frame archive handle")
	}
	if err := configure(sqlDB); err != nil {
		return nil, errors.Wrap(err, "configure frame archive")
	}

	if err := db.AutoMigrate(&FrameRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate frame archive")
	}

	entry := log.WithField("component", "archive")
	entry.WithField("path", path).Info("frame archive open")
	return &Archive{db: db, log: entry}, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}

// HandleFrame stores a frame and claims it. Insert failures are logged
// and otherwise ignored; losing an archive row must not disturb the
// pipeline.
func (a *Archive) HandleFrame(f *wmbus.Frame) {
	row := FrameRow{
		ReceivedAt: time.Now().UTC(),
		Mode:       f.LinkMode().String(),
		Format:     f.Format().String(),
		RSSI:       int16(f.RSSI()),
		Length:     len(f.Data()),
		Payload:    f.Hex(),
	}
	if err := a.db.Create(&row).Error; err != nil {
		a.log.WithError(err).Warn("failed to archive frame")
		return
	}
	f.MarkHandled()
}

// Count reports how many frames are stored.
func (a *Archive) Count() (int64, error) {
	var n int64
	err := a.db.Model(&FrameRow{}).Count(&n).Error
	return n, err
}

func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
