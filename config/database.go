package config

import (
	"clipshare/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite database at path through the pure-Go modernc driver and
// migrates the clip schema.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: path}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; the aggregator, the sweeper and the read path
	// queue on this single connection. It also keeps ":memory:" databases alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db.Exec("PRAGMA busy_timeout = 5000;")
	if path != ":memory:" {
		db.Exec("PRAGMA journal_mode = WAL;")
	}

	// Auto migrate the schema
	if err := db.AutoMigrate(&models.Clip{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}
