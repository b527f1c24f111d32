package db

import (
	"log"
	"os"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase initializes the SQLite database connection and migrates models.
func InitDatabase(dbPath string) {
	var err error

	newLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      false,
			Colorful:                  true,
		},
	)

	DB, err = gorm.Open(gormlite.Open(dbPath), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	err = DB.AutoMigrate(&Mod{}, &Backup{}, &ReplacedFile{}, &ScanFile{})
	if err != nil {
		log.Fatalf("failed to migrate database schema: %v", err)
	}
}

// OpenMemory opens a throwaway in-memory database, used by tests.
func OpenMemory() (*gorm.DB, error) {
	gdb, err := gorm.Open(gormlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&Mod{}, &Backup{}, &ReplacedFile{}, &ScanFile{}); err != nil {
		return nil, err
	}
	return gdb, nil
}
