package persistence

import (
	"os"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	otgorm "github.com/smacker/opentracing-gorm"
)

type DataSourceManager struct {
	gormDB *gorm.DB

	DatabaseConfig *DatabaseConfig
}

func (m *DataSourceManager) Start() error {
	db, err := connect(m.DatabaseConfig)
	if err != nil {
		return err
	}
	m.gormDB = db
	if os.Getenv("GIN_MODE") != "release" {
		m.gormDB.LogMode(true)
	}
	otgorm.AddGormCallbacks(m.gormDB)
	return nil
}

func (m *DataSourceManager) Stop() {
	if m.gormDB != nil {
		if err := m.gormDB.Close(); err != nil {
			logrus.Warnf("failed to close DB: %v", err)
		}
		m.gormDB = nil
	}
}

func (m *DataSourceManager) GormDB() *gorm.DB {
	if m.gormDB != nil {
		return m.gormDB.New()
	}
	return nil
}

func (m *DataSourceManager) DriverType() string {
	if m.DatabaseConfig == nil {
		return ""
	}
	return m.DatabaseConfig.DriverType
}

func connect(config *DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(config.DriverType, config.DriverArgs)
	if err != nil {
		return nil, err
	}
	if config.DriverType == DriverSqlite {
		// one connection, so in-memory databases are shared and writes never see SQLITE_BUSY
		db.DB().SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.DB().SetMaxOpenConns(config.MaxOpenConns)
	}
	err = db.DB().Ping()
	if err != nil {
		return nil, err
	}
	return db, nil
}
