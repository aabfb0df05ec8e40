package testinfra

import (
	"log"
	"os"
	"roster/persistence"
	"strings"

	"github.com/google/uuid"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
}

// StartTestDatabase runs on MySQL when TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306) is set,
// otherwise on a private in-memory SQLite database.
func StartTestDatabase(baseName string) *TestDatabase {
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	var dbConfig *persistence.DatabaseConfig
	if mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE"); mysqlSvc != "" {
		dbConfig = &persistence.DatabaseConfig{
			DriverType: persistence.DriverMysql,
			DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
		}
		// create database (no conflict)
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			log.Fatalf("failed to prepare database %v\n", err)
		}
	} else {
		dbConfig = &persistence.DatabaseConfig{
			DriverType: persistence.DriverSqlite,
			DriverArgs: "file:" + databaseName + "?mode=memory&cache=shared",
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	// connect
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database conneciton failed %v\n", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.DS.DriverType() == persistence.DriverMysql && testDatabase.DS.GormDB() != nil {
		if err := testDatabase.DS.GormDB().Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
			log.Println("failed to drop test database: " + testDatabase.TestDatabaseName)
		} else {
			log.Println("test database " + testDatabase.TestDatabaseName + " dropped")
		}
	}

	// close connection, in-memory databases vanish with it
	testDatabase.DS.Stop()
}
