package main

import (
	"roster/client/es"
	"roster/client/idp"
	"roster/directory"
	"roster/domain/invitation"
	"roster/idgen"
	"roster/indices"
	"roster/infra/tracing"
	"roster/persistence"
	"roster/servehttp"
	"roster/session"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Info("service start")

	closer, err := tracing.InitTracerFromEnv()
	if err != nil {
		logrus.Fatalf("init tracer failed %v", err)
	}
	defer closer.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == persistence.DriverMysql {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database conneciton failed %v", err)
	}
	defer ds.Stop()

	// database migration (race condition)
	store := directory.NewGormStore(ds)
	if err := store.AutoMigrate(); err != nil {
		logrus.Fatalf("database migration failed %v", err)
	}

	provider, err := idp.BuildClientFromEnv()
	if err != nil {
		logrus.Fatalf("identity provider config failed %v", err)
	}
	if _, err := es.CreateClientFromEnv(); err != nil {
		logrus.Fatalf("elasticsearch client failed %v", err)
	}
	crontab, err := indices.StartCron(store)
	if err != nil {
		logrus.Fatalf("index cron failed %v", err)
	}
	defer crontab.Stop()
	if err := session.InitTokenCacheFromEnv(); err != nil {
		logrus.Fatalf("session cache config failed %v", err)
	}
	paging, err := invitation.PagingFromEnv()
	if err != nil {
		logrus.Fatalf("invitation paging config failed %v", err)
	}

	services := servehttp.NewServices(store, provider, paging, idgen.NewWorker())
	servehttp.StartHTTPServer(servehttp.BuildEngine(services))
}
