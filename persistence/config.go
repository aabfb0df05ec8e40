package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

const (
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite3"
)

var (
	DefaultConnectTimeout = 5 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
)

type DatabaseConfig struct {
	DriverType   string
	DriverArgs   string
	MaxOpenConns int
}

// ParseDatabaseConfigFromEnv DB_DRIVER, DB_DSN, DB_MAX_OPEN_CONNS, DB_CONNECT_TIMEOUT, DB_QUERY_TIMEOUT
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := os.Getenv("DB_DRIVER")
	if driverType == "" {
		driverType = DriverMysql
	}
	switch driverType {
	case DriverMysql, DriverPostgres, DriverSqlite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER '%s'", driverType)
	}

	driverArgs := os.Getenv("DB_DSN")
	if driverArgs == "" {
		return nil, errors.New("DB_DSN is required")
	}

	connectTimeout, err := durationFromEnv("DB_CONNECT_TIMEOUT", DefaultConnectTimeout)
	if err != nil {
		return nil, err
	}
	queryTimeout, err := durationFromEnv("DB_QUERY_TIMEOUT", DefaultQueryTimeout)
	if err != nil {
		return nil, err
	}
	driverArgs, err = BoundedDSN(driverType, driverArgs, connectTimeout, queryTimeout)
	if err != nil {
		return nil, err
	}

	config := &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS '%s'", v)
		}
		config.MaxOpenConns = n
	}
	return config, nil
}

func durationFromEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s '%s'", key, v)
	}
	return d, nil
}

// BoundedDSN adds connect and query timeouts to dsn unless it already carries them.
// gorm does not pass request contexts to the driver, so the driver timeouts bound every store call.
func BoundedDSN(driverType, dsn string, connectTimeout, queryTimeout time.Duration) (string, error) {
	switch driverType {
	case DriverMysql:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", err
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = connectTimeout
		}
		if cfg.ReadTimeout == 0 {
			cfg.ReadTimeout = queryTimeout
		}
		if cfg.WriteTimeout == 0 {
			cfg.WriteTimeout = queryTimeout
		}
		return cfg.FormatDSN(), nil
	case DriverPostgres:
		params := map[string]string{
			"connect_timeout":   strconv.Itoa(int(connectTimeout.Seconds())),
			"statement_timeout": strconv.FormatInt(queryTimeout.Milliseconds(), 10),
		}
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			u, err := url.Parse(dsn)
			if err != nil {
				return "", err
			}
			q := u.Query()
			for k, v := range params {
				if q.Get(k) == "" {
					q.Set(k, v)
				}
			}
			u.RawQuery = q.Encode()
			return u.String(), nil
		}
		for _, k := range []string{"connect_timeout", "statement_timeout"} {
			if !strings.Contains(dsn, k+"=") {
				dsn += " " + k + "=" + params[k]
			}
		}
		return strings.TrimSpace(dsn), nil
	default:
		return dsn, nil
	}
}

// PrepareMysqlDatabase creates the database named in the DSN when it does not exist.
func PrepareMysqlDatabase(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	if databaseName == "" {
		return errors.New("database name is missing in DSN")
	}
	cfg.DBName = ""

	db, err := sql.Open(DriverMysql, cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")
	return err
}
