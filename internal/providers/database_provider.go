package providers

import (
	"fmt"
	"iotd/internal/structures"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func postgresDSN(conf structures.DatabaseConfig) string {
	sslMode := conf.SslMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		conf.Host, conf.User, conf.Password, conf.Name, conf.Port, sslMode)
}

func NewDatabaseProvider(conf *structures.Config, logger Logger) (*gorm.DB, error) {
	gormConf := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if conf.Database.LogSQL {
		gormConf.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	switch conf.Database.Driver {
	case "postgres":
		dialector = postgres.Open(postgresDSN(conf.Database))
	case "sqlite":
		dialector = sqlite.Open(conf.Database.Name)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Database.Driver)
	}

	db, err := gorm.Open(dialector, gormConf)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", conf.Database.Driver, err)
	}
	logger.Infof(TypeApp, "Connected to %s database %s", conf.Database.Driver, conf.Database.Name)
	return db, nil
}
