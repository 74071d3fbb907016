package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"multisig-core/pkg/logger"
)

// MemorySQLiteDSN 每个 name 对应一个独立的内存数据库
func MemorySQLiteDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// ConnectSQLite 单节点开发模式与测试使用。
// SQLite 只允许一个写连接，连接池限制为 1 避免 database is locked。
func ConnectSQLite(dsn, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(ParseLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("无法打开 SQLite 数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	logger.Debug("SQLite 已打开", zap.String("dsn", dsn))
	return db, nil
}
