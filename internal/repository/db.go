package repository

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"familytree_go/internal/model"
)

// DB 数据库连接实例
type DB struct {
	*gorm.DB
}

// InitDB 初始化数据库连接
//
// driver为postgres或sqlite；sqlite用于开发和测试环境。
func InitDB(driver, dsn string) (*DB, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	gormDB, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	// 自动迁移数据库表
	err = gormDB.AutoMigrate(
		&model.User{},
		&model.Member{},
		&model.Relative{},
		&model.RingtoneSetting{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	return &DB{gormDB}, nil
}
