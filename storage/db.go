package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RicheyJang/PaimengGate/utils"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	MySQL      = "mysql"
	PostgreSQL = "postgresql"
	SQLite     = "sqlite"
)

// DBConfig 关系型数据库配置
type DBConfig struct {
	Type   string
	Host   string
	Port   int
	User   string
	Passwd string
	Name   string // SQLite时为数据库文件路径
}

// OpenDB 按配置连接关系型数据库
func OpenDB(config DBConfig) (*gorm.DB, error) {
	gormC := &gorm.Config{
		Logger: utils.NewGormLogger(),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   "t_", // 表名前缀，`GroupSetting`表为`t_group_setting`
			SingularTable: true,
		},
	}
	var dialector gorm.Dialector
	var dsn string
	switch strings.ToLower(config.Type) {
	case MySQL:
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			config.User, config.Passwd, config.Host, config.Port, config.Name)
		dialector = mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			SkipInitializeWithVersion: false,
		})
	case PostgreSQL, "postgres":
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=Asia/Shanghai",
			config.Host, config.User, config.Passwd, config.Name, config.Port)
		dialector = postgres.Open(dsn)
	case SQLite, "":
		dsn = config.Name
		prePath, _ := filepath.Split(dsn)
		if len(prePath) > 0 {
			if _, err := utils.MakeDirWithMode(prePath, 0o755); err != nil {
				return nil, fmt.Errorf("storage: create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, errors.New("暂不支持此类型数据库")
	}
	db, err := gorm.Open(dialector, gormC)
	if err != nil {
		return nil, fmt.Errorf("storage: open %v: %w", config.Type, err)
	}
	log.Infof("初始化%v数据库成功：%v", config.Type, redactDSN(config, dsn))
	return db, nil
}

// 日志中隐藏密码
func redactDSN(config DBConfig, dsn string) string {
	if len(config.Passwd) == 0 {
		return dsn
	}
	return strings.ReplaceAll(dsn, config.Passwd, "******")
}
