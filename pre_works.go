package PaimengGate

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/storage"
	"github.com/RicheyJang/PaimengGate/utils"
	"github.com/RicheyJang/PaimengGate/utils/consts"

	"github.com/fsnotify/fsnotify"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	zero "github.com/wdvxdr1123/ZeroBot"
)

func init() {
	pflag.StringP("server", "s", "ws://127.0.0.1:6700/", "the websocket server address")
	pflag.StringSliceP("superuser", "u", []string{}, "all superusers' id")
	pflag.StringP("nickname", "n", "派蒙", "the bot's nickname")
	pflag.StringP("log", "l", "info", "the level of logging")
	pflag.StringP("config", "c", consts.DefaultConfigDir, "the directory of config files")
	setDefaults(viper.GetViper())
}

// 主配置的默认值
func setDefaults(v *viper.Viper) {
	// 后端配置
	v.SetDefault("server.token", "")
	// 日志配置
	v.SetDefault("log.date", 30)
	// 数据库配置
	v.SetDefault("db.type", storage.SQLite)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "username")
	v.SetDefault("db.passwd", "password")
	v.SetDefault("db.name", consts.DefaultSQLitePath)
	// K-V数据库配置
	v.SetDefault("kv.type", storage.LevelDB)
	v.SetDefault("kv.path", consts.DefaultLevelDBDir)
	v.SetDefault("kv.redis.addr", "127.0.0.1:6379")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.passwd", "")
	v.SetDefault("kv.redis.prefix", "gate:")
	// 准入状态定时保存
	v.SetDefault("save.spec", "@every 5m")
	// 全局限流：每位用户每350ms至多1次调用
	v.SetDefault("limiter.cd", "350ms")
	v.SetDefault("limiter.burst", 1)
}

// DoPreWorks 进行全局初始化工作：解析命令行、读取主配置、初始化日志
func DoPreWorks() {
	pflag.Parse()
	_ = viper.BindPFlag("superuser", pflag.Lookup("superuser"))
	_ = viper.BindPFlag("nickname", pflag.Lookup("nickname"))
	_ = viper.BindPFlag("server.address", pflag.Lookup("server"))
	_ = viper.BindPFlag("log.level", pflag.Lookup("log"))
	// 读取主配置
	err := flushMainConfig(ConfigDir(), consts.MainConfigFileName)
	if err != nil {
		log.Fatal("FlushMainConfig err: ", err)
		return
	}
	// 初始化日志
	err = setupLogger()
	if err != nil {
		log.Fatal("setupLogger err: ", err)
		return
	}
}

// ConfigDir 配置文件所在目录
func ConfigDir() string {
	if f := pflag.Lookup("config"); f != nil && len(f.Value.String()) > 0 {
		return f.Value.String()
	}
	return consts.DefaultConfigDir
}

// ManagerConfig 由主配置生成准入管理器配置
func ManagerConfig() manager.Config {
	return managerConfigFrom(viper.GetViper())
}

func managerConfigFrom(v *viper.Viper) manager.Config {
	return manager.Config{
		DB: storage.DBConfig{
			Type:   v.GetString("db.type"),
			Host:   v.GetString("db.host"),
			Port:   v.GetInt("db.port"),
			User:   v.GetString("db.user"),
			Passwd: v.GetString("db.passwd"),
			Name:   v.GetString("db.name"),
		},
		KV: storage.KVConfig{
			Type:      v.GetString("kv.type"),
			Path:      v.GetString("kv.path"),
			RedisAddr: v.GetString("kv.redis.addr"),
			RedisDB:   v.GetInt("kv.redis.db"),
			RedisPass: v.GetString("kv.redis.passwd"),
			Prefix:    v.GetString("kv.redis.prefix"),
		},
		SaveSpec:    v.GetString("save.spec"),
		GlobalCD:    v.GetDuration("limiter.cd"),
		GlobalBurst: v.GetInt("limiter.burst"),
	}
}

var (
	hooksMu   sync.Mutex
	mainHooks []func()
)

// OnMainConfigChange 主配置文件变更后调用hook
func OnMainConfigChange(hook ...func()) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	mainHooks = append(mainHooks, hook...)
}

func callMainConfigHooks() {
	hooksMu.Lock()
	hooks := append([]func(){}, mainHooks...)
	hooksMu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// 设置日志
func setupLogger() error {
	// 日志等级
	log.SetLevel(log.InfoLevel)
	if l, ok := flagLToLevel[strings.ToLower(viper.GetString("log.level"))]; ok {
		log.SetLevel(l)
	}
	// 日志格式
	log.SetFormatter(&utils.SimpleFormatter{})
	// 日志滚动切割
	logf, err := rotatelogs.New(
		utils.PathJoin(consts.DefaultLogDir, "gate-%Y-%m-%d.log"),
		rotatelogs.WithLinkName(utils.PathJoin(consts.DefaultLogDir, "gate.log")),
		rotatelogs.WithMaxAge(time.Duration(viper.GetInt("log.date"))*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		log.Error("Get rotate logs err: ", err)
		return err
	}
	// 日志输出
	log.SetOutput(io.MultiWriter(os.Stdout, logf))
	return nil
}

var flagLToLevel = map[string]log.Level{
	"debug":   log.DebugLevel,
	"info":    log.InfoLevel,
	"warn":    log.WarnLevel,
	"warning": log.WarnLevel,
	"error":   log.ErrorLevel,
}

// 从文件和命令行中刷新所有主配置，若文件不存在将会把配置写入该文件
func flushMainConfig(configPath string, configFileName string) error {
	fullPath := utils.PathJoin(configPath, configFileName)
	viper.SetConfigFile(fullPath)
	if utils.FileExists(fullPath) { // 配置文件已存在：合并自配置文件后重新写入
		err := viper.MergeInConfig()
		if err != nil {
			log.Error("FlushMainConfig error in MergeInConfig err: ", err)
			return err
		}
		_ = viper.WriteConfigAs(fullPath)
	} else { // 配置文件不存在：写入配置
		if _, err := utils.MakeDirWithMode(configPath, 0o755); err != nil {
			return err
		}
		err := viper.SafeWriteConfigAs(fullPath)
		if err != nil {
			log.Error("FlushMainConfig error in SafeWriteConfig err: ", err)
			return err
		}
		log.SetFormatter(&utils.SimpleFormatter{})
		log.Fatalf("初始化配置文件%v完成，请对该配置文件进行配置后，重启本程序", configFileName)
	}
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) { // 配置文件发生变更之后会调用的回调函数
		zero.BotConfig.SuperUsers = utils.ParseSuperUsers(viper.Get("superuser"))
		zero.BotConfig.NickName = []string{viper.GetString("nickname")}
		_ = setupLogger()
		callMainConfigHooks()
		log.Infof("reload main config from %v", e.Name)
	})
	return nil
}
