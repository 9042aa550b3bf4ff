package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/RicheyJang/PaimengGate"
	"github.com/RicheyJang/PaimengGate/basic/admin"
	"github.com/RicheyJang/PaimengGate/basic/help"
	"github.com/RicheyJang/PaimengGate/manager"
	"github.com/RicheyJang/PaimengGate/plugins/echo"
	"github.com/RicheyJang/PaimengGate/utils"
	"github.com/RicheyJang/PaimengGate/utils/consts"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	zero "github.com/wdvxdr1123/ZeroBot"
	"github.com/wdvxdr1123/ZeroBot/driver"
)

func main() {
	PaimengGate.DoPreWorks()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, err := manager.Open(ctx, PaimengGate.ManagerConfig())
	if err != nil {
		log.Fatal("初始化准入管理器失败：", err)
	}
	PaimengGate.OnMainConfigChange(func() {
		m.SetGlobalLimit(viper.GetDuration("limiter.cd"), viper.GetInt("limiter.burst"))
	})

	// 注册插件
	for _, setup := range []func(*manager.Manager) error{admin.Setup, help.Setup, echo.Setup} {
		if err = setup(m); err != nil {
			log.Error("注册插件失败：", err)
		}
	}
	if err = m.FlushConfig(PaimengGate.ConfigDir(), consts.PluginConfigFileName); err != nil {
		log.Fatal("读取插件配置失败：", err)
	}
	if err = m.Init(ctx); err != nil {
		log.Fatal("恢复准入状态失败：", err)
	}
	served := make(chan error, 1)
	go func() { served <- m.Serve(ctx) }()

	// 启动服务
	zero.Run(zero.Config{
		NickName:      []string{viper.GetString("nickname")},
		CommandPrefix: "",
		SuperUsers:    utils.ParseSuperUsers(viper.Get("superuser")),
		Driver: []zero.Driver{
			driver.NewWebSocketClient(viper.GetString("server.address"), viper.GetString("server.token")),
		},
	})
	<-ctx.Done()
	log.Info("收到退出信号，正在保存准入状态...")
	if err = <-served; err != nil {
		log.Error("关闭准入管理器失败：", err)
	}
}
