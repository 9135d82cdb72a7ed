package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"swapengine/internal/config"
	"swapengine/internal/handler"
	"swapengine/internal/svc"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"
)

var configFile = flag.String("f", "etc/swapengine.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)
	if err := c.Validate(); err != nil {
		logx.Must(fmt.Errorf("invalid config %s: %w", *configFile, err))
	}

	server := rest.MustNewServer(c.RestConf)
	defer server.Stop()

	ctx := svc.NewServiceContext(c)
	defer ctx.Close()
	handler.RegisterHandlers(server, ctx)
	httpx.SetErrorHandlerCtx(handler.ErrorHandler)

	// 设置优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Starting server at %s:%d...\n", c.Host, c.Port)
	fmt.Printf("默认策略: %s, 回退: %v, 链: %s\n", c.Swap.DefaultStrategy, c.Swap.Fallbacks, c.Swap.Chain)

	go func() {
		server.Start()
	}()

	<-quit
	fmt.Println("\n🛑 收到退出信号，正在优雅关闭服务...")
	fmt.Println("✅ 服务已安全退出")
}
