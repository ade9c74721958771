// Package main 提供 ninat 命令行入口
//
// ninat 用主机联机测试服务（或 STUN）判定本机所在 NAT 的映射与过滤行为，
// 可经由 SOCKS5 代理的 UDP ASSOCIATE 测量代理出口的 NAT。
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/dep2p/go-ninat/internal/app"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Exit))
}

func run(args []string, stdout, stderr io.Writer, exit func(int)) int {
	c, err := parse(args, stdout, stderr, exit)
	if err != nil {
		fmt.Fprintln(stderr, "ninat:", err)
		return exitConfig
	}
	cfg := c.toConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.Run(ctx, cfg)
	if res != nil {
		if werr := writeReport(stdout, cfg.Report.Format, res); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, "ninat:", err)
	}
	return exitCode(res, err)
}

func parse(args []string, stdout, stderr io.Writer, exit func(int)) (*cli, error) {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("ninat"),
		kong.Description("Classify the NAT in front of this host, or behind a SOCKS5 proxy."),
		kong.Vars{"version": "ninat " + version},
		kong.Configuration(kong.JSON),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	return &c, nil
}
