// 本文件用于面板客户端入口：轮询绘制仪表或提交负载表单
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"schwer/internal/config"
	"schwer/internal/dashboard"
	"schwer/internal/logger"
	"schwer/internal/metrics"
	"schwer/internal/models"
)

const requestTimeout = 5 * time.Second

var opts struct {
	Config  string `short:"c" long:"config" description:"配置文件路径" default:"config.yaml"`
	Server  string `short:"s" long:"server" description:"服务端地址，默认取配置中的 dashboard_server"`
	Verbose bool   `short:"v" long:"verbose" description:"输出调试日志"`
}

type watchCommand struct {
	Out   string `short:"o" long:"out" description:"仪表 PNG 输出目录，默认取配置中的 dashboard_out_dir"`
	Quiet bool   `short:"q" long:"quiet" description:"不在标准输出镜像回退文本"`
}

type cpuCommand struct {
	Pct string `long:"pct" description:"CPU 负载百分比" required:"true"`
}

type memCommand struct {
	Size string `long:"size" description:"内存分配大小 (MB)" required:"true"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	mustAddCommand(parser, "watch", "轮询服务端并绘制仪表", "每秒轮询 /cpu 与 /mem，将仪表写为 PNG 并输出回退文本", &watchCommand{})
	mustAddCommand(parser, "cpu", "设置 CPU 负载", "提交 cpu-pct 表单并输出服务端响应", &cpuCommand{})
	mustAddCommand(parser, "mem", "设置内存分配", "提交 mem-size 表单并输出服务端响应", &memCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAddCommand(parser *flags.Parser, name, short, long string, data interface{}) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

// setup 加载配置并初始化日志，命令行参数优先于配置
func setup() (*models.Config, error) {
	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Server != "" {
		cfg.DashboardServer = opts.Server
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, err
	}
	if opts.Verbose {
		logger.SetLogLevel("debug")
	}
	return cfg, nil
}

// newClient 单次轮询串行执行，请求挂起会卡住对应仪表，因此设置超时
func newClient() *http.Client {
	return &http.Client{
		Timeout:   requestTimeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

func newPage(cfg *models.Config, client *http.Client, outDir string, mirror bool) *dashboard.Page {
	pageOpts := dashboard.PageOptions{
		Server:  cfg.DashboardServer,
		OutDir:  outDir,
		Client:  client,
		Alerter: dashboard.WriterAlerter{W: os.Stdout},
		Metrics: metrics.Global(),
	}
	if mirror {
		pageOpts.Mirror = os.Stdout
	}
	return dashboard.NewPage(pageOpts)
}

// newWatch 页面表单与轮询器共用同一个客户端
func newWatch(cfg *models.Config, outDir string, mirror bool) (*dashboard.Page, *dashboard.Poller) {
	client := newClient()
	page := newPage(cfg, client, outDir, mirror)
	poller := dashboard.NewPoller(cfg.DashboardServer, client, page, metrics.Global())
	return page, poller
}

func (c *watchCommand) Execute(args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	outDir := c.Out
	if outDir == "" {
		outDir = cfg.DashboardOutDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, poller := newWatch(cfg, outDir, !c.Quiet)

	logger.Info("开始轮询 %s，仪表输出到 %s", cfg.DashboardServer, outDir)
	poller.Run(ctx)
	_, cpuTicks := poller.LastCPU()
	_, memTicks := poller.LastMem()
	logger.Info("轮询已停止，CPU %d 次，内存 %d 次", cpuTicks, memTicks)
	return nil
}

func (c *cpuCommand) Execute(args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	page := newPage(cfg, newClient(), "", false)
	page.CPUForm.Set("pct", c.Pct)
	_, err = page.CPUForm.Submit(context.Background())
	return err
}

func (c *memCommand) Execute(args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	page := newPage(cfg, newClient(), "", false)
	page.MemForm.Set("size", c.Size)
	_, err = page.MemForm.Submit(context.Background())
	return err
}
