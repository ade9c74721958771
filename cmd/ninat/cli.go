package main

import (
	"github.com/alecthomas/kong"

	"github.com/dep2p/go-ninat/config"
)

// cli 命令行参数，每个参数都可由 NINAT_* 环境变量或 --config 指定的 JSON 提供
type cli struct {
	SocksProxy string `short:"s" name:"socks-proxy" placeholder:"ADDRESS" env:"NINAT_SOCKS_PROXY" help:"SOCKS5 proxy host:port. Probes are tunnelled through UDP ASSOCIATE."`
	Username   string `env:"NINAT_USERNAME" help:"SOCKS5 username (requires --password)."`
	Password   string `env:"NINAT_PASSWORD" help:"SOCKS5 password (requires --username)."`
	Timeout    int64  `short:"w" default:"3000" env:"NINAT_TIMEOUT" help:"Per-probe timeout in milliseconds, 0 waits forever."`

	Attempts int   `default:"3" env:"NINAT_ATTEMPTS" help:"Attempts per probe before giving up."`
	Burst    int   `default:"1" env:"NINAT_BURST" help:"Copies of each request per attempt."`
	Pace     int64 `default:"0" env:"NINAT_PACE" help:"Milliseconds between burst copies."`

	Service       string `default:"nintendo" enum:"nintendo,stun" env:"NINAT_SERVICE" help:"Traversal service (${enum})."`
	Server1       string `name:"server1" env:"NINAT_SERVER1" help:"Nintendo primary server."`
	Server2       string `name:"server2" env:"NINAT_SERVER2" help:"Nintendo secondary server."`
	STUNServer    string `name:"stun-server" env:"NINAT_STUN_SERVER" help:"STUN server host:port."`
	STUNAlternate string `name:"stun-alternate" env:"NINAT_STUN_ALTERNATE" help:"Second STUN server on another IP, for servers without OTHER-ADDRESS."`

	ProxyTimeout int64 `name:"proxy-timeout" default:"10000" env:"NINAT_PROXY_TIMEOUT" help:"SOCKS5 connect and handshake timeout in milliseconds."`
	NoPredict    bool  `name:"no-predict" env:"NINAT_NO_PREDICT" help:"Skip the port allocation measurement."`
	Gateway      bool  `env:"NINAT_GATEWAY" help:"Ask the local router for its external address (direct mode only)."`

	Format      string `default:"text" enum:"text,json" env:"NINAT_FORMAT" help:"Output format (${enum})."`
	MetricsFile string `name:"metrics-file" type:"path" env:"NINAT_METRICS_FILE" help:"Write probe metrics in Prometheus textfile format."`
	Verbose     bool   `short:"v" env:"NINAT_VERBOSE" help:"Debug logging to stderr."`

	Config  kong.ConfigFlag  `help:"JSON file with flag values."`
	Version kong.VersionFlag `short:"V" help:"Print version and exit."`
}

// toConfig 转换为运行配置，校验留给 config.Validate
func (c *cli) toConfig() *config.Config {
	cfg := config.DefaultConfig()

	cfg.Proxy.Address = c.SocksProxy
	cfg.Proxy.Username = c.Username
	cfg.Proxy.Password = c.Password
	cfg.Proxy.HandshakeTimeout = config.Milliseconds(c.ProxyTimeout)

	cfg.Probe.Timeout = config.Milliseconds(c.Timeout)
	cfg.Probe.Attempts = c.Attempts
	cfg.Probe.Burst = c.Burst
	cfg.Probe.Pace = config.Milliseconds(c.Pace)

	cfg.Service.Kind = c.Service
	cfg.Service.Server1 = c.Server1
	cfg.Service.Server2 = c.Server2
	cfg.Service.STUNServer = c.STUNServer
	cfg.Service.STUNAlternate = c.STUNAlternate

	cfg.Predict = !c.NoPredict
	cfg.Gateway = c.Gateway
	cfg.Report.Format = c.Format
	cfg.Report.MetricsFile = c.MetricsFile
	cfg.Verbose = c.Verbose
	return cfg
}
