package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli"

	"speechpool/config"
	"speechpool/dispatcher"
	"speechpool/logger"
	"speechpool/rpcapi"
)

func main() {
	defaults := config.NewDefaultConfig()

	app := cli.NewApp()
	app.Name = "speechpool"
	app.Usage = "pooling and caching facade in front of a text-to-speech provider"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "host, H", Value: defaults.Host, Usage: "service bind host"},
		cli.IntFlag{Name: "port, P", Value: defaults.Port, Usage: "service bind port"},
		cli.StringFlag{Name: "api-path, A", Value: defaults.APIPath, Usage: "JSON-RPC API path"},
		cli.StringFlag{Name: "tts-api-url", Usage: "text-to-speech upstream url", EnvVar: "TTS_API_URL"},
		cli.IntFlag{Name: "tts-api-limit", Value: defaults.TTSAPILimit, Usage: "max concurrent TTS conversions"},
		cli.IntFlag{Name: "max-cache-items", Value: defaults.MaxCacheItems, Usage: "max cached conversions held in the LRU"},
		cli.StringFlag{Name: "hash-algorithm", Value: string(defaults.HashAlgorithm), Usage: "cache key hash: md5 or sha256"},
		cli.DurationFlag{Name: "stats-interval", Value: defaults.StatsInterval, Usage: "heartbeat log interval, 0 disables it"},
		cli.BoolFlag{Name: "verbose, v", Usage: "enable debug logging", EnvVar: "DEBUG"},
	}

	app.Action = func(c *cli.Context) error {
		cfg := config.NewDefaultConfig()
		cfg.Host = c.String("host")
		cfg.Port = c.Int("port")
		cfg.APIPath = c.String("api-path")
		cfg.TTSAPIURL = c.String("tts-api-url")
		cfg.TTSAPILimit = c.Int("tts-api-limit")
		cfg.MaxCacheItems = c.Int("max-cache-items")
		cfg.StatsInterval = c.Duration("stats-interval")
		cfg.Verbose = c.Bool("verbose")
		if c.String("hash-algorithm") == string(config.HashSHA256) {
			cfg.HashAlgorithm = config.HashSHA256
		}

		if cfg.Verbose {
			_ = os.Setenv("DEBUG", "true")
		}

		return run(cfg)
	}

	if err := app.Run(os.Args); err != nil {
		logger.Default.Fatalf("speechpool: %v", err)
	}
}

func run(cfg *config.Config) error {
	d := dispatcher.New(cfg, nil, nil, logger.Default)

	if cfg.StatsInterval > 0 {
		startHeartbeat(d, cfg)
	}

	server := rpcapi.NewServer(d, logger.Default)
	mux := http.NewServeMux()
	mux.Handle(cfg.APIPath, server.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Default.Logf("speechpool: JSON-RPC endpoint is running (`%s`)", cfg.APIPath)
	logger.Default.Logf("speechpool: server is listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func startHeartbeat(d *dispatcher.Dispatcher, cfg *config.Config) {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.StatsInterval)
	_, err := c.AddFunc(spec, func() {
		snap := d.Heartbeat()
		logger.Default.Logf("speechpool: heartbeat cache=%d in-flight=%d/%d deliveries=%d",
			snap.CacheSize, snap.InFlightDrivers, cfg.TTSAPILimit, snap.LiveDeliveries)
	})
	if err != nil {
		logger.Default.Errorf("speechpool: failed to schedule heartbeat: %v", err)
		return
	}
	c.Start()
}
