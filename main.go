package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/Dreamacro/clash-dashboard/api"
	"github.com/Dreamacro/clash-dashboard/component/filtertext"
	"github.com/Dreamacro/clash-dashboard/component/profile"
	"github.com/Dreamacro/clash-dashboard/component/profile/cachefile"
	"github.com/Dreamacro/clash-dashboard/component/query"
	"github.com/Dreamacro/clash-dashboard/config"
	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/hub"
	"github.com/Dreamacro/clash-dashboard/hub/route"
	"github.com/Dreamacro/clash-dashboard/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
)

var (
	flagset            map[string]bool
	version            bool
	testConfig         bool
	homeDir            string
	configFile         string
	externalController string
	secret             string
)

func init() {
	flag.StringVar(&homeDir, "d", "", "set configuration directory")
	flag.StringVar(&configFile, "f", "", "specify configuration file")
	flag.StringVar(&externalController, "ext-ctl", "", "override external controller address")
	flag.StringVar(&secret, "secret", "", "override secret for RESTful API")
	flag.BoolVar(&version, "v", false, "show current version of clash-dashboard")
	flag.BoolVar(&testConfig, "t", false, "test configuration and exit")
	flag.Parse()

	flagset = map[string]bool{}
	flag.Visit(func(f *flag.Flag) {
		flagset[f.Name] = true
	})
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	if version {
		fmt.Printf("%s %s %s %s with %s %s\n", C.Name, C.Version, runtime.GOOS, runtime.GOARCH, runtime.Version(), C.BuildTime)
		return
	}

	if homeDir != "" {
		if !filepath.IsAbs(homeDir) {
			currentDir, _ := os.Getwd()
			homeDir = filepath.Join(currentDir, homeDir)
		}
		C.SetHomeDir(homeDir)
	}

	if configFile != "" {
		if !filepath.IsAbs(configFile) {
			currentDir, _ := os.Getwd()
			configFile = filepath.Join(currentDir, configFile)
		}
		C.SetConfig(configFile)
	} else {
		configFile = filepath.Join(C.Path.HomeDir(), C.Path.Config())
		C.SetConfig(configFile)
	}

	if err := config.Init(C.Path.HomeDir()); err != nil {
		log.Fatalln("Initial configuration directory error: %s", err.Error())
	}

	cfg, err := config.ParseWithPath(C.Path.Config())
	if err != nil {
		log.Fatalln("Parse config error: %s", err.Error())
	}

	if testConfig {
		fmt.Printf("configuration file %s test is successful\n", C.Path.Config())
		return
	}

	if flagset["ext-ctl"] {
		cfg.General.ExternalController = externalController
	}
	if flagset["secret"] {
		cfg.General.Secret = secret
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		log.Fatalln("Start error: %s", err.Error())
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log.SetLevel(cfg.General.LogLevel)
	profile.StoreFilterText.Store(cfg.Profile.StoreFilterText)

	cache := cachefile.Open(C.Path.Cache())
	defer cache.Close()

	queries := query.New(query.WithCacheTime(cfg.Query.CacheTime), query.WithStaleTime(cfg.Query.StaleTime))
	defer queries.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	if err := queries.RegMetricsTo(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	filter := filtertext.New(cache)
	h := hub.New(queries, api.New(nil), filter)
	server := route.New(h, filter, cfg.Upstream, cfg.General.Secret, reg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infoln("Rules of %s served by %s", cfg.Upstream.BaseURL, C.Name)
	return server.Start(ctx, cfg.General.ExternalController)
}
