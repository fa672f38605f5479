package main

import (
	"flag"
	"net/http"

	"acolhebem-backend/internal/components/chrono"
	"acolhebem-backend/internal/scrapers/cademeupsi"
	"acolhebem-backend/internal/service"
	"acolhebem-backend/lib/configutil"
	"acolhebem-backend/lib/serviceutil"
)

type Config struct {
	Port      int                `json:"port"`
	Route     string             `json:"route"`
	Directory cademeupsi.Options `json:"directory"`
}

func defaultConfig() Config {
	return Config{
		Port:      8000,
		Route:     "/psi-available",
		Directory: cademeupsi.DefaultOptions(),
	}
}

func main() {
	verbose := flag.Bool("v", false, "enable verbose logging and http dumps")
	configPath := flag.String("config", "config.json5", "path to the configuration file")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	tel, shutdown := initTelemetry(ctx, *verbose)
	defer shutdown()

	cfg, err := configutil.ReadConfigWithDefaults(*configPath, defaultConfig())
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	cfg.Directory.Dump = dumpOutput(*verbose, ".dev/http/cademeupsi")

	clock, err := chrono.NewStandardImpl()
	if err != nil {
		serviceutil.Fatal("load timezone", err)
	}

	scraper := cademeupsi.NewScraper(cfg.Directory, clock, tel)
	handler := service.NewAvailableHandler(scraper, clock, service.WithTelemetry(tel))

	mux := http.NewServeMux()
	mux.Handle(cfg.Route, handler)
	mux.HandleFunc("/health", service.HealthHandler)

	err = serviceutil.StartHttpServer(ctx, cfg.Port, mux)
	if err != nil {
		serviceutil.Fatal("serve http", err)
	}
}
