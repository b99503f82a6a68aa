package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/malwarebo/statsbot/api"
	"github.com/malwarebo/statsbot/cache"
	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/discord"
	"github.com/malwarebo/statsbot/middleware"
	"github.com/malwarebo/statsbot/monitoring"
	"github.com/malwarebo/statsbot/services"
	"github.com/malwarebo/statsbot/stores"
	"github.com/malwarebo/statsbot/utils"
	"github.com/malwarebo/statsbot/webhooks"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func printBanner() {
	fmt.Printf("%s%s", colorCyan, colorBold)
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║  📊 StatsBot - Discord Server Statistics                     ║")
	fmt.Println("║                                                              ║")
	fmt.Println("║  Guild counters, member events and webhook logging           ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("%s", colorReset)
}

func printStep(step, message string) {
	fmt.Printf("%s[%s]%s %s%s%s\n", colorBlue, step, colorReset, colorBold, message, colorReset)
}

func printSuccess(message string) {
	fmt.Printf("%s✓%s %s\n", colorGreen, colorReset, message)
}

func printWarning(message string) {
	fmt.Printf("%s⚠%s %s\n", colorYellow, colorReset, message)
}

func printError(message string) {
	fmt.Printf("%s✗%s %s\n", colorRed, colorReset, message)
}

func printInfo(message string) {
	fmt.Printf("%sℹ%s %s\n", colorCyan, colorReset, message)
}

func main() {
	printBanner()
	fmt.Println()

	printStep("1/9", "Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}
	printSuccess("Configuration loaded successfully")

	printStep("2/9", "Validating configuration...")
	if err := cfg.Validate(); err != nil {
		printError(fmt.Sprintf("Configuration validation failed: %v", err))
		os.Exit(1)
	}
	for _, warning := range cfg.Webhooks.Validate() {
		printWarning(warning)
	}
	printSuccess("Configuration validation passed")

	printStep("3/9", "Connecting to database...")
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		printError(fmt.Sprintf("Failed to connect to database: %v", err))
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		printError(fmt.Sprintf("Failed to get database instance: %v", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	statsStore := stores.CreateStatsStore(db)
	if err := statsStore.Migrate(); err != nil {
		printError(fmt.Sprintf("Failed to run database migrations: %v", err))
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Connected to PostgreSQL at %s:%d", cfg.Database.Host, cfg.Database.Port))

	printStep("4/9", "Connecting to Redis...")
	var statsCache *cache.StatsCache
	statsCache, err = cache.CreateStatsCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	if err != nil {
		printWarning(fmt.Sprintf("Failed to connect to Redis: %v (continuing without cache)", err))
		statsCache = nil
	} else {
		defer statsCache.Close()
		printSuccess(fmt.Sprintf("Connected to Redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port))
	}

	printStep("5/9", "Starting webhook pipeline...")
	manager := webhooks.NewManager(cfg.Webhooks, utils.NewLogger("webhooks"))
	manager.Start()
	defer manager.Stop()
	if cfg.Webhooks.Enabled() {
		printSuccess(fmt.Sprintf("Webhook pipeline started (%d destinations)", len(cfg.Webhooks.URLs())))
	} else {
		printWarning("No webhook URLs configured, events stay in local logs")
	}

	printStep("6/9", "Starting performance monitoring...")
	sampler := monitoring.NewSampler()
	monitor := monitoring.NewMonitor(cfg.Monitoring, sampler, manager)
	monitor.Start()
	defer monitor.Stop()
	if cfg.Monitoring.Enabled {
		printSuccess("Performance monitoring started")
	} else {
		printInfo("Performance monitoring disabled")
	}

	printStep("7/9", "Starting stats service...")
	discordClient := discord.NewClient(cfg.Bot.Token)
	var snapshotCache services.SnapshotCache
	if statsCache != nil {
		snapshotCache = statsCache
	}
	statsService := services.NewStatsService(cfg.Bot, discordClient, statsStore, snapshotCache, manager)
	statsService.Start()
	defer statsService.Stop()
	printSuccess(fmt.Sprintf("Stats service started (update every %s)", cfg.Bot.UpdateInterval))

	printStep("8/9", "Setting up HTTP server...")
	var apiCache api.SnapshotCache
	if statsCache != nil {
		apiCache = statsCache
	}
	statsHandler := api.CreateStatsHandler(cfg.Bot.GuildID, statsStore, apiCache, manager)
	metricsHandler := api.CreateMetricsHandler(sampler)

	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.RateLimitMiddleware)

	router.HandleFunc("/health", api.HealthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler.HandleMetrics).Methods("GET")
	router.HandleFunc("/stats", statsHandler.HandleStats).Methods("GET")
	router.HandleFunc("/webhooks/status", statsHandler.HandleWebhookStatus).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	printSuccess("HTTP server configured")

	printStep("9/9", "Announcing startup...")
	manager.SendLog(webhooks.LevelInfo, "StatsBot started", map[string]interface{}{
		"environment": cfg.Environment,
		"guild_id":    cfg.Bot.GuildID,
	})

	fmt.Println()
	fmt.Printf("%s%s🎉 StatsBot is ready!%s\n", colorGreen, colorBold, colorReset)
	fmt.Println()
	fmt.Printf("%s%sAPI Endpoints:%s\n", colorPurple, colorBold, colorReset)
	fmt.Printf("  %s•%s Health Check:   %shttp://localhost:%s/health%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Metrics:        %shttp://localhost:%s/metrics%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Guild Stats:    %shttp://localhost:%s/stats%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Printf("  %s•%s Webhook Status: %shttp://localhost:%s/webhooks/status%s\n", colorCyan, colorReset, colorYellow, cfg.Server.Port, colorReset)
	fmt.Println()
	fmt.Printf("%s%sEnvironment:%s %s%s%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Environment, colorReset)
	fmt.Printf("%s%sGuild:%s %s%s%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Bot.GuildID, colorReset)
	fmt.Printf("%s%sDatabase:%s %s%s:%d%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Database.Host, cfg.Database.Port, colorReset)
	if statsCache != nil {
		fmt.Printf("%s%sRedis:%s %s%s:%d%s\n", colorPurple, colorBold, colorReset, colorYellow, cfg.Redis.Host, cfg.Redis.Port, colorReset)
	}
	fmt.Println()
	fmt.Printf("%s%sPress Ctrl+C to stop the bot%s\n", colorYellow, colorBold, colorReset)
	fmt.Println()

	go func() {
		printInfo(fmt.Sprintf("Starting HTTP server on port %s...", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			printError(fmt.Sprintf("Server failed to start: %v", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println()
	printWarning("Shutting down StatsBot...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		printError(fmt.Sprintf("Server forced to shutdown: %v", err))
		os.Exit(1)
	}

	statsService.Stop()
	monitor.Stop()
	manager.SendLog(webhooks.LevelInfo, "StatsBot shutting down", nil)
	manager.Stop()

	printSuccess("StatsBot stopped gracefully")
	fmt.Println()
	fmt.Printf("%s%s👋 Thanks for using StatsBot!%s\n", colorCyan, colorBold, colorReset)
}
