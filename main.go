package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"noiseshield/db"
	"noiseshield/engine"
	qhttp "noiseshield/http"
	"noiseshield/logger"
	"noiseshield/monitoring"
)

type Config struct {
	Models struct {
		Dir       string `yaml:"dir"`
		HotReload bool   `yaml:"hot_reload"`
	} `yaml:"models"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	History struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"history"`
	Log logger.Config `yaml:"log"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// 2. Initialize database
	if err := db.InitDB(config.Database.Path); err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	zlog.Info("database initialized", zap.String("path", config.Database.Path))

	// 3. Load model bundles (fatal if none load cleanly)
	var models qhttp.RegistrySource
	if config.Models.HotReload {
		watcher, err := engine.NewWatcher(config.Models.Dir, zlog)
		if err != nil {
			zlog.Fatal("failed to load model bundles", zap.Error(err))
		}
		defer watcher.Close()
		models = watcher
	} else {
		registry, err := engine.LoadRegistry(config.Models.Dir, zlog)
		if err != nil {
			zlog.Fatal("failed to load model bundles", zap.Error(err))
		}
		models = staticRegistry{registry}
	}

	// 4. Monitoring: history cache and websocket hub
	history, err := monitoring.NewHistory(config.History.Capacity)
	if err != nil {
		zlog.Fatal("failed to create history", zap.Error(err))
	}
	hub := monitoring.NewHub(zlog)
	go hub.Run()
	defer hub.Stop()

	// 5. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds != 0 {
		serverConfig.Timeout = time.Duration(config.Http.TimeoutSeconds) * time.Second
	}
	if len(config.Http.AllowedOrigins) != 0 {
		serverConfig.AllowedOrigins = config.Http.AllowedOrigins
	}

	server := qhttp.NewServer(serverConfig, qhttp.Deps{
		Models:  models,
		History: history,
		Hub:     hub,
		Log:     zlog,
		Persist: true,
	})
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 6. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	if err := server.Stop(); err != nil {
		zlog.Warn("server forced to shutdown", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		zlog.Warn("database close failed", zap.Error(err))
	}
	zlog.Info("exiting")
}

type staticRegistry struct {
	registry *engine.Registry
}

func (s staticRegistry) Registry() *engine.Registry { return s.registry }

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
