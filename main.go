package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"

	"kharazmi/internal/config"
	"kharazmi/internal/connection"
	"kharazmi/internal/database"
	"kharazmi/internal/logging"
	"kharazmi/internal/services"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		os.Exit(1)
	}

	fileLog, err := logging.NewFileLogger(logging.Config{
		Path:    cfg.LogFile,
		Level:   cfg.LogLevel,
		Console: config.IsDevelopment(),
	})
	if err != nil {
		fmt.Println("Error opening log file:", err)
		os.Exit(1)
	}

	db, err := database.Init(database.Config{
		Path:   cfg.DBFile,
		Logger: fileLog,
	})
	if err != nil {
		fmt.Println("Error opening database:", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		fmt.Println("Error opening database:", err)
		os.Exit(1)
	}

	ring, err := services.OpenKeyring(services.KeyringConfig{
		Backend:  cfg.KeyringBackend,
		FileDir:  cfg.KeyringDir,
		Password: cfg.KeyringPassword,
	})
	if err != nil {
		fmt.Println("Error opening keyring:", err)
		os.Exit(1)
	}

	//Create each service
	svc := services.NewServices(services.Deps{
		DB:           db,
		Ring:         ring,
		SettingsFile: cfg.SettingsFile,
		Connection: connection.Options{
			HandshakeTimeout: cfg.DialTimeout,
			ProbeTimeout:     cfg.ProbeTimeout,
			PingInterval:     cfg.PingInterval,
		},
		Logger: fileLog,
	})

	app := NewApp(svc.Settings, svc.Close, sqlDB.Close, fileLog.Close)

	err = wails.Run(&options.App{
		Title:  "Kharazmi",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Linux: &linux.Options{
			WindowIsTranslucent: false,
			WebviewGpuPolicy:    linux.WebviewGpuPolicyAlways,
			ProgramName:         "Kharazmi",
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		Logger:           fileLog,
		LogLevel:         cfg.LogLevel,
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
