// Package main is the entry point for the framereel sequence player.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/config"
	"github.com/Faultbox/framereel/internal/logger"
	"github.com/Faultbox/framereel/internal/viewer"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== framereel ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	path := cfg.Playback.Path
	if path == "" {
		path, err = dialog.Directory().Title("Open image sequence").Browse()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				logger.Error("directory dialog failed", zap.Error(err))
			}
			os.Exit(1)
		}
	}

	v, err := viewer.New(cfg, logger.Log)
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Open(path); err != nil {
		logger.Error("failed to open sequence", zap.String("path", path), zap.Error(err))
		// Keep the window up; another sequence can be dropped on it.
	}

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
