package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/api"
	"github.com/nvr-ai/go-detect/api/handler"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/models/groundingdino"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/yolo"
	"github.com/nvr-ai/go-detect/profiler"
	"github.com/nvr-ai/go-detect/util"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	cfg := config.New()

	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Logger.Info("starting detection API server",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	// A backend that fails to load is not fatal: the endpoint keeps
	// answering in demo mode, same as when it is disabled outright.
	dino := loadGroundingDINO(cfg.Models.GroundingDINO)
	defer dino.Close()

	yolov8 := loadYOLO(cfg.Models.YOLOv8)
	defer yolov8.Close()

	yolov11 := loadYOLO(cfg.Models.YOLOv11)
	defer yolov11.Close()

	gin.SetMode(cfg.Server.Mode)

	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: util.Logger})
	rp.Start()
	defer rp.Stop()

	h := handler.NewHandler(cfg, dino, yolov8, yolov11)
	router := api.SetupRouter(h, rp)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	util.Logger.Info("server listening",
		zap.String("addr", cfg.Server.Port),
		zap.Bool("grounding_dino", dino.Loaded()),
		zap.Bool("yolov8", yolov8.Loaded()),
		zap.Bool("yolov11", yolov11.Loaded()),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Logger.Fatal("failed to start server", zap.Error(err))
	}
}

// loadGroundingDINO loads the open-vocabulary backend, degrading to an
// unloaded session on failure.
func loadGroundingDINO(cfg model.Config) *groundingdino.Session {
	if !cfg.Enabled {
		util.Logger.Info("grounding dino disabled")
		return &groundingdino.Session{}
	}

	session, err := groundingdino.NewSession(groundingdino.Config{
		Path:        cfg.Path,
		InputWidth:  cfg.InputWidth,
		InputHeight: cfg.InputHeight,
	})
	if err != nil {
		util.Logger.Warn("grounding dino unavailable, serving demo mode",
			zap.String("path", cfg.Path),
			zap.Error(err),
		)
		return &groundingdino.Session{}
	}

	util.Logger.Info("grounding dino loaded", zap.String("path", cfg.Path))
	return session
}

// loadYOLO loads a closed-set backend, degrading to an unloaded session
// on failure.
func loadYOLO(cfg model.Config) *yolo.Session {
	if !cfg.Enabled {
		util.Logger.Info("yolo backend disabled", zap.String("model", string(cfg.Name)))
		return &yolo.Session{}
	}

	session, err := yolo.NewSession(yolo.Config{
		Name:        cfg.Name,
		Path:        cfg.Path,
		InputWidth:  cfg.InputWidth,
		InputHeight: cfg.InputHeight,
	})
	if err != nil {
		util.Logger.Warn("yolo backend unavailable",
			zap.String("model", string(cfg.Name)),
			zap.String("path", cfg.Path),
			zap.Error(err),
		)
		return &yolo.Session{}
	}

	util.Logger.Info("yolo backend loaded",
		zap.String("model", string(cfg.Name)),
		zap.String("path", cfg.Path),
	)
	return session
}
