// Package config - YAML configuration for the detection API server.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/nvr-ai/go-detect/models/model"
)

// Config is the root server configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Models     ModelsConfig     `mapstructure:"models"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ModelsConfig lists the detection backends to load at startup.
type ModelsConfig struct {
	GroundingDINO model.Config `mapstructure:"grounding_dino"`
	YOLOv8        model.Config `mapstructure:"yolov8"`
	YOLOv11       model.Config `mapstructure:"yolov11"`
}

// ThresholdsConfig holds the request-level defaults, used when a request
// omits a threshold. They mirror the defaults the frontend sends.
type ThresholdsConfig struct {
	Box        float32 `mapstructure:"box"`
	Text       float32 `mapstructure:"text"`
	NMS        float32 `mapstructure:"nms"`
	Confidence float32 `mapstructure:"confidence"`
	IoU        float32 `mapstructure:"iou"`
}

// Load reads configuration from a YAML file on top of defaults.
//
// Arguments:
//   - configPath: Path to the YAML file.
//
// Returns:
//   - *Config: The merged configuration.
//   - error: An error if the file cannot be read or parsed.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	stampModelIdentities(&cfg)

	return &cfg, nil
}

// New loads config.yaml from the working directory, falling back to
// defaults when the file is absent.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return defaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("models.grounding_dino.enabled", true)
	v.SetDefault("models.grounding_dino.path", "./weights/grounding-dino-tiny.onnx")
	v.SetDefault("models.grounding_dino.input_width", 800)
	v.SetDefault("models.grounding_dino.input_height", 800)

	v.SetDefault("models.yolov8.enabled", true)
	v.SetDefault("models.yolov8.path", "./weights/yolov8n.onnx")
	v.SetDefault("models.yolov8.input_width", 640)
	v.SetDefault("models.yolov8.input_height", 640)

	v.SetDefault("models.yolov11.enabled", false)
	v.SetDefault("models.yolov11.path", "./weights/yolo11n.onnx")
	v.SetDefault("models.yolov11.input_width", 640)
	v.SetDefault("models.yolov11.input_height", 640)

	v.SetDefault("thresholds.box", 0.35)
	v.SetDefault("thresholds.text", 0.25)
	v.SetDefault("thresholds.nms", 0.5)
	v.SetDefault("thresholds.confidence", 0.25)
	v.SetDefault("thresholds.iou", 0.45)
}

func defaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)

	stampModelIdentities(&cfg)
	return &cfg
}

// stampModelIdentities fixes each block's name and family. They are
// derived from the block's position, never from the file.
func stampModelIdentities(cfg *Config) {
	cfg.Models.GroundingDINO.Name = model.ModelNameGroundingDINO
	cfg.Models.GroundingDINO.Family = model.ModelFamilyOpenVocab
	cfg.Models.YOLOv8.Name = model.ModelNameYOLOv8
	cfg.Models.YOLOv8.Family = model.ModelFamilyYOLO
	cfg.Models.YOLOv11.Name = model.ModelNameYOLOv11
	cfg.Models.YOLOv11.Family = model.ModelFamilyYOLO
}
