// Package model - Definitions shared by the detection model backends.
package model

// Family is the family of models.
type Family string

const (
	// ModelFamilyOpenVocab is the open-vocabulary, text-prompted family.
	ModelFamilyOpenVocab Family = "open-vocab"
	// ModelFamilyYOLO is the closed-set COCO-80 YOLO family.
	ModelFamilyYOLO Family = "yolo"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameGroundingDINO is the name of the Grounding DINO model.
	ModelNameGroundingDINO Name = "grounding-dino"
	// ModelNameYOLOv8 is the name of the YOLOv8 model.
	ModelNameYOLOv8 Name = "yolov8"
	// ModelNameYOLOv11 is the name of the YOLOv11 model.
	ModelNameYOLOv11 Name = "yolov11"
)

// Config describes one model backend for loading.
type Config struct {
	Name   Name   `json:"name" yaml:"name" mapstructure:"name"`
	Family Family `json:"family" yaml:"family" mapstructure:"family"`
	// Path is the weights file on disk.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Enabled toggles loading of the backend at startup.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	// InputWidth and InputHeight are the model's input resolution.
	InputWidth  int `json:"input_width" yaml:"input_width" mapstructure:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height" mapstructure:"input_height"`
}

// Session is a loaded model backend.
type Session interface {
	// Name identifies the backend.
	Name() Name
	// Loaded reports whether the weights are loaded and the backend can
	// answer detection requests. An unloaded backend is not an error;
	// the API degrades to demo mode.
	Loaded() bool
	// Close releases backend resources.
	Close() error
}
