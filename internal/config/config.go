// Package config loads runtime settings from the environment with defaults
// suitable for local development.
package config

import "github.com/spf13/viper"

type Config struct {
	Port          string
	ModelArchive  string
	AllowedOrigin string
	OnnxLibrary   string
}

// Load reads PORT, MODEL_ARCHIVE, ALLOWED_ORIGIN, and ONNX_LIBRARY from the
// environment.
func Load() *Config {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("model_archive", "models/bcn20000.onnx.zip")
	v.SetDefault("allowed_origin", "*")
	v.SetDefault("onnx_library", "")
	v.AutomaticEnv()

	return &Config{
		Port:          v.GetString("port"),
		ModelArchive:  v.GetString("model_archive"),
		AllowedOrigin: v.GetString("allowed_origin"),
		OnnxLibrary:   v.GetString("onnx_library"),
	}
}
