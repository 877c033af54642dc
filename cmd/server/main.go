package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Brownie44l1/lesion-api/internal/config"
	"github.com/Brownie44l1/lesion-api/internal/handlers"
	"github.com/Brownie44l1/lesion-api/internal/imaging"
	"github.com/Brownie44l1/lesion-api/internal/model"
)

func enableCORS(origin string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	if cfg.OnnxLibrary != "" {
		model.SetRuntimeLibrary(cfg.OnnxLibrary)
	}

	converter := imaging.NewConverter(logger)

	registry := model.NewRegistry(cfg.ModelArchive, logger)
	defer model.ShutdownRuntime()
	defer registry.Close()

	classifier := model.NewClassifier(registry, logger)
	handler := handlers.NewHandler(converter, classifier, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", enableCORS(cfg.AllowedOrigin, handler.Root))
	mux.HandleFunc("/health", enableCORS(cfg.AllowedOrigin, handler.Health))
	mux.HandleFunc("/predict", enableCORS(cfg.AllowedOrigin, handler.Predict))
	mux.HandleFunc("/doctor", enableCORS(cfg.AllowedOrigin, handler.Doctor))

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("model_archive", cfg.ModelArchive),
		zap.String("supported_formats", converter.SupportedFormats()))

	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
