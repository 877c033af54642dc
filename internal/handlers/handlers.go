// Package handlers wires the format normalizer and the classifier to HTTP.
// Validation failures come back as 422 with a user-facing message; everything
// else is a 500 carrying the original cause.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/lesion-api/internal/imaging"
	"github.com/Brownie44l1/lesion-api/internal/model"
)

// Uploads above this size are rejected while parsing the multipart form.
const maxUploadBytes = 10 << 20

type Handler struct {
	converter  *imaging.Converter
	classifier *model.Classifier
	logger     *zap.Logger
}

func NewHandler(converter *imaging.Converter, classifier *model.Classifier, logger *zap.Logger) *Handler {
	return &Handler{
		converter:  converter,
		classifier: classifier,
		logger:     logger,
	}
}

type errorResponse struct {
	Error            string `json:"error"`
	SupportedFormats string `json:"supported_formats,omitempty"`
}

type topPrediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

type predictionSet struct {
	TopPrediction    topPrediction      `json:"top_prediction"`
	AllProbabilities map[string]float64 `json:"all_probabilities"`
}

type predictResponse struct {
	Message     string        `json:"message"`
	Filename    string        `json:"filename"`
	Endpoint    string        `json:"endpoint"`
	ImageInfo   imaging.Info  `json:"image_info"`
	Predictions predictionSet `json:"predictions"`
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ML Image Prediction API is running!"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "ml-image-api"})
}

// Predict classifies a multipart image upload with the default model.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	h.predictWith(w, r, "/predict")
}

// Doctor is the clinician-facing upload endpoint. It runs the same default
// model; the separate route exists so the two frontends can be tracked apart.
func (h *Handler) Doctor(w http.ResponseWriter, r *http.Request) {
	h.predictWith(w, r, "/doctor")
}

func (h *Handler) predictWith(w http.ResponseWriter, r *http.Request, endpoint string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "No file uploaded. Please provide a PNG, JPG, JPEG, HEIC, HEIF, or MPO image file.",
		})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "No file uploaded. Please provide a PNG, JPG, JPEG, HEIC, HEIF, or MPO image file.",
		})
		return
	}
	defer file.Close()

	h.logger.Info("received file upload",
		zap.String("endpoint", endpoint),
		zap.String("filename", header.Filename),
		zap.Int64("size_bytes", header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to read uploaded file"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "Uploaded file is empty. Please provide a valid image file.",
		})
		return
	}

	normalized, err := h.converter.Process(data)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}

	probs, err := h.classifier.Classify(normalized.Image)
	if err != nil {
		h.logger.Error("classification failed", zap.String("endpoint", endpoint), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Error processing image through ML model: " + err.Error(),
		})
		return
	}

	topClass, confidence := model.TopPrediction(probs)
	h.logger.Info("prediction completed",
		zap.String("filename", header.Filename),
		zap.String("class", topClass),
		zap.Float64("confidence", confidence))

	writeJSON(w, http.StatusOK, predictResponse{
		Message:   "Image processed successfully",
		Filename:  header.Filename,
		Endpoint:  endpoint,
		ImageInfo: imaging.Describe(normalized, len(data)),
		Predictions: predictionSet{
			TopPrediction:    topPrediction{Class: topClass, Confidence: confidence},
			AllProbabilities: probs,
		},
	})
}

// writeProcessError maps the normalizer's typed failures onto
// user-correctable 422 responses; everything else is internal.
func (h *Handler) writeProcessError(w http.ResponseWriter, err error) {
	var unsupported *imaging.UnsupportedFormatError
	var decode *imaging.DecodeError
	switch {
	case errors.As(err, &unsupported):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:            err.Error(),
			SupportedFormats: unsupported.Supported,
		})
	case errors.As(err, &decode):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:            err.Error(),
			SupportedFormats: h.converter.SupportedFormats(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "Internal server error: " + err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
