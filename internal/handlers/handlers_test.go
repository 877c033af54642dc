package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/bmp"

	"github.com/Brownie44l1/lesion-api/internal/imaging"
	"github.com/Brownie44l1/lesion-api/internal/model"
)

type stubPredictor struct {
	output []float32
}

func (s *stubPredictor) Infer(input []float32) ([]float32, error) { return s.output, nil }
func (s *stubPredictor) Close() error                             { return nil }

func newTestHandler(t *testing.T, loader model.LoaderFunc) *Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := model.NewRegistryWithLoader("stub.onnx", loader, logger)
	t.Cleanup(registry.Close)
	return NewHandler(
		imaging.NewConverter(logger),
		model.NewClassifier(registry, logger),
		logger,
	)
}

func stubLoader(output []float32) model.LoaderFunc {
	return func(string) (model.Predictor, error) {
		return &stubPredictor{output: output}, nil
	}
}

func rampOutput() []float32 {
	out := make([]float32, len(model.ClassNames))
	for i := range out {
		out[i] = float32(i+1) / 100
	}
	return out
}

func pngUpload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestPredictSuccess(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Predict(rec, uploadRequest(t, "/predict", "file", "lesion.png", pngUpload(t)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	decodeBody(t, rec, &resp)

	assert.Equal(t, "Image processed successfully", resp.Message)
	assert.Equal(t, "lesion.png", resp.Filename)
	assert.Equal(t, "/predict", resp.Endpoint)
	assert.Equal(t, "PNG", resp.ImageInfo.OriginalFormat)
	assert.Equal(t, "JPEG", resp.ImageInfo.ProcessedFormat)
	assert.True(t, resp.ImageInfo.Converted)
	assert.Len(t, resp.Predictions.AllProbabilities, len(model.ClassNames))
	assert.Equal(t, "vascular lesion", resp.Predictions.TopPrediction.Class)
	assert.Equal(t, 0.12, resp.Predictions.TopPrediction.Confidence)
}

func TestDoctorRunsSameModel(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Doctor(rec, uploadRequest(t, "/doctor", "file", "lesion.png", pngUpload(t)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "/doctor", resp.Endpoint)
	assert.Equal(t, "vascular lesion", resp.Predictions.TopPrediction.Class)
}

func TestPredictRejectsGarbage(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Predict(rec, uploadRequest(t, "/predict", "file", "junk.bin", []byte("not an image")))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Error, "invalid image file")
	assert.NotEmpty(t, resp.SupportedFormats)
}

func TestPredictRejectsUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Predict(rec, uploadRequest(t, "/predict", "file", "image.bmp", buf.Bytes()))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Error, "BMP")
	assert.Contains(t, resp.SupportedFormats, "PNG, JPEG")
}

func TestPredictEmptyFile(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Predict(rec, uploadRequest(t, "/predict", "file", "empty.png", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Error, "empty")
}

func TestPredictMissingFile(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodPost, "/predict", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Error, "No file uploaded")
}

func TestPredictMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Predict(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictModelUnavailable(t *testing.T) {
	h := newTestHandler(t, func(string) (model.Predictor, error) {
		return nil, errors.New("archive is gone")
	})

	rec := httptest.NewRecorder()
	h.Predict(rec, uploadRequest(t, "/predict", "file", "lesion.png", pngUpload(t)))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Error, "unavailable")
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "ml-image-api", resp["service"])
}

func TestRoot(t *testing.T) {
	h := newTestHandler(t, stubLoader(rampOutput()))

	rec := httptest.NewRecorder()
	h.Root(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp["message"], "running")
}
