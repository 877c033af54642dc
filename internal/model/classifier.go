// Package model turns normalized images into lesion class probabilities. It
// owns the lazy model registry, tensor preprocessing, and the mapping of raw
// model output onto the fixed class vocabulary.
package model

import (
	"image"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Classifier maps normalized images onto class probabilities using models
// owned by an injected registry.
type Classifier struct {
	registry *Registry
	logger   *zap.Logger
}

func NewClassifier(registry *Registry, logger *zap.Logger) *Classifier {
	return &Classifier{registry: registry, logger: logger}
}

// Classify runs the default model over img and returns every class name with
// its probability rounded to three decimals. Rounding is applied per class;
// the values are reported as the model emitted them and are not renormalized
// to sum to 1.
func (c *Classifier) Classify(img image.Image) (map[string]float64, error) {
	return c.ClassifyWith(DefaultModel, img)
}

// ClassifyWith is Classify against a named model.
func (c *Classifier) ClassifyWith(name string, img image.Image) (map[string]float64, error) {
	m, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}

	output, err := m.Infer(Preprocess(img))
	if err != nil {
		c.logger.Error("forward pass failed", zap.String("model", name), zap.Error(err))
		return nil, &InferenceError{Cause: err}
	}
	if len(output) != len(ClassNames) {
		return nil, &InferenceError{
			Cause: errors.Newf("expected %d class scores, got %d", len(ClassNames), len(output)),
		}
	}

	results := make(map[string]float64, len(ClassNames))
	for i, class := range ClassNames {
		results[class] = round3(float64(output[i]))
	}
	return results, nil
}

// TopPrediction picks the highest-probability entry from a Classify result.
// Ties resolve to the earliest class in trained order.
func TopPrediction(predictions map[string]float64) (string, float64) {
	scores := make([]float64, len(ClassNames))
	for i, class := range ClassNames {
		scores[i] = predictions[class]
	}
	idx := floats.MaxIdx(scores)
	return ClassNames[idx], scores[idx]
}

// Preprocess resizes img to the model input resolution and flattens it into
// a 1×224×224×3 tensor with pixel intensities rescaled from [0,255] to
// [0,1]. Alpha, if any survived normalization, is dropped.
func Preprocess(img image.Image) []float32 {
	resized := resize.Resize(InputSize, InputSize, img, resize.Bilinear)
	bounds := resized.Bounds()
	input := make([]float32, InputSize*InputSize*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			input[i] = float32(r>>8) / 255.0
			input[i+1] = float32(g>>8) / 255.0
			input[i+2] = float32(b>>8) / 255.0
			i += 3
		}
	}
	return input
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
