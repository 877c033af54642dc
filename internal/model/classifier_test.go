package model

import (
	"image"
	"image/color"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newStubClassifier(t *testing.T, stub *stubPredictor) *Classifier {
	t.Helper()
	r := NewRegistryWithLoader("stub.onnx", func(string) (Predictor, error) {
		return stub, nil
	}, zaptest.NewLogger(t))
	t.Cleanup(r.Close)
	return NewClassifier(r, zaptest.NewLogger(t))
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 51, G: 102, B: 204, A: 255})
		}
	}
	return img
}

func rampOutput() []float32 {
	out := make([]float32, len(ClassNames))
	for i := range out {
		out[i] = float32(i+1) / 100
	}
	return out
}

func TestClassifyKeysAndRounding(t *testing.T) {
	output := rampOutput()
	output[0] = 0.12345

	c := newStubClassifier(t, &stubPredictor{output: output})
	probs, err := c.Classify(testImage())
	require.NoError(t, err)

	require.Len(t, probs, len(ClassNames))
	for _, class := range ClassNames {
		v, ok := probs[class]
		require.True(t, ok, "missing class %q", class)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.123, probs["nevus"], "values are rounded to three decimals")
}

func TestClassifyDeterministic(t *testing.T) {
	c := newStubClassifier(t, &stubPredictor{output: rampOutput()})

	first, err := c.Classify(testImage())
	require.NoError(t, err)
	second, err := c.Classify(testImage())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClassifyDoesNotRenormalize(t *testing.T) {
	output := make([]float32, len(ClassNames))
	for i := range output {
		output[i] = 0.5
	}

	c := newStubClassifier(t, &stubPredictor{output: output})
	probs, err := c.Classify(testImage())
	require.NoError(t, err)

	sum := 0.0
	for _, v := range probs {
		assert.Equal(t, 0.5, v)
		sum += v
	}
	assert.Equal(t, 6.0, sum, "rounded values keep the raw model confidence, no renormalization")
}

func TestClassifyOutputShapeMismatch(t *testing.T) {
	c := newStubClassifier(t, &stubPredictor{output: []float32{0.1, 0.2, 0.3}})

	_, err := c.Classify(testImage())
	var inferErr *InferenceError
	require.ErrorAs(t, err, &inferErr)
	assert.Contains(t, err.Error(), "expected 12 class scores, got 3")
}

func TestClassifyForwardPassFailure(t *testing.T) {
	c := newStubClassifier(t, &stubPredictor{err: errors.New("runtime exploded")})

	_, err := c.Classify(testImage())
	var inferErr *InferenceError
	require.ErrorAs(t, err, &inferErr)
}

func TestClassifyModelUnavailable(t *testing.T) {
	r := NewRegistryWithLoader("stub.onnx", func(string) (Predictor, error) {
		return nil, errors.New("no runtime")
	}, zaptest.NewLogger(t))
	t.Cleanup(r.Close)
	c := NewClassifier(r, zaptest.NewLogger(t))

	_, err := c.Classify(testImage())
	var unavailable *ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestTopPrediction(t *testing.T) {
	c := newStubClassifier(t, &stubPredictor{output: rampOutput()})
	probs, err := c.Classify(testImage())
	require.NoError(t, err)

	class, confidence := TopPrediction(probs)
	assert.Equal(t, "vascular lesion", class, "last ramp entry has the highest score")
	assert.Equal(t, 0.12, confidence)
}

func TestTopPredictionTieBreak(t *testing.T) {
	probs := make(map[string]float64, len(ClassNames))
	for _, class := range ClassNames {
		probs[class] = 0.1
	}
	probs["nevus"] = 0.4
	probs["melanoma"] = 0.4

	class, confidence := TopPrediction(probs)
	assert.Equal(t, "nevus", class, "ties resolve to the earliest class in trained order")
	assert.Equal(t, 0.4, confidence)
}

func TestPreprocessShapeAndScale(t *testing.T) {
	input := Preprocess(testImage())

	require.Len(t, input, InputSize*InputSize*3)
	assert.InDelta(t, 51.0/255, input[0], 0.01)
	assert.InDelta(t, 102.0/255, input[1], 0.01)
	assert.InDelta(t, 204.0/255, input[2], 0.01)

	last := len(input) - 3
	assert.InDelta(t, 51.0/255, input[last], 0.01)
	assert.InDelta(t, 204.0/255, input[last+2], 0.01)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.123, round3(0.12345))
	assert.Equal(t, 0.124, round3(0.1235))
	assert.Equal(t, 0.0, round3(0.0004))
	assert.Equal(t, 1.0, round3(0.9999))
}
