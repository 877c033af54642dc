package model

import (
	"sync"

	"github.com/cockroachdb/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Predictor runs a single forward pass over a flattened NHWC float32 tensor.
type Predictor interface {
	Infer(input []float32) ([]float32, error)
	Close() error
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SetRuntimeLibrary points the ONNX runtime at a specific shared library.
// Must be called before the first session is created.
func SetRuntimeLibrary(path string) {
	ort.SetSharedLibraryPath(path)
}

// ShutdownRuntime releases the process-wide ONNX environment. Call only
// after every session has been closed.
func ShutdownRuntime() {
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// Session owns one ONNX runtime session with pre-allocated input and output
// tensors. Run calls are serialized because the tensors are shared.
type Session struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewSession deserializes the ONNX model at modelPath with a 1×224×224×3
// input and a 1×len(ClassNames) output.
func NewSession(modelPath string) (*Session, error) {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, errors.Wrap(ortInitErr, "initializing ONNX environment")
	}

	inputShape := ort.NewShape(1, InputSize, InputSize, 3)
	outputShape := ort.NewShape(1, int64(len(ClassNames)))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating ONNX session")
	}

	return &Session{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Infer copies input into the session's input tensor, runs the model once,
// and returns a copy of the output vector.
func (s *Session) Infer(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input)

	if err := s.session.Run(); err != nil {
		return nil, err
	}

	data := s.outputTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close destroys the session and its tensors. The ONNX environment itself is
// shared across sessions; see ShutdownRuntime.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	return nil
}
