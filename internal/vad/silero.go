//go:build onnx

package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const sileroStateSize = 2 * 1 * 128

var ortInit sync.Once
var ortInitErr error

// SileroClassifier runs the Silero VAD ONNX model. The recurrent state is
// carried across windows until Reset.
type SileroClassifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	state   *ort.Tensor[float32]
	rate    *ort.Tensor[int64]
	output  *ort.Tensor[float32]
	stateN  *ort.Tensor[float32]
	mu      sync.Mutex
}

func NewSileroClassifier(modelPath, runtimeLibrary string, windowSize int) (Classifier, error) {
	ortInit.Do(func() {
		if runtimeLibrary != "" {
			ort.SetSharedLibraryPath(runtimeLibrary)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("vad: initialize onnxruntime: %w", ortInitErr)
	}

	c := &SileroClassifier{}
	var err error
	if c.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(windowSize))); err != nil {
		return nil, fmt.Errorf("vad: input tensor: %w", err)
	}
	if c.state, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		c.destroy()
		return nil, fmt.Errorf("vad: state tensor: %w", err)
	}
	if c.rate, err = ort.NewTensor(ort.NewShape(1), []int64{16000}); err != nil {
		c.destroy()
		return nil, fmt.Errorf("vad: rate tensor: %w", err)
	}
	if c.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		c.destroy()
		return nil, fmt.Errorf("vad: output tensor: %w", err)
	}
	if c.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		c.destroy()
		return nil, fmt.Errorf("vad: state output tensor: %w", err)
	}

	c.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{c.input, c.state, c.rate},
		[]ort.Value{c.output, c.stateN},
		nil)
	if err != nil {
		c.destroy()
		return nil, fmt.Errorf("vad: load model %q: %w", modelPath, err)
	}
	return c, nil
}

func (c *SileroClassifier) Classify(window []float32, sampleRate int) (float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rate.GetData()[0] = int64(sampleRate)
	copy(c.input.GetData(), window)
	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: run session: %w", err)
	}
	copy(c.state.GetData(), c.stateN.GetData()[:sileroStateSize])
	return c.output.GetData()[0], nil
}

func (c *SileroClassifier) Reset() {
	c.mu.Lock()
	clear(c.state.GetData())
	c.mu.Unlock()
}

func (c *SileroClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroy()
}

func (c *SileroClassifier) destroy() error {
	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		_ = c.input.Destroy()
	}
	if c.state != nil {
		_ = c.state.Destroy()
	}
	if c.rate != nil {
		_ = c.rate.Destroy()
	}
	if c.output != nil {
		_ = c.output.Destroy()
	}
	if c.stateN != nil {
		_ = c.stateN.Destroy()
	}
	return err
}
