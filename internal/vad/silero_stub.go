//go:build !onnx

package vad

import "errors"

// NewSileroClassifier is unavailable unless the binary is built with the onnx tag.
func NewSileroClassifier(modelPath, runtimeLibrary string, windowSize int) (Classifier, error) {
	return nil, errors.New("vad: silero backend requires building with -tags onnx")
}
