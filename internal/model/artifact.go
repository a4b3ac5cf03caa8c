package model

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/jonathan/churn-predictor/internal/schemas"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"
)

// Info is the descriptive block of an artifact.
type Info struct {
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	TrainedAt   string             `json:"trained_at,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

type artifact struct {
	Format        string    `json:"format"`
	Version       int       `json:"version"`
	Info          Info      `json:"model_info"`
	FeatureNames  []string  `json:"feature_names"`
	CatFeatures   []string  `json:"cat_features"`
	Bias          float64   `json:"bias"`
	ExpectedValue *float64  `json:"expected_value"`
	Trees         []rawTree `json:"trees"`
}

type rawTree struct {
	Nodes []rawNode `json:"nodes"`
}

type rawNode struct {
	Feature    string   `json:"feature"`
	Threshold  *float64 `json:"threshold"`
	Categories []string `json:"categories"`
	Left       int      `json:"left"`
	Right      int      `json:"right"`
	Cover      float64  `json:"cover"`
	Leaf       *float64 `json:"leaf"`
}

var gzipMagic = []byte{0x1f, 0x8b}

// readArtifact returns the decompressed artifact bytes.
func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Message: "artifact not found", Cause: err}
		}
		return nil, &LoadError{Path: path, Message: "failed to read artifact", Cause: err}
	}
	if len(data) == 0 {
		return nil, &LoadError{Path: path, Message: "artifact is empty"}
	}

	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &LoadError{Path: path, Message: "corrupt gzip header", Cause: err}
		}
		defer func() { _ = zr.Close() }()

		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, &LoadError{Path: path, Message: "corrupt gzip stream", Cause: err}
		}
	}
	return data, nil
}

func decodeArtifact(path string, data []byte) (*artifact, error) {
	if err := schemas.ValidateArtifact(data); err != nil {
		return nil, &LoadError{Path: path, Message: "artifact does not match the model artifact schema", Cause: err}
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &LoadError{Path: path, Message: "failed to decode artifact", Cause: err}
	}
	return &a, nil
}

// fingerprint is computed over the decompressed content, so a gzipped copy of
// an artifact shares the plain file's fingerprint.
func fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
