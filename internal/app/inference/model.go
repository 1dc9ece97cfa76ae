package inference

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"mlbilling/internal/app/apperr"

	"gopkg.in/yaml.v3"
)

// Predictor scores records. Implementations must not keep references to
// the records after returning.
type Predictor interface {
	Predict(records [][]float64) ([]float64, error)
}

// Model kinds understood by Load.
const (
	KindLinear   = "linear"
	KindLogistic = "logistic"
)

// artifact is the serialized form of a model. YAML is a superset of JSON,
// so both encodings are accepted.
type artifact struct {
	Kind      string    `yaml:"kind"`
	Weights   []float64 `yaml:"weights"`
	Bias      float64   `yaml:"bias"`
	Threshold *float64  `yaml:"threshold"`
	Classes   []float64 `yaml:"classes"`
}

// decode turns artifact bytes into a Predictor.
func decode(data []byte) (Predictor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidModel, errors.New("artifact is empty"))
	}

	var a artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidModel, fmt.Errorf("decode artifact: %w", err))
	}

	if len(a.Weights) == 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidModel, errors.New("model has no predict capability: no weights"))
	}
	for _, w := range append([]float64{a.Bias}, a.Weights...) {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, apperr.Wrap(apperr.ErrInvalidModel, errors.New("model parameters must be finite"))
		}
	}

	lin := linear{weights: a.Weights, bias: a.Bias}

	switch a.Kind {
	case KindLinear:
		return lin, nil
	case KindLogistic:
		l := logistic{linear: lin, threshold: 0.5, classes: [2]float64{0, 1}}
		if a.Threshold != nil {
			if *a.Threshold <= 0 || *a.Threshold >= 1 {
				return nil, apperr.Wrap(apperr.ErrInvalidModel, fmt.Errorf("threshold %v is outside (0, 1)", *a.Threshold))
			}
			l.threshold = *a.Threshold
		}
		if a.Classes != nil {
			if len(a.Classes) != 2 {
				return nil, apperr.Wrap(apperr.ErrInvalidModel, fmt.Errorf("logistic model needs 2 classes, got %d", len(a.Classes)))
			}
			l.classes = [2]float64{a.Classes[0], a.Classes[1]}
		}
		return l, nil
	default:
		return nil, apperr.Wrap(apperr.ErrInvalidModel, fmt.Errorf("model has no predict capability: unknown kind %q", a.Kind))
	}
}

// linear is a regression model: w·x + b.
type linear struct {
	weights []float64
	bias    float64
}

func (m linear) score(record []float64) (float64, error) {
	if len(record) != len(m.weights) {
		return 0, fmt.Errorf("record has %d features, model expects %d", len(record), len(m.weights))
	}
	sum := m.bias
	for i, x := range record {
		sum += m.weights[i] * x
	}
	return sum, nil
}

func (m linear) Predict(records [][]float64) ([]float64, error) {
	out := make([]float64, len(records))
	for i, r := range records {
		v, err := m.score(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// logistic is a binary classifier over a linear score.
type logistic struct {
	linear
	threshold float64
	classes   [2]float64
}

func (m logistic) Predict(records [][]float64) ([]float64, error) {
	out := make([]float64, len(records))
	for i, r := range records {
		z, err := m.score(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if 1/(1+math.Exp(-z)) >= m.threshold {
			out[i] = m.classes[1]
		} else {
			out[i] = m.classes[0]
		}
	}
	return out, nil
}
