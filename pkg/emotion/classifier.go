package emotion

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Scorer is the polarity collaborator. Implementations return a float in [-1,1].
type Scorer interface {
	Polarity(text string) (float64, error)
}

// ErrInvalidScore is reported when a scorer returns NaN or an infinity.
var ErrInvalidScore = errors.New("scorer returned a non-finite polarity")

type Classifier struct {
	scorer Scorer
	logger logrus.FieldLogger
}

func NewClassifier(scorer Scorer, logger logrus.FieldLogger) *Classifier {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	return &Classifier{scorer: scorer, logger: logger}
}

// Classify never fails: any scorer problem degrades to a neutral assessment.
func (c *Classifier) Classify(text string) Assessment {
	a, err := c.Score(text)
	if err != nil {
		c.logger.WithError(err).Warn("Sentiment scoring failed, treating message as neutral")
	}
	return a
}

// Score is Classify for callers that report scoring failures themselves. The
// assessment is neutral whenever err is set.
func (c *Classifier) Score(text string) (Assessment, error) {
	score, err := c.score(text)
	if err != nil {
		return NeutralAssessment(), err
	}
	return Assess(score), nil
}

func (c *Classifier) score(text string) (score float64, err error) {
	if c.scorer == nil {
		return 0, errors.New("no sentiment scorer configured")
	}

	defer func() {
		if r := recover(); r != nil {
			score = 0
			err = fmt.Errorf("sentiment scorer panicked: %v", r)
		}
	}()

	score, err = c.scorer.Polarity(text)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, ErrInvalidScore
	}
	return clamp(score), nil
}
