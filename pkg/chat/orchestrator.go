package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"personachat/pkg/cta"
	"personachat/pkg/emotion"
	"personachat/pkg/generation"
	"personachat/pkg/logging"
	"personachat/pkg/memory"
	"personachat/pkg/metrics"
	"personachat/pkg/persona"
	"personachat/pkg/session"
)

// Result is what a channel shows for one user message.
type Result struct {
	Response string             `json:"response"`
	Emotion  emotion.Assessment `json:"emotion_data"`
	Persona  persona.Persona    `json:"persona"`
	CTA      *cta.Decision      `json:"cta"`
	Success  bool               `json:"success"`
}

// Classifier returns a neutral assessment alongside any error.
type Classifier interface {
	Score(text string) (emotion.Assessment, error)
}

type PersonaClock interface {
	Current() persona.Persona
}

// Deps are the collaborators of the orchestrator. Store, Metrics and Logger may
// be nil.
type Deps struct {
	Classifier Classifier
	Clock      PersonaClock
	Generator  generation.Generator
	Store      memory.Store
	Metrics    *metrics.Metrics
	Logger     logrus.FieldLogger
	Rand       *rand.Rand
}

type Options struct {
	GenerationTimeout time.Duration
	HistoryTurns      int
}

type Orchestrator struct {
	classifier Classifier
	clock      PersonaClock
	generator  generation.Generator
	store      memory.Store
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
	fallback   *fallbackPicker
	opts       Options
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 30 * time.Second
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 5
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Classifier == nil {
		deps.Classifier = emotion.NewClassifier(emotion.NewLexiconScorer(), deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = persona.NewClock("", -3)
	}

	return &Orchestrator{
		classifier: deps.Classifier,
		clock:      deps.Clock,
		generator:  deps.Generator,
		store:      deps.Store,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		fallback:   &fallbackPicker{rng: deps.Rand},
		opts:       opts,
	}
}

// HandleMessage runs one chat turn. It never fails: generation problems degrade to
// a canned reply and anything unexpected to an apology with Success=false. The
// session is updated only when the turn succeeds.
func (o *Orchestrator) HandleMessage(ctx context.Context, userText string, sess *session.Session) (res Result) {
	start := time.Now()
	log := o.logger
	if sess != nil {
		log = logging.WithUser(o.logger, sess.UserID, sess.ID)
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("%w: %v", ErrUnexpected, r)).Error("Chat turn failed")
			res = o.apology()
		}
		o.metrics.ChatRequestLatency.Observe(time.Since(start).Seconds())
	}()

	if sess == nil {
		panic("nil session")
	}

	// 1. Emotion
	assessment, err := o.classifier.Score(userText)
	if err != nil {
		log.WithError(fmt.Errorf("%w: %w", ErrScoringFailed, err)).Warn("Treating message as neutral")
	}
	o.metrics.Emotions.WithLabelValues(string(assessment.Emotion)).Inc()

	// 2. Message log
	o.persist(log, "save_message", func() error {
		return o.store.SaveMessage(ctx, memory.Message{
			UserID:    sess.UserID,
			Text:      userText,
			Sentiment: assessment.Score,
			Emotion:   string(assessment.Emotion),
		})
	})

	// 3. Persona
	current := o.clock.Current()

	// 4. Reply
	reply, err := o.generate(ctx, generation.Request{
		Persona:  current,
		Emotion:  assessment.Emotion,
		History:  sess.Recent(o.opts.HistoryTurns),
		UserText: userText,
	})
	outcome := "generated"
	if err != nil {
		reason := fallbackReason(err)
		log.WithError(err).WithField("reason", reason).Warn("Using fallback reply")
		o.metrics.Fallbacks.WithLabelValues(reason).Inc()
		reply = o.fallback.pick(assessment.Emotion)
		outcome = "fallback"
	}

	// 5. Learning
	o.learn(ctx, log, sess.UserID, assessment, current)

	// 6. Promotional prompt, judged on the conversation before this message
	var decision *cta.Decision
	if cta.ShouldShow(sess.MessageCount, sess.History) {
		d := cta.Select(assessment.Emotion)
		decision = &d
		o.metrics.CTAShown.WithLabelValues(string(d.Action)).Inc()
	}

	// 7. Commit the turn
	sess.Append(session.Turn{User: userText, Assistant: reply})
	o.metrics.ChatRequests.WithLabelValues(outcome).Inc()

	log.WithFields(logrus.Fields{
		"emotion": assessment.Emotion,
		"persona": current.Label,
		"outcome": outcome,
		"cta":     decision != nil,
	}).Debug("Chat turn handled")

	return Result{
		Response: reply,
		Emotion:  assessment,
		Persona:  current,
		CTA:      decision,
		Success:  true,
	}
}

func (o *Orchestrator) apology() Result {
	o.metrics.ChatRequests.WithLabelValues("apology").Inc()

	current := persona.Get(persona.Default)
	func() {
		defer func() { _ = recover() }()
		current = o.clock.Current()
	}()

	return Result{
		Response: Apology,
		Emotion:  emotion.NeutralAssessment(),
		Persona:  current,
		CTA:      nil,
		Success:  false,
	}
}

type generated struct {
	text string
	err  error
}

// generate bounds the collaborator by the configured timeout even when it
// ignores its context.
func (o *Orchestrator) generate(ctx context.Context, req generation.Request) (string, error) {
	if o.generator == nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, generation.ErrMissingCredential)
	}

	gctx, cancel := context.WithTimeout(ctx, o.opts.GenerationTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan generated, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generated{err: fmt.Errorf("generator panicked: %v", r)}
			}
		}()
		text, err := o.generator.Generate(gctx, req)
		done <- generated{text: text, err: err}
	}()

	var out generated
	select {
	case out = <-done:
	case <-gctx.Done():
		out = generated{err: gctx.Err()}
	}
	o.metrics.GenerationLatency.Observe(time.Since(start).Seconds())

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", ErrGenerationTimeout, o.opts.GenerationTimeout, out.err)
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, out.err)
	}
	if strings.TrimSpace(out.text) == "" {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, generation.ErrEmptyResponse)
	}
	return out.text, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrGenerationTimeout):
		return "timeout"
	case errors.Is(err, generation.ErrMissingCredential):
		return "missing_credential"
	default:
		return "error"
	}
}

func (o *Orchestrator) learn(ctx context.Context, log logrus.FieldLogger, userID string, a emotion.Assessment, p persona.Persona) {
	o.persist(log, "increment_interactions", func() error {
		_, err := o.store.IncrementInteractions(ctx, userID)
		return err
	})
	o.persist(log, "record_interaction", func() error {
		return o.store.RecordInteraction(ctx, memory.Interaction{
			UserID: userID,
			Type:   "message",
			Details: map[string]interface{}{
				"type":      "message",
				"emotion":   string(a.Emotion),
				"sentiment": a.Score,
				"persona":   string(p.Label),
			},
		})
	})
	o.persist(log, "tally_emotion", func() error {
		return memory.TallyEmotion(ctx, o.store, userID, string(a.Emotion))
	})
}

// persist runs a store write whose failure must not affect the reply.
func (o *Orchestrator) persist(log logrus.FieldLogger, op string, write func() error) {
	if o.store == nil {
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return write()
	}()
	if err != nil {
		o.metrics.PersistenceErrors.WithLabelValues(op).Inc()
		log.WithError(fmt.Errorf("%w: %w", ErrPersistence, err)).WithField("operation", op).Warn("Store write failed")
	}
}
