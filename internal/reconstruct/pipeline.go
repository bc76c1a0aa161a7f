// Package reconstruct turns a noisy stream of per-frame sign-letter labels
// into a sentence.
//
// The [Reconstructor] runs five stages, each consuming the previous stage's
// complete output:
//
//  1. [Voter]: majority vote over fixed windows of frame labels.
//  2. [CompressRepeats]: a sign held across several windows counts once.
//  3. [Segmenter]: greedy longest-match split into word-sized tokens.
//  4. [Corrector]: exact match, confusion-group substitution, spelling
//     fallback, pass-through.
//  5. [Assembler]: join and capitalise.
//
// Every stage is pure or reads only immutable shared state, so a single
// Reconstructor can serve any number of goroutines.
package reconstruct

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/signspeak/internal/observe"
	"github.com/MrWong99/signspeak/pkg/types"
)

// Result carries the output of every stage of one reconstruction.
type Result struct {
	// Letters are the voted letters, upper-case, before repeat compression.
	Letters []string

	// Compressed is the lower-case letter string after repeat compression.
	Compressed string

	// Tokens is the segmenter output.
	Tokens []types.Token

	// Corrections holds one entry per token, in order.
	Corrections []types.CorrectedToken

	// Sentence is the assembled sentence.
	Sentence string
}

// Option is a functional option for configuring a [Reconstructor].
type Option func(*Reconstructor)

// WithWindowSize sets the vote window size. Default: 3.
func WithWindowSize(n int) Option {
	return func(r *Reconstructor) {
		r.windowSize = n
	}
}

// WithCapitalization sets the sentence capitalisation mode and the language
// whose casing rules apply. Default: [CapitalizeFirst], language-neutral.
func WithCapitalization(mode Capitalization, lang string) Option {
	return func(r *Reconstructor) {
		r.capitalization = mode
		r.language = lang
	}
}

// WithCorrectorOptions forwards options to the underlying [Corrector].
func WithCorrectorOptions(opts ...CorrectorOption) Option {
	return func(r *Reconstructor) {
		r.correctorOpts = append(r.correctorOpts, opts...)
	}
}

// WithMetrics records stage metrics to m. When nil (the default), no metrics
// are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Reconstructor) {
		r.metrics = m
	}
}

// Reconstructor is the complete letter-stream-to-sentence pipeline. It is
// read-only after construction and safe for concurrent use.
type Reconstructor struct {
	windowSize     int
	capitalization Capitalization
	language       string
	correctorOpts  []CorrectorOption
	metrics        *observe.Metrics

	voter     *Voter
	segmenter *Segmenter
	corrector *Corrector
	assembler *Assembler
}

// New builds a [Reconstructor] over dict. dict must not change after this
// call.
func New(dict ConfusionDictionary, opts ...Option) (*Reconstructor, error) {
	r := &Reconstructor{
		windowSize:     DefaultWindowSize,
		capitalization: CapitalizeFirst,
	}
	for _, o := range opts {
		o(r)
	}

	var err error
	if r.voter, err = NewVoter(r.windowSize); err != nil {
		return nil, err
	}
	if r.assembler, err = NewAssembler(r.capitalization, r.language); err != nil {
		return nil, err
	}
	r.segmenter = NewSegmenter(dict)
	r.corrector = NewCorrector(dict, r.correctorOpts...)
	return r, nil
}

// Reconstruct runs the full pipeline over labels. The context is only
// consulted before any work starts: one reconstruction is an atomic unit.
//
// Empty or all-absent input yields an empty sentence, not an error. Malformed
// labels yield an error wrapping [types.ErrInvalidLabel].
func (r *Reconstructor) Reconstruct(ctx context.Context, labels []types.FrameLabel) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := observe.StartSpan(ctx, "reconstruct")
	defer span.End()
	start := time.Now()

	voted, err := r.voter.Vote(labels)
	if err != nil {
		observe.FailSpan(span, err)
		return nil, fmt.Errorf("reconstruct: vote: %w", err)
	}

	res := &Result{
		Letters:     make([]string, len(voted)),
		Tokens:      []types.Token{},
		Corrections: []types.CorrectedToken{},
	}
	for i, l := range voted {
		res.Letters[i] = string(l)
	}

	res.Compressed = strings.ToLower(string(CompressRepeats(voted)))
	res.Tokens = r.segmenter.Segment(res.Compressed)

	words := make([]string, 0, len(res.Tokens))
	for _, tok := range res.Tokens {
		ct := r.corrector.Correct(tok)
		res.Corrections = append(res.Corrections, ct)
		words = append(words, ct.Word)
	}
	res.Sentence = r.assembler.Assemble(words)

	span.SetAttributes(
		attribute.Int("frames", len(labels)),
		attribute.Int("letters", len(voted)),
		attribute.Int("tokens", len(res.Tokens)),
	)
	r.record(ctx, res, time.Since(start))

	observe.Logger(ctx).Debug("sentence reconstructed",
		"frames", len(labels),
		"letters", len(voted),
		"compressed", res.Compressed,
		"sentence", res.Sentence,
	)
	return res, nil
}

func (r *Reconstructor) record(ctx context.Context, res *Result, d time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.ReconstructDuration.Record(ctx, d.Seconds())
	r.metrics.LettersEmitted.Add(ctx, int64(len(res.Letters)))
	for _, c := range res.Corrections {
		r.metrics.RecordCorrection(ctx, string(c.Method))
	}
}
