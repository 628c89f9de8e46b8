package rag

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"

	"scholarbot/internal/models"
	"scholarbot/internal/session"
)

// Pipeline stage contracts. Each stage is independently testable; the
// orchestrator owns sequencing, failure policy and history commits.
type QueryRewriter interface {
	Rewrite(ctx context.Context, utterance string, history []models.Turn) (string, error)
}

type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Passage, error)
}

type AnswerComposer interface {
	Compose(ctx context.Context, query string, passages []models.Passage, history []models.Turn) (string, error)
	ComposeStream(ctx context.Context, query string, passages []models.Passage, history []models.Turn) (*schema.StreamReader[string], error)
}

// Answer is the outcome of one orchestrated exchange.
type Answer struct {
	SessionID string
	Response  string
	Context   []string
	Passages  []models.Passage
}

const (
	topK                   = 5
	defaultHistoryWindow   = 10
	defaultGenerateTimeout = 30 * time.Second
	defaultRetrieveTimeout = 15 * time.Second
)

// Orchestrator runs the conversational pipeline:
// rewrite (when history exists) -> retrieve -> compose -> commit.
//
// Failure policy: retrieval and composition failures never surface to
// the caller as errors; the client receives the fixed apology text. A
// retrieval failure commits nothing (no answer ever existed); a
// composition failure commits the apology turn; a broken stream commits
// whatever fragments were produced plus the apology fragment.
type Orchestrator struct {
	store    session.Store
	rewriter QueryRewriter
	retrieve PassageRetriever
	composer AnswerComposer

	historyWindow   int
	generateTimeout time.Duration
	retrieveTimeout time.Duration
}

// Option tunes orchestrator behavior.
type Option func(*Orchestrator)

func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyWindow = n
		}
	}
}

func WithTimeouts(generate, retrieve time.Duration) Option {
	return func(o *Orchestrator) {
		if generate > 0 {
			o.generateTimeout = generate
		}
		if retrieve > 0 {
			o.retrieveTimeout = retrieve
		}
	}
}

func NewOrchestrator(store session.Store, rewriter QueryRewriter, retriever PassageRetriever, composer AnswerComposer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:           store,
		rewriter:        rewriter,
		retrieve:        retriever,
		composer:        composer,
		historyWindow:   defaultHistoryWindow,
		generateTimeout: defaultGenerateTimeout,
		retrieveTimeout: defaultRetrieveTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Ask answers one utterance synchronously. The returned error is only
// non-nil for session-store failures; pipeline failures degrade to the
// apology answer.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, message string) (*Answer, error) {
	id, transcript, err := o.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	window := o.window(transcript)

	passages, failed := o.retrievePassages(ctx, id, message, window)
	if failed {
		// Nothing was answered; no turn is recorded.
		return &Answer{SessionID: id, Response: Apology, Context: []string{}, Passages: []models.Passage{}}, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, o.generateTimeout)
	answerText, err := o.composer.Compose(genCtx, message, passages, window)
	cancel()
	if err != nil {
		log.Printf("[chat] session %s: %v", id, &CompositionError{Err: err})
		o.commit(ctx, id, message, Apology, nil)
		return &Answer{SessionID: id, Response: Apology, Context: []string{}, Passages: []models.Passage{}}, nil
	}

	o.commit(ctx, id, message, answerText, passages)
	return &Answer{
		SessionID: id,
		Response:  answerText,
		Context:   passageContents(passages),
		Passages:  passages,
	}, nil
}

// AskStream answers one utterance incrementally, passing each fragment
// to emit as soon as the model produces it. When emit fails (client
// gone) fragment production stops and the partial turn is committed.
func (o *Orchestrator) AskStream(ctx context.Context, sessionID, message string, emit func(string) error) (*Answer, error) {
	id, transcript, err := o.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	window := o.window(transcript)

	passages, failed := o.retrievePassages(ctx, id, message, window)
	if failed {
		_ = emit(Apology)
		return &Answer{SessionID: id, Response: Apology, Context: []string{}, Passages: []models.Passage{}}, nil
	}

	streamReader, err := o.composer.ComposeStream(ctx, message, passages, window)
	if err != nil {
		log.Printf("[chat] session %s: %v", id, &CompositionError{Err: err})
		_ = emit(Apology)
		o.commit(ctx, id, message, Apology, nil)
		return &Answer{SessionID: id, Response: Apology, Context: []string{}, Passages: []models.Passage{}}, nil
	}
	defer streamReader.Close()

	var produced string
	for {
		fragment, err := streamReader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Already-yielded fragments stand; degrade with one
			// final apology fragment and keep the partial turn.
			log.Printf("[chat] session %s: stream interrupted: %v", id, err)
			_ = emit(Apology)
			produced += Apology
			o.commit(ctx, id, message, produced, passages)
			return &Answer{SessionID: id, Response: produced, Context: passageContents(passages), Passages: passages}, nil
		}
		if err := emit(fragment); err != nil {
			log.Printf("[chat] session %s: client stopped consuming: %v", id, err)
			o.commit(context.WithoutCancel(ctx), id, message, produced, passages)
			return &Answer{SessionID: id, Response: produced, Context: passageContents(passages), Passages: passages}, nil
		}
		produced += fragment
	}

	o.commit(ctx, id, message, produced, passages)
	return &Answer{
		SessionID: id,
		Response:  produced,
		Context:   passageContents(passages),
		Passages:  passages,
	}, nil
}

// DeleteSession clears one session's history. Idempotent.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := o.store.Delete(ctx, sessionID)
	return err
}

// retrievePassages runs the conditional rewrite then the index search.
// The bool reports retrieval failure.
func (o *Orchestrator) retrievePassages(ctx context.Context, id, message string, window []models.Turn) ([]models.Passage, bool) {
	query := message
	if len(window) > 0 {
		rewriteCtx, cancel := context.WithTimeout(ctx, o.generateTimeout)
		rewritten, err := o.rewriter.Rewrite(rewriteCtx, message, window)
		cancel()
		if err != nil {
			// Degraded retrieval beats no retrieval; search with
			// the raw utterance instead.
			log.Printf("[chat] session %s: rewrite failed, using raw query: %v", id, err)
		} else {
			query = rewritten
		}
	}

	retrieveCtx, cancel := context.WithTimeout(ctx, o.retrieveTimeout)
	passages, err := o.retrieve.Retrieve(retrieveCtx, query, topK)
	cancel()
	if err != nil {
		var retrievalErr *RetrievalError
		if !errors.As(err, &retrievalErr) {
			retrievalErr = &RetrievalError{Err: err}
		}
		log.Printf("[chat] session %s: %v", id, retrievalErr)
		return nil, true
	}
	return passages, false
}

func (o *Orchestrator) commit(ctx context.Context, id, userText, answerText string, passages []models.Passage) {
	turn := models.Turn{
		UserText:   userText,
		AnswerText: answerText,
		Passages:   passages,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.Append(ctx, id, turn); err != nil {
		log.Printf("[chat] session %s: commit turn: %v", id, err)
	}
}

// window returns the most recent turns fed to the model as context.
func (o *Orchestrator) window(transcript []models.Turn) []models.Turn {
	if len(transcript) <= o.historyWindow {
		return transcript
	}
	return transcript[len(transcript)-o.historyWindow:]
}

func passageContents(passages []models.Passage) []string {
	contents := make([]string, 0, len(passages))
	for _, p := range passages {
		contents = append(contents, p.PageContent)
	}
	return contents
}
