// Package app provides the core service behind the HTTP surface: it owns
// the score mutation path and orchestrates reconciliation and
// notification around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/giteval/internal/adapters/notify"
	"github.com/okian/giteval/internal/adapters/platform"
	"github.com/okian/giteval/internal/adapters/repository"
	"github.com/okian/giteval/internal/adapters/roles"
	"github.com/okian/giteval/internal/domain/dedupe"
	"github.com/okian/giteval/internal/domain/model"
	"github.com/okian/giteval/internal/domain/rank"
	"github.com/okian/giteval/pkg/logger"
	"github.com/okian/giteval/pkg/metrics"
)

const confirmationTTL = 5 * time.Minute

// Service implements the evaluation intake, registration and status
// contracts. All score mutations funnel through it under a per-identity
// critical section.
type Service struct {
	store      repository.Store
	table      *rank.Table
	reconciler *roles.Reconciler
	dispatcher *notify.Dispatcher
	deduper    dedupe.Deduper
	log        logger.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	confirmMu     sync.Mutex
	confirmations map[string]pendingConfirmation

	startMu sync.Mutex
	started bool
}

type pendingConfirmation struct {
	identity string
	handle   string
	expires  time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDeduper sets the delivery-id deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs the Service. The platform client is an injected
// dependency so tests can substitute the in-memory double.
func New(store repository.Store, table *rank.Table, client platform.Client, dispatcher *notify.Dispatcher, opts ...Option) *Service {
	s := &Service{
		store:         store,
		table:         table,
		reconciler:    roles.NewReconciler(client, table),
		dispatcher:    dispatcher,
		deduper:       dedupe.NewInMemoryDeduper(),
		locks:         make(map[string]*sync.Mutex),
		confirmations: make(map[string]pendingConfirmation),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("app")
	}
	return s
}

// WithReconciler overrides the default reconciler, e.g. to change the
// label prefix.
func WithReconciler(r *roles.Reconciler) Option {
	return func(s *Service) {
		if r != nil {
			s.reconciler = r
		}
	}
}

// Start warms up the role catalog and launches the notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return nil
	}
	if err := s.reconciler.WarmUp(ctx); err != nil {
		// Labels are also created lazily; a cold catalog is not fatal.
		s.log.Warn(ctx, "role catalog warm-up failed", logger.Error(err))
	}
	s.dispatcher.Start(ctx)
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateRegisteredUsers(n)
	}
	s.started = true
	s.log.Info(ctx, "service started")
	return nil
}

// Stop drains the notification workers.
func (s *Service) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started {
		return
	}
	s.dispatcher.Stop()
	s.started = false
	s.log.Info(context.Background(), "service stopped")
}

// identityLock returns the mutex serializing mutations for one identity.
func (s *Service) identityLock(identity string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[identity]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[identity] = mu
	}
	return mu
}

// EvaluationOutcome is the caller-visible result of one callback.
type EvaluationOutcome struct {
	ExternalIdentity    string
	OldRank             rank.Symbol
	NewRank             rank.Symbol
	Score               int
	Promoted            bool
	Duplicate           bool
	ReconciliationError string
}

// ProcessEvaluation applies one verified evaluation report.
//
// The score mutation is the source of truth: once Put succeeds the call is
// a success, and reconciliation or messaging failures are folded into
// ReconciliationError instead of unwinding anything. Pre-mutation failures
// (unknown handle, store write failure) surface as hard errors.
func (s *Service) ProcessEvaluation(ctx context.Context, report model.EvaluationReport, deliveryID string) (EvaluationOutcome, error) {
	if err := report.Validate(); err != nil {
		return EvaluationOutcome{}, fmt.Errorf("invalid report: %w", err)
	}

	identity, current, err := s.store.FindByHandle(ctx, report.LinkedHandle)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return EvaluationOutcome{}, fmt.Errorf("%w: %s", ErrNotRegistered, report.LinkedHandle)
		}
		return EvaluationOutcome{}, fmt.Errorf("resolve handle: %w", err)
	}

	if deliveryID != "" && s.deduper.SeenAndRecord(ctx, deliveryID) {
		metrics.RecordEvaluationDuplicate()
		return EvaluationOutcome{
			ExternalIdentity: identity,
			OldRank:          current.Rank,
			NewRank:          current.Rank,
			Score:            current.Score,
			Duplicate:        true,
		}, nil
	}

	mu := s.identityLock(identity)
	mu.Lock()
	// Re-read under the lock so concurrent evaluations for the same user
	// cannot both start from the pre-mutation score.
	current, err = s.store.Get(ctx, identity)
	if err != nil {
		mu.Unlock()
		s.unrecord(ctx, deliveryID)
		return EvaluationOutcome{}, fmt.Errorf("read user %s: %w", identity, err)
	}

	res, err := s.table.Apply(current.Score, report.ScoreDelta, report.AssertedRank)
	if err != nil {
		mu.Unlock()
		s.unrecord(ctx, deliveryID)
		return EvaluationOutcome{}, fmt.Errorf("apply delta: %w", err)
	}

	current.Score = res.NewScore
	current.Rank = res.NewRank
	if err := s.store.Put(ctx, identity, current); err != nil {
		mu.Unlock()
		s.unrecord(ctx, deliveryID)
		return EvaluationOutcome{}, fmt.Errorf("persist score: %w", err)
	}
	mu.Unlock()
	metrics.RecordEvaluationProcessed()

	tr := model.Transition{
		ExternalIdentity: identity,
		OldRank:          res.OldRank,
		NewRank:          res.NewRank,
		Score:            res.NewScore,
	}
	outcome := EvaluationOutcome{
		ExternalIdentity: identity,
		OldRank:          tr.OldRank,
		NewRank:          tr.NewRank,
		Score:            tr.Score,
	}
	outcome.Promoted, outcome.ReconciliationError = s.syncDownstream(ctx, report, tr)
	return outcome, nil
}

// syncDownstream runs the best-effort steps after a committed mutation:
// role reconciliation, promotion broadcast, evaluation DM. Failures are
// aggregated into one soft-error string.
func (s *Service) syncDownstream(ctx context.Context, report model.EvaluationReport, tr model.Transition) (bool, string) {
	var soft []string

	transitioned, err := s.reconciler.Reconcile(ctx, tr.ExternalIdentity, tr.OldRank, tr.NewRank)
	if err != nil {
		metrics.RecordReconcileError()
		s.log.Warn(ctx, "role reconciliation failed",
			logger.String("identity", tr.ExternalIdentity), logger.Error(err))
		soft = append(soft, fmt.Sprintf("role sync: %v", err))
		if errors.Is(err, platform.ErrMemberNotFound) {
			// The member left the community; messaging them is pointless.
			return false, strings.Join(soft, "; ")
		}
	}

	if transitioned {
		metrics.RecordPromotion()
		s.dispatcher.EnqueuePromotion(ctx, model.Promotion{
			ExternalIdentity: tr.ExternalIdentity,
			NewRank:          tr.NewRank,
			RankName:         s.table.Name(tr.NewRank),
		})
	}

	if err := s.dispatcher.SendEvaluationDM(ctx, report, tr, s.table.Name(tr.NewRank)); err != nil {
		s.log.Warn(ctx, "evaluation DM failed",
			logger.String("identity", tr.ExternalIdentity), logger.Error(err))
		soft = append(soft, fmt.Sprintf("dm: %v", err))
	}

	return transitioned, strings.Join(soft, "; ")
}

func (s *Service) unrecord(ctx context.Context, deliveryID string) {
	if deliveryID != "" {
		s.deduper.Unrecord(ctx, deliveryID)
	}
}

// RegistrationResult reports the outcome of a registration call.
type RegistrationResult struct {
	ExternalIdentity    string
	LinkedHandle        string
	Rank                rank.Symbol
	RankName            string
	Score               int
	ConfirmToken        string // set when ErrConfirmationRequired is returned
	ReconciliationError string
}

// Register creates the user record for identity at the lowest rank.
//
// Re-registering an existing identity is a destructive reset: the first
// call returns ErrConfirmationRequired plus a one-shot token, and only a
// second call presenting that token overwrites the record. On a confirmed
// reset all rank labels are detached before the lowest one is attached.
func (s *Service) Register(ctx context.Context, identity, handle, confirmToken string) (RegistrationResult, error) {
	if strings.TrimSpace(identity) == "" || strings.TrimSpace(handle) == "" {
		return RegistrationResult{}, fmt.Errorf("%w: identity and handle required", ErrUnknownUser)
	}

	mu := s.identityLock(identity)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.store.Get(ctx, identity)
	switch {
	case err == nil && confirmToken == "":
		token := s.issueConfirmation(identity, handle)
		return RegistrationResult{
			ExternalIdentity: identity,
			LinkedHandle:     existing.LinkedHandle,
			ConfirmToken:     token,
		}, ErrConfirmationRequired
	case err == nil:
		if !s.consumeConfirmation(identity, handle, confirmToken) {
			return RegistrationResult{}, ErrBadConfirmation
		}
	case !errors.Is(err, repository.ErrNotFound):
		return RegistrationResult{}, fmt.Errorf("read user %s: %w", identity, err)
	}
	reset := err == nil

	rec := model.UserRecord{
		LinkedHandle: handle,
		Score:        0,
		Rank:         s.table.Lowest(),
	}
	if err := s.store.Put(ctx, identity, rec); err != nil {
		return RegistrationResult{}, fmt.Errorf("persist registration: %w", err)
	}
	if n, err := s.store.Count(ctx); err == nil {
		metrics.UpdateRegisteredUsers(n)
	}

	var soft []string
	if reset {
		if err := s.reconciler.DetachAll(ctx, identity); err != nil {
			soft = append(soft, fmt.Sprintf("detach labels: %v", err))
		}
	}
	if _, err := s.reconciler.Reconcile(ctx, identity, rec.Rank, rec.Rank); err != nil {
		metrics.RecordReconcileError()
		s.log.Warn(ctx, "initial label attach failed",
			logger.String("identity", identity), logger.Error(err))
		soft = append(soft, fmt.Sprintf("role sync: %v", err))
	}

	return RegistrationResult{
		ExternalIdentity:    identity,
		LinkedHandle:        handle,
		Rank:                rec.Rank,
		RankName:            s.table.Name(rec.Rank),
		Score:               0,
		ReconciliationError: strings.Join(soft, "; "),
	}, nil
}

func (s *Service) issueConfirmation(identity, handle string) string {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	token := uuid.NewString()
	s.confirmations[token] = pendingConfirmation{
		identity: identity,
		handle:   handle,
		expires:  time.Now().Add(confirmationTTL),
	}
	return token
}

// consumeConfirmation redeems a token. Tokens are one-shot and bound to
// the identity/handle pair they were issued for.
func (s *Service) consumeConfirmation(identity, handle, token string) bool {
	s.confirmMu.Lock()
	defer s.confirmMu.Unlock()
	pending, ok := s.confirmations[token]
	if !ok {
		return false
	}
	delete(s.confirmations, token)
	if time.Now().After(pending.expires) {
		return false
	}
	return pending.identity == identity && pending.handle == handle
}

// UserStatus is the read model served to status queries.
type UserStatus struct {
	LinkedHandle     string
	Rank             rank.Symbol
	RankName         string
	Score            int
	RemainingToNext  *int     // nil at the terminal rank
	ProgressFraction *float64 // nil at the terminal rank
}

// Status returns the current standing for identity.
func (s *Service) Status(ctx context.Context, identity string) (UserStatus, error) {
	rec, err := s.store.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return UserStatus{}, fmt.Errorf("%w: %s", ErrUnknownUser, identity)
		}
		return UserStatus{}, fmt.Errorf("read user %s: %w", identity, err)
	}

	status := UserStatus{
		LinkedHandle: rec.LinkedHandle,
		Rank:         rec.Rank,
		RankName:     s.table.Name(rec.Rank),
		Score:        rec.Score,
	}
	if remaining, ok := s.table.RemainingToNext(rec.Rank, rec.Score); ok {
		status.RemainingToNext = &remaining
	}
	if frac, ok := s.table.Progress(rec.Rank, rec.Score); ok {
		status.ProgressFraction = &frac
	}
	return status, nil
}
