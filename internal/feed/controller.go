// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/mediafeed/internal/logging"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

// maxBuildAttempts bounds rebuilds when a refresh races an initial build.
const maxBuildAttempts = 3

// backgroundTask marks a background loop for one scope and epoch.
type backgroundTask struct {
	done atomic.Bool
}

type scopeState struct {
	epoch int64
	state State
}

// Controller builds sessions from a small initial batch and then improves
// them in the background, one batch at a time.
//
// Background loops are keyed by scope and epoch. A loop never interrupts
// itself on refresh; it stops at its next merge, which the new epoch turns
// into a no-op.
type Controller struct {
	cfg      *Config
	repo     ContentRepository
	cache    *SessionCache
	history  *WatchHistory
	scorer   *Scorer
	shuffler *DiversityShuffler
	clock    Clock
	seeds    SeedSource
	logger   zerolog.Logger

	builds singleflight.Group
	tasks  sync.Map // "scope#epoch" -> *backgroundTask

	corporaMu sync.RWMutex
	corpora   map[string]*corpus // scope string -> latest corpus

	statesMu sync.RWMutex
	states   map[string]scopeState

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewController wires the engine components together. history may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewController(cfg *Config, repo ContentRepository, cache *SessionCache, history *WatchHistory, clock Clock, seeds SeedSource, logger zerolog.Logger) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if repo == nil {
		return nil, errors.New("content repository is required")
	}
	if cache == nil {
		return nil, errors.New("session cache is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if seeds == nil {
		seeds = NewSeedSource(cfg.Seed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		repo:     repo,
		cache:    cache,
		history:  history,
		scorer:   NewScorer(cfg, clock),
		shuffler: NewDiversityShuffler(cfg.DecayFactor),
		clock:    clock,
		seeds:    seeds,
		logger:   logger.With().Str("component", "feed-controller").Logger(),
		corpora:  make(map[string]*corpus),
		states:   make(map[string]scopeState),
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

func taskKey(scope ScopeKey, epoch int64) string {
	return scope.String() + "#" + strconv.FormatInt(epoch, 10)
}

// Ensure returns the live session for scope, building it when the cache
// misses. Concurrent builds for the same scope are collapsed into one.
func (c *Controller) Ensure(ctx context.Context, scope ScopeKey) (*FeedSession, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	sess, ok, err := c.cache.Get(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok && c.lookupCorpus(scope, sess.Epoch) != nil {
		c.startBackground(scope, sess)
		return sess, nil
	}

	v, err, shared := c.builds.Do(scope.String(), func() (interface{}, error) {
		return c.build(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Str("scope", scope.String()).Msg("joined in-flight session build")
	}
	return v.(*FeedSession), nil
}

// build runs under the singleflight group. The shared build must not die
// with the first caller's request, so it only inherits the caller's values
// and is cancelled by Close instead.
func (c *Controller) build(callerCtx context.Context, scope ScopeKey) (*FeedSession, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(callerCtx))
	defer cancel()
	stop := context.AfterFunc(c.baseCtx, cancel)
	defer stop()

	for attempt := 1; ; attempt++ {
		sess, ok, err := c.cache.Get(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if ok && c.lookupCorpus(scope, sess.Epoch) != nil {
			return sess, nil
		}
		// Either the session was persisted by an earlier process and its
		// items are not resident, or an earlier session of this process
		// expired. Both get a new epoch so work started for the old session
		// can never merge into the rebuilt one.
		reuse, err := c.wouldReuseEpoch(ctx, scope)
		if err != nil {
			return nil, err
		}
		if ok || reuse {
			epoch, err := c.cache.Invalidate(ctx, scope)
			if err != nil {
				return nil, fmt.Errorf("invalidate previous session: %w", err)
			}
			c.logger.Debug().Str("scope", scope.String()).Int64("epoch", epoch).
				Bool("orphaned", ok).
				Msg("rebuilding session under a new epoch")
		}

		sess, err = c.buildInitial(ctx, scope)
		if errors.Is(err, ErrStaleSession) && attempt < maxBuildAttempts {
			c.logger.Debug().Str("scope", scope.String()).Int("attempt", attempt).
				Msg("scope refreshed during build, rebuilding")
			continue
		}
		return sess, err
	}
}

// buildInitial fetches, ranks and stores the first batch for scope.
func (c *Controller) buildInitial(ctx context.Context, scope ScopeKey) (*FeedSession, error) {
	start := time.Now()
	log := logging.CtxWith(ctx, c.logger).With().Str("scope", scope.String()).Logger()

	epoch, err := c.cache.CurrentEpoch(ctx, scope)
	if err != nil {
		metrics.RecordInitialBuild("error", time.Since(start))
		return nil, fmt.Errorf("read epoch: %w", err)
	}
	c.setState(scope, epoch, StateFetchingInitial)

	limit := c.cfg.InitialBatchSize
	if c.cfg.MaxCorpusItems > 0 && limit > c.cfg.MaxCorpusItems {
		limit = c.cfg.MaxCorpusItems
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
	res, err := c.repo.FetchPage(fetchCtx, scope, 0, limit)
	cancel()
	if err != nil {
		c.setState(scope, epoch, StateIdle)
		metrics.RecordInitialBuild("fetch_failed", time.Since(start))
		log.Error().Err(err).Int("limit", limit).Msg("initial fetch failed")
		return nil, &FetchError{Scope: scope, Offset: 0, Limit: limit, Err: err}
	}

	seed := c.seeds.NextSeed()
	now := c.clock.Now()
	corp := newCorpus(epoch, now.Add(c.cfg.SessionTTL))
	corp.add(res.Items)
	exhausted := c.exhausted(corp, res, limit)

	ranked := c.shuffler.Shuffle(c.scorer.ScoreAll(corp.snapshot(), c.seen(), seed), seed)
	sess := &FeedSession{
		Scope:      scope,
		OrderedIDs: IDs(ranked),
		CreatedAt:  now,
		ExpiresAt:  corp.expiresAt,
		Epoch:      epoch,
		Seed:       seed,
		Exhausted:  exhausted,
	}
	if err := c.cache.Put(ctx, scope, sess); err != nil {
		c.setState(scope, epoch, StateIdle)
		metrics.RecordInitialBuild("error", time.Since(start))
		return nil, fmt.Errorf("store session: %w", err)
	}
	c.registerCorpus(scope, corp)
	c.setState(scope, epoch, StateReady)

	outcome := "ok"
	if len(sess.OrderedIDs) == 0 {
		outcome = "empty"
	}
	metrics.RecordInitialBuild(outcome, time.Since(start))
	metrics.FeedCorpusSize.Observe(float64(corp.size()))
	log.Info().
		Int64("epoch", epoch).
		Int("items", len(sess.OrderedIDs)).
		Bool("exhausted", exhausted).
		Dur("duration", time.Since(start)).
		Msg("initial batch ranked")

	c.startBackground(scope, sess)
	return sess, nil
}

// exhausted reports whether the repository has nothing beyond what corp
// already fetched, or the corpus limit has been reached.
func (c *Controller) exhausted(corp *corpus, res FetchResult, requested int) bool {
	if len(res.Items) < requested {
		return true
	}
	if res.TotalKnown >= 0 && corp.offset() >= res.TotalKnown {
		return true
	}
	return c.cfg.MaxCorpusItems > 0 && corp.size() >= c.cfg.MaxCorpusItems
}

// startBackground launches the loop for the session's epoch unless one was
// already started or the corpus is complete.
func (c *Controller) startBackground(scope ScopeKey, sess *FeedSession) {
	if sess.Exhausted {
		return
	}
	key := taskKey(scope, sess.Epoch)
	task := &backgroundTask{}
	if _, loaded := c.tasks.LoadOrStore(key, task); loaded {
		return
	}

	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		task.done.Store(true)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runBackground(scope, sess.Epoch, sess.Seed)
		task.done.Store(true)
		c.setState(scope, sess.Epoch, StateBackgroundDone)
	}()
}

// runBackground fetches batches sequentially and merges a re-ranked tail
// after each one. It stops on fetch failure, on a rejected merge, on
// exhaustion and on Close.
func (c *Controller) runBackground(scope ScopeKey, epoch int64, seed uint64) {
	ctx := logging.ContextWithNewCorrelationID(c.baseCtx)
	log := logging.CtxWith(ctx, c.logger).With().
		Str("scope", scope.String()).
		Int64("epoch", epoch).
		Logger()

	metrics.FeedActiveBackgroundTasks.Inc()
	defer metrics.FeedActiveBackgroundTasks.Dec()

	corp := c.lookupCorpus(scope, epoch)
	if corp == nil {
		return
	}
	c.setState(scope, epoch, StateBackgroundFetching)

	batches := 0
	for {
		if ctx.Err() != nil {
			log.Debug().Msg("background loop cancelled")
			return
		}
		if c.cfg.MaxCorpusItems > 0 && corp.size() >= c.cfg.MaxCorpusItems {
			metrics.FeedBackgroundBatches.WithLabelValues("limit").Inc()
			if _, err := c.cache.SetExhausted(ctx, scope, epoch); err != nil {
				log.Warn().Err(err).Msg("failed to mark session complete")
			}
			log.Info().Int("items", corp.size()).Msg("corpus limit reached")
			return
		}

		offset := corp.offset()
		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
		res, err := c.repo.FetchPage(fetchCtx, scope, offset, c.cfg.BackgroundBatchSize)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.FeedBackgroundBatches.WithLabelValues("fetch_failed").Inc()
			log.Warn().Err(err).Int("offset", offset).Int("batches", batches).
				Msg("background fetch failed, keeping current ranking")
			return
		}
		batches++
		corp.add(res.Items)
		exhausted := c.exhausted(corp, res, c.cfg.BackgroundBatchSize)

		applied, err := c.mergePass(ctx, scope, epoch, seed, corp)
		if err != nil {
			log.Warn().Err(err).Msg("background merge failed")
			return
		}
		if !applied {
			metrics.FeedBackgroundBatches.WithLabelValues("stale").Inc()
			log.Debug().Int("batches", batches).Msg("epoch moved on, stopping background loop")
			return
		}
		metrics.FeedCorpusSize.Observe(float64(corp.size()))

		if exhausted {
			metrics.FeedBackgroundBatches.WithLabelValues("exhausted").Inc()
			if _, err := c.cache.SetExhausted(ctx, scope, epoch); err != nil {
				log.Warn().Err(err).Msg("failed to mark session complete")
			}
			log.Info().Int("items", corp.size()).Int("batches", batches).Msg("corpus fully ranked")
			return
		}
		metrics.FeedBackgroundBatches.WithLabelValues("merged").Inc()
	}
}

// mergePass re-scores the whole corpus, shuffles everything outside the
// served prefix and merges it as the new tail.
func (c *Controller) mergePass(ctx context.Context, scope ScopeKey, epoch int64, seed uint64, corp *corpus) (bool, error) {
	sess, ok, err := c.cache.Get(ctx, scope)
	if err != nil {
		return false, err
	}
	if !ok || sess.Epoch != epoch {
		metrics.RecordTailMerge(false)
		return false, nil
	}

	served := make(map[string]struct{}, sess.ServedCount)
	for _, id := range sess.ServedPrefix() {
		served[id] = struct{}{}
	}

	// Stats come from the whole corpus so engagement stays comparable with
	// the scores of the items already served.
	scored := c.scorer.ScoreAll(corp.snapshot(), c.seen(), seed)
	tail := make([]ScoredItem, 0, max(len(scored)-len(served), 0))
	for i := range scored {
		if _, ok := served[scored[i].Item.ID]; !ok {
			tail = append(tail, scored[i])
		}
	}

	return c.cache.MergeTail(ctx, scope, epoch, IDs(c.shuffler.Shuffle(tail, seed)))
}

func (c *Controller) seen() ItemSet {
	if c.history == nil {
		return nil
	}
	return c.history.Snapshot()
}

func (c *Controller) registerCorpus(scope ScopeKey, corp *corpus) {
	c.corporaMu.Lock()
	defer c.corporaMu.Unlock()
	if old, ok := c.corpora[scope.String()]; ok && old.epoch != corp.epoch {
		c.tasks.Delete(taskKey(scope, old.epoch))
	}
	c.corpora[scope.String()] = corp
}

// wouldReuseEpoch reports whether a resident corpus already belongs to the
// scope's current epoch.
func (c *Controller) wouldReuseEpoch(ctx context.Context, scope ScopeKey) (bool, error) {
	c.corporaMu.RLock()
	corp, ok := c.corpora[scope.String()]
	c.corporaMu.RUnlock()
	if !ok {
		return false, nil
	}
	current, err := c.cache.CurrentEpoch(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("read epoch: %w", err)
	}
	return corp.epoch >= current, nil
}

func (c *Controller) lookupCorpus(scope ScopeKey, epoch int64) *corpus {
	c.corporaMu.RLock()
	defer c.corporaMu.RUnlock()
	corp, ok := c.corpora[scope.String()]
	if !ok || corp.epoch != epoch {
		return nil
	}
	return corp
}

// Resolve maps session ids to content items for the given epoch.
func (c *Controller) Resolve(scope ScopeKey, epoch int64, ids []string) []ContentItem {
	corp := c.lookupCorpus(scope, epoch)
	if corp == nil {
		return nil
	}
	return corp.resolve(ids)
}

// CorpusSize returns the number of resident items for scope and epoch.
func (c *Controller) CorpusSize(scope ScopeKey, epoch int64) int {
	if corp := c.lookupCorpus(scope, epoch); corp != nil {
		return corp.size()
	}
	return 0
}

// BackgroundRunning reports whether a background loop for scope and epoch
// is still running.
func (c *Controller) BackgroundRunning(scope ScopeKey, epoch int64) bool {
	v, ok := c.tasks.Load(taskKey(scope, epoch))
	return ok && !v.(*backgroundTask).done.Load()
}

// setState records st unless a newer epoch already owns the scope.
func (c *Controller) setState(scope ScopeKey, epoch int64, st State) {
	c.statesMu.Lock()
	defer c.statesMu.Unlock()
	key := scope.String()
	if cur, ok := c.states[key]; ok && cur.epoch > epoch {
		return
	}
	c.states[key] = scopeState{epoch: epoch, state: st}
}

// State returns the lifecycle state of scope.
func (c *Controller) State(scope ScopeKey) State {
	c.statesMu.RLock()
	defer c.statesMu.RUnlock()
	return c.states[scope.Normalize().String()].state
}

// Maintain drops resident corpora whose sessions have expired and whose
// background loops have finished.
func (c *Controller) Maintain(_ context.Context) error {
	now := c.clock.Now()

	c.corporaMu.Lock()
	defer c.corporaMu.Unlock()
	for key, corp := range c.corpora {
		if now.Before(corp.expiresAt) {
			continue
		}
		tk := key + "#" + strconv.FormatInt(corp.epoch, 10)
		if v, ok := c.tasks.Load(tk); ok && !v.(*backgroundTask).done.Load() {
			continue
		}
		c.tasks.Delete(tk)
		delete(c.corpora, key)

		c.statesMu.Lock()
		if st, ok := c.states[key]; ok && st.epoch <= corp.epoch {
			delete(c.states, key)
		}
		c.statesMu.Unlock()
	}
	return nil
}

func (c *Controller) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

// Close cancels background loops and waits for them to return.
func (c *Controller) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
