package kb

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/inference"
	"github.com/teranos/doxa/kb/ontology"
	"github.com/teranos/doxa/kb/snapshot"
	"github.com/teranos/doxa/kb/storage"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
	"github.com/teranos/doxa/logger"
)

// Session is the single mutation gate over one knowledge base. Mutations
// take the write lock; queries take the read lock, so reads run
// concurrently with each other but never with a mutation. Inference runs
// and snapshot loads hold the write lock end to end: no partial
// derivation set or half-loaded state is ever observable.
//
// With a store attached, every committed mutation writes through, so
// one-shot CLI invocations share state across processes the way the
// server does.
type Session struct {
	mu sync.RWMutex

	ont      *ontology.Ontology
	registry *contexts.Registry
	rules    []inference.Rule

	store *storage.SQLStore
	sink  Sink
	log   *zap.SugaredLogger
	clock func() time.Time

	policy         temporal.OverlapPolicy
	maxRounds      int
	maxDerivations int
	hierarchy      bool

	contextSeq int
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithStore attaches a durable store. Committed mutations write through;
// OpenSession rehydrates from it at startup.
func WithStore(st *storage.SQLStore) SessionOption {
	return func(s *Session) { s.store = st }
}

// WithSink registers a change sink. Use a MultiSink for more than one.
func WithSink(sink Sink) SessionOption {
	return func(s *Session) { s.sink = sink }
}

// SetSink replaces the session sink. Hosts that subscribe to a session
// they did not construct (the server, the watch engine) attach here.
func (s *Session) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// WithSessionLogger overrides the session's logger.
func WithSessionLogger(l *zap.SugaredLogger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithOverlapPolicy sets the timeline overlap policy for the arena.
func WithOverlapPolicy(p temporal.OverlapPolicy) SessionOption {
	return func(s *Session) { s.policy = p }
}

// WithInferenceBudgets overrides the fixpoint budgets. Zero keeps the
// engine default.
func WithInferenceBudgets(maxRounds, maxDerivations int) SessionOption {
	return func(s *Session) {
		s.maxRounds = maxRounds
		s.maxDerivations = maxDerivations
	}
}

// WithHierarchyInference materializes IS-A edges as HAS_PARENT relations
// before each inference run.
func WithHierarchyInference() SessionOption {
	return func(s *Session) { s.hierarchy = true }
}

// WithClock injects the session time source. Tests pin this.
func WithClock(clock func() time.Time) SessionOption {
	return func(s *Session) { s.clock = clock }
}

// NewSession builds an empty session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		registry: contexts.NewRegistry(),
		log:      logger.Logger,
		clock:    time.Now,
		policy:   temporal.OverlapReject,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ont = ontology.New(s.arenaOptions()...)
	return s
}

// OpenSession rehydrates a session from its store: ontology, contexts,
// and rules. The store option is implied.
func OpenSession(st *storage.SQLStore, opts ...SessionOption) (*Session, error) {
	s := &Session{
		store:  st,
		log:    logger.Logger,
		clock:  time.Now,
		policy: temporal.OverlapReject,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = st

	ont, err := st.LoadOntology(s.arenaOptions()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ontology")
	}
	registry, err := st.LoadContexts()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load contexts")
	}
	rules, err := st.LoadRules()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load rules")
	}

	s.ont = ont
	s.registry = registry
	s.rules = rules
	s.contextSeq = registry.Len()
	return s, nil
}

func (s *Session) arenaOptions() []ontology.Option {
	return []ontology.Option{
		ontology.WithOverlapPolicy(s.policy),
		ontology.WithClock(s.clock),
		ontology.WithLogger(s.log),
		ontology.WithSink(&sessionSink{s: s}),
	}
}

// sessionSink receives arena events on the mutating goroutine: it writes
// the change through to the store, then forwards to the session sink.
// Inference derivations flow through here too, so derived facts persist
// without the engine knowing about storage.
type sessionSink struct {
	s *Session
}

func (k *sessionSink) Notify(ev ontology.Event) {
	k.persist(ev)
	if k.s.sink != nil {
		k.s.sink.OnEvent(ev)
	}
}

// persist writes one committed change through to the store. Persistence
// failures are logged, never propagated: the in-memory arena is the
// source of truth for the rest of the call.
func (k *sessionSink) persist(ev ontology.Event) {
	st := k.s.store
	if st == nil {
		return
	}

	var err error
	switch ev.Kind {
	case ontology.EventEntityCreated, ontology.EventParentAdded:
		var e *ontology.Entity
		if e, err = k.s.ont.Entity(string(ev.Entity)); err == nil {
			err = st.SaveEntity(e)
		}
	case ontology.EventEntityRemoved:
		err = st.DeleteEntity(ev.Entity)
		// The cascade stripped the removed id from other entities'
		// Parents; re-save so the stored hierarchy matches.
		if err == nil {
			for _, e := range k.s.ont.Entities() {
				if err = st.SaveEntity(e); err != nil {
					break
				}
			}
		}
	case ontology.EventRelationCreated, ontology.EventDefaultChanged:
		var rel *ontology.Relation
		if rel, err = k.s.ont.Relation(string(ev.Relation.Subject), string(ev.Relation.Type), string(ev.Relation.Object)); err == nil {
			err = st.SaveRelation(rel)
		}
	case ontology.EventRelationRemoved:
		err = st.DeleteRelation(ev.RelationID)
	case ontology.EventTruthAsserted:
		var rel *ontology.Relation
		if rel, err = k.s.ont.Relation(string(ev.Relation.Subject), string(ev.Relation.Type), string(ev.Relation.Object)); err == nil {
			err = st.ReplaceAssertions(rel.ID, rel.Timeline().Assertions())
		}
	}
	if err != nil {
		k.s.log.Errorw("Failed to persist change",
			logger.FieldOperation, ev.Kind.String(),
			logger.FieldError, err)
	}
}

// CreateEntity registers a new entity.
func (s *Session) CreateEntity(id string, attrs map[string]string) (*ontology.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.CreateEntity(id, attrs)
}

// RemoveEntity deletes an entity, cascading to every relation that
// references it.
func (s *Session) RemoveEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.RemoveEntity(id)
}

// SetNote attaches a description to an entity.
func (s *Session) SetNote(id, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ont.SetNote(id, note); err != nil {
		return err
	}
	return s.persistEntity(id)
}

// SetAttr sets one entity attribute.
func (s *Session) SetAttr(id, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ont.SetAttr(id, key, value); err != nil {
		return err
	}
	return s.persistEntity(id)
}

// persistEntity writes an entity row for mutations that emit no event.
// Callers hold the write lock.
func (s *Session) persistEntity(id string) error {
	if s.store == nil {
		return nil
	}
	e, err := s.ont.Entity(id)
	if err != nil {
		return err
	}
	return s.store.SaveEntity(e)
}

// AddParent records child IS-A parent.
func (s *Session) AddParent(child, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.AddParent(child, parent)
}

// CreateRelation registers a typed edge with a default truth value.
func (s *Session) CreateRelation(subj, typ, obj string, def truth.Value) (*ontology.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.CreateRelation(subj, typ, obj, def)
}

// RemoveRelation deletes a relation and its timeline.
func (s *Session) RemoveRelation(subj, typ, obj string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.RemoveRelation(subj, typ, obj)
}

// SetDefault changes the value a relation reports outside any interval.
func (s *Session) SetDefault(subj, typ, obj string, v truth.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.SetDefault(subj, typ, obj, v)
}

// Assert stores a truth value over an interval on a relation's timeline.
func (s *Session) Assert(subj, typ, obj string, iv temporal.Interval, v truth.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ont.AssertTruth(subj, typ, obj, iv, v, temporal.OriginAsserted)
}

// QueryAt reports a relation's truth value at an instant.
func (s *Session) QueryAt(subj, typ, obj string, t time.Time) (truth.Value, temporal.Origin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ont.TruthAt(subj, typ, obj, t)
}

// QueryOver partitions a relation's truth across a range.
func (s *Session) QueryOver(subj, typ, obj string, iv temporal.Interval) ([]temporal.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ont.TruthOver(subj, typ, obj, iv)
}

// Entity looks up one entity.
func (s *Session) Entity(id string) (*ontology.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ont.Entity(id)
}

// Entities lists all entities in creation order.
func (s *Session) Entities() []*ontology.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ont.Entities()
}

// Relation looks up one relation.
func (s *Session) Relation(subj, typ, obj string) (*ontology.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ont.Relation(subj, typ, obj)
}

// Relations lists all relations in creation order.
func (s *Session) Relations() []*ontology.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ont.Relations()
}

// DefineContext names a context expression. Unresolvable or cyclic
// references fail with a structural error.
func (s *Session) DefineContext(name string, node contexts.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.registry.Define(name, node); err != nil {
		return err
	}
	s.contextSeq++
	if s.store != nil {
		if err := s.store.SaveContext(contexts.NormalizeName(name), node, s.contextSeq); err != nil {
			s.log.Errorw("Failed to persist context",
				logger.FieldContext, name,
				logger.FieldError, err)
		}
	}
	return nil
}

// RemoveContext deletes a named context.
func (s *Session) RemoveContext(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.registry.Remove(name); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.DeleteContext(contexts.NormalizeName(name)); err != nil {
			return err
		}
	}
	return nil
}

// ContextNames lists defined contexts in definition order.
func (s *Session) ContextNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Names()
}

// ResolveContext returns a named context's expression tree.
func (s *Session) ResolveContext(name string) (contexts.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Resolve(name)
}

// Eval evaluates a context expression at an instant.
func (s *Session) Eval(node contexts.Node, t time.Time) (truth.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contexts.NewEvaluator(s.ont, s.registry).At(node, t)
}

// EvalName evaluates a named context at an instant.
func (s *Session) EvalName(name string, t time.Time) (truth.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, err := s.registry.Resolve(name)
	if err != nil {
		return truth.Unknown, err
	}
	return contexts.NewEvaluator(s.ont, s.registry).At(node, t)
}

// EvalOver evaluates a context expression across a range, returning a
// gapless partition.
func (s *Session) EvalOver(node contexts.Node, iv temporal.Interval) ([]temporal.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contexts.NewEvaluator(s.ont, s.registry).Over(node, iv)
}

// AddRule validates and appends an inference rule.
func (s *Session) AddRule(r inference.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRuleLocked(r)
}

// AddRules appends a batch of rules, stopping at the first invalid one.
func (s *Session) AddRules(rules []inference.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		if err := s.addRuleLocked(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) addRuleLocked(r inference.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, existing := range s.rules {
		if existing.Name == r.Name {
			return errors.NewStructural("rule %s is already defined", r.Name)
		}
	}
	s.rules = append(s.rules, r)
	if s.store != nil {
		if err := s.store.SaveRule(r); err != nil {
			s.log.Errorw("Failed to persist rule",
				logger.FieldRule, r.Name,
				logger.FieldError, err)
		}
	}
	return nil
}

// RemoveRule deletes a rule by name.
func (s *Session) RemoveRule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.Name == name {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			if s.store != nil {
				return s.store.DeleteRule(name)
			}
			return nil
		}
	}
	return errors.NewStructural("rule %s is not defined", name)
}

// Rules returns the session rule set in firing order.
func (s *Session) Rules() []inference.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inference.Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Infer runs the rule set to fixpoint. The run holds the write lock: no
// reader observes a partial derivation set. Facts derived before a
// budget cut stay; the report records contradictions and exhaustion.
func (s *Session) Infer() (inference.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := []inference.EngineOption{inference.WithEngineLogger(s.log)}
	if s.maxRounds > 0 {
		opts = append(opts, inference.WithMaxRounds(s.maxRounds))
	}
	if s.maxDerivations > 0 {
		opts = append(opts, inference.WithMaxDerivations(s.maxDerivations))
	}
	if s.hierarchy {
		opts = append(opts, inference.WithHierarchy())
	}

	engine, err := inference.NewEngine(s.rules, opts...)
	if err != nil {
		return inference.Report{}, err
	}
	report, runErr := engine.Run(s.ont)
	if s.sink != nil {
		s.sink.OnInference(report)
	}
	return report, runErr
}

// Save writes a snapshot of the whole session state.
func (s *Session) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot.Save(w, s.snapshotState())
}

// SaveFile writes a snapshot atomically to path.
func (s *Session) SaveFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot.SaveFile(path, s.snapshotState())
}

func (s *Session) snapshotState() snapshot.State {
	return snapshot.State{
		Ontology: s.ont,
		Contexts: s.registry,
		Rules:    s.rules,
	}
}

// Load replaces the session state with a snapshot. The incoming document
// is validated and restored into a fresh arena first; the swap happens
// only on full success, so a bad snapshot mutates nothing. With a store
// attached, the durable state is rewritten to match.
func (s *Session) Load(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := snapshot.Load(r, s.arenaOptions()...)
	if err != nil {
		return err
	}

	s.ont = st.Ontology
	s.registry = st.Contexts
	s.rules = st.Rules
	s.contextSeq = st.Contexts.Len()

	if s.store != nil {
		if err := s.rewriteStore(); err != nil {
			s.log.Errorw("Failed to rewrite store after snapshot load",
				logger.FieldError, err)
		}
	}
	return nil
}

// LoadFile loads a snapshot from a local path.
func (s *Session) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open snapshot %s", path)
	}
	defer f.Close()
	return s.Load(f)
}

// rewriteStore clears the durable store and re-persists everything the
// session now holds. Callers hold the write lock.
func (s *Session) rewriteStore() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	for _, e := range s.ont.Entities() {
		if err := s.store.SaveEntity(e); err != nil {
			return err
		}
	}
	for _, rel := range s.ont.Relations() {
		if err := s.store.SaveRelation(rel); err != nil {
			return err
		}
		if rel.Timeline().Len() > 0 {
			if err := s.store.ReplaceAssertions(rel.ID, rel.Timeline().Assertions()); err != nil {
				return err
			}
		}
	}
	for i, name := range s.registry.Names() {
		node, err := s.registry.Resolve(name)
		if err != nil {
			return err
		}
		if err := s.store.SaveContext(name, node, i+1); err != nil {
			return err
		}
	}
	for _, r := range s.rules {
		if err := s.store.SaveRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Now returns the session clock's current instant.
func (s *Session) Now() time.Time {
	return s.clock()
}

// Stats reports arena sizes: entities, relations, stored assertions,
// contexts, rules.
func (s *Session) Stats() (entities, relations, assertions, contextCount, ruleCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entities, relations, assertions = s.ont.Stats()
	contextCount = s.registry.Len()
	ruleCount = len(s.rules)
	return
}
