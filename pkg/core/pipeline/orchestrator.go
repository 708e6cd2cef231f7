// Package pipeline implements the Agent Graph Scheduler: it owns the DAG
// of analyst nodes, the probe step that precedes them, tool dispatch on
// behalf of nodes, and the final strategy decision. Each run mints an ID,
// drives the typed analysts against a shared state, and dispatches their
// tool calls; execution order follows the dependency edges.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketaoc/pkg/core/artifact"
	"marketaoc/pkg/core/graph"
	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/obslog"
	"marketaoc/pkg/core/probe"
	"marketaoc/pkg/core/session"
	"marketaoc/pkg/core/strategy"
	"marketaoc/pkg/core/toolkit"
)

// requiredTools are the tool names the Scheduler dispatches; a registry
// missing any of them is a configuration error surfaced before any node
// runs.
var requiredTools = []string{
	"fetch_macro_data",
	"fetch_policy_news",
	"fetch_sector_rotation",
	"fetch_index_constituents",
	"fetch_sector_news",
	"fetch_stock_sector_info",
	"fetch_multi_source_news",
	"fetch_technical_indicators",
}

// Config carries the Scheduler's tunables.
type Config struct {
	// Concurrency bounds how many analyst nodes run at once. Zero means
	// the default of one worker per parallel analyst.
	Concurrency int
	// ToolTimeout bounds each individual tool dispatch. Zero means 10s.
	ToolTimeout time.Duration
	// Deadline bounds the whole analysis. Zero means no top-level deadline
	// beyond whatever the caller's ctx carries.
	Deadline time.Duration
	// Budgets overrides per-node tool-call budgets by analyst kind; unset
	// kinds keep the defaults compiled into the analyst specs.
	Budgets map[session.AnalystKind]int
}

// ModelResolver maps an analyst kind to the ChatModel that node should use,
// letting config route different analysts to different providers the way
// agent.Manager's per-agent provider overrides do.
type ModelResolver func(kind session.AnalystKind) llm.ChatModel

// Scheduler coordinates probe, analyst graph, and strategy decision.
type Scheduler struct {
	probe    *probe.Probe
	tools    *toolkit.Registry
	runtime  *graph.Runtime
	advisor  *strategy.Advisor
	modelFor ModelResolver
	cfg      Config
}

// NewScheduler wires a Scheduler from its collaborators.
func NewScheduler(p *probe.Probe, tools *toolkit.Registry, advisor *strategy.Advisor, modelFor ModelResolver, cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 10 * time.Second
	}
	return &Scheduler{
		probe:    p,
		tools:    tools,
		runtime:  graph.NewRuntime(),
		advisor:  advisor,
		modelFor: modelFor,
		cfg:      cfg,
	}
}

// Result is what a completed (possibly degraded) analysis returns to the
// caller: the strategy artifact, every intermediate analyst artifact, and
// the probe status map for diagnostic display.
type Result struct {
	RunID            string                               `json:"run_id"`
	Request          session.Request                      `json:"request"`
	Strategy         strategy.Artifact                    `json:"strategy"`
	Reports          map[session.AnalystKind]string       `json:"reports"`
	DataSourceStatus map[string]session.SourceProbeResult `json:"data_source_status"`
	Elapsed          time.Duration                        `json:"elapsed_ns"`
}

// Run executes one full analysis: probe, analyst DAG, strategy decision.
// It only errors on configuration problems (malformed request, missing
// tools); data-layer failures degrade into low-confidence artifacts.
func (s *Scheduler) Run(ctx context.Context, req session.Request) (Result, error) {
	if err := validateRequest(&req); err != nil {
		return Result{}, err
	}
	for _, name := range requiredTools {
		if !s.tools.Has(name) {
			return Result{}, fmt.Errorf("pipeline: required tool %q is not registered", name)
		}
	}

	if s.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	runID := uuid.NewString()
	start := time.Now()
	state := session.New(req)
	obslog.Infof("[%s] analysis started: %s %s/%s", runID[:8], req.Symbol, req.SessionKind, req.ResearchDepth)

	for source, result := range s.probe.RunAll(ctx, req) {
		state.SetProbeResult(source, result)
		if !result.Available {
			obslog.Warnf("[%s] source %s unavailable: %s", runID[:8], source, result.Error)
		}
	}

	specs := s.specsFor(req.ResearchDepth)
	s.executeDAG(ctx, runID, state, specs)

	s.normalizePolicyArtifact(runID, state)

	art := s.decide(ctx, state)
	state.SetReport(session.KindStrategy, art.RawJSON())

	reports := make(map[session.AnalystKind]string)
	for _, kind := range []session.AnalystKind{
		session.KindMacro, session.KindPolicy, session.KindSector,
		session.KindTech, session.KindIntlNews, session.KindStrategy,
	} {
		if raw, ok := state.GetReport(kind); ok {
			reports[kind] = raw
		}
	}

	res := Result{
		RunID:            runID,
		Request:          req,
		Strategy:         art,
		Reports:          reports,
		DataSourceStatus: snapshotStatus(state),
		Elapsed:          time.Since(start),
	}
	obslog.Okf("[%s] analysis finished in %v: position %.0f%% (%s)",
		runID[:8], res.Elapsed.Round(time.Millisecond), art.FinalPosition*100, art.MarketOutlook)
	return res, nil
}

func validateRequest(req *session.Request) error {
	if req.Symbol == "" {
		return fmt.Errorf("pipeline: request has no symbol")
	}
	switch req.SessionKind {
	case session.SessionMorning, session.SessionClosing, session.SessionPost:
	case "":
		req.SessionKind = session.SessionPost
	default:
		return fmt.Errorf("pipeline: unknown session kind %q", req.SessionKind)
	}
	switch req.ResearchDepth {
	case session.DepthQuick, session.DepthStandard, session.DepthDeep:
	case "":
		req.ResearchDepth = session.DepthStandard
	default:
		return fmt.Errorf("pipeline: unknown research depth %q", req.ResearchDepth)
	}
	if req.MarketType == "" {
		req.MarketType = session.MarketAShare
	}
	if req.TradeDate == "" {
		req.TradeDate = time.Now().Format("2006-01-02")
	}
	return nil
}

// specsFor assembles the node set for the requested depth. Quick runs only
// the three primary analysts; standard and deep add technical and
// international news, with deep also granting each node a larger tool-call
// budget.
func (s *Scheduler) specsFor(depth session.ResearchDepth) []graph.AnalystSpec {
	specs := []graph.AnalystSpec{
		graph.NewMacroAnalystSpec(s.modelFor(session.KindMacro)),
		graph.NewPolicyAnalystSpec(s.modelFor(session.KindPolicy)),
		graph.NewSectorAnalystSpec(s.modelFor(session.KindSector)),
	}
	if depth != session.DepthQuick {
		specs = append(specs,
			graph.NewTechnicalAnalystSpec(s.modelFor(session.KindTech)),
			graph.NewIntlNewsAnalystSpec(s.modelFor(session.KindIntlNews)),
		)
	}
	for i := range specs {
		if override, ok := s.cfg.Budgets[specs[i].Kind]; ok && override > 0 {
			specs[i].MaxToolCalls = override
		}
	}
	if depth == session.DepthDeep {
		for i := range specs {
			specs[i].MaxToolCalls += 2
		}
	}
	return specs
}

// nodeDeps encodes the graph's edges: sector consumes the policy artifact;
// every other analyst depends only on the probe, which has already run by
// the time the DAG starts.
var nodeDeps = map[session.AnalystKind][]session.AnalystKind{
	session.KindSector: {session.KindPolicy},
}

// executeDAG runs the analyst nodes respecting dependency edges, the
// concurrency bound, and cancellation. A node that cannot run (deadline
// expired before its turn) still leaves a fallback artifact behind: no edge
// is skipped silently, every downstream sees some artifact.
func (s *Scheduler) executeDAG(ctx context.Context, runID string, state *session.AgentState, specs []graph.AnalystSpec) {
	inSet := make(map[session.AnalystKind]bool, len(specs))
	done := make(map[session.AnalystKind]chan struct{}, len(specs))
	for _, sp := range specs {
		inSet[sp.Kind] = true
		done[sp.Kind] = make(chan struct{})
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, sp := range specs {
		sp := sp
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(done[sp.Kind])

			for _, dep := range nodeDeps[sp.Kind] {
				if inSet[dep] {
					select {
					case <-done[dep]:
					case <-ctx.Done():
					}
				}
			}

			// Once the deadline has expired the Scheduler stops dispatching
			// new nodes; the node's fallback still lands so downstream
			// consumers see an artifact.
			if ctx.Err() != nil {
				s.ensureFallback(state, sp)
				return
			}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				s.ensureFallback(state, sp)
				return
			}

			if err := s.runtime.Run(ctx, sp, state, s.dispatch); err != nil {
				obslog.Warnf("[%s] node %s degraded: %v", runID[:8], sp.Kind, err)
			}
			s.ensureFallback(state, sp)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) ensureFallback(state *session.AgentState, sp graph.AnalystSpec) {
	if _, ok := state.GetReport(sp.Kind); !ok {
		state.SetReport(sp.Kind, sp.Fallback(state))
	}
}

// dispatch is the ToolDispatcher handed to every node: it maps a tool-call
// directive to the registry and bounds it with the per-tool timeout.
func (s *Scheduler) dispatch(ctx context.Context, call session.ToolCall) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()
	return s.tools.Dispatch(callCtx, call.Name, call.Arguments)
}

// normalizePolicyArtifact enforces responsibility separation after the
// policy node has committed: any position-like field is stripped and the
// artifact's confidence reduced.
func (s *Scheduler) normalizePolicyArtifact(runID string, state *session.AgentState) {
	raw, ok := state.GetReport(session.KindPolicy)
	if !ok {
		return
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return
	}
	if !artifact.HasContractViolation(fields) {
		return
	}

	obslog.Errorf("[%s] policy artifact carried a position-like field; stripping (contract defect)", runID[:8])
	cleaned, strippedKeys := artifact.StripPositionFields(fields)
	if cleaned == "" {
		return
	}
	var cleanFields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &cleanFields); err == nil {
		if conf, ok := cleanFields["confidence"].(float64); ok {
			cleanFields["confidence"] = conf * 0.7
		}
		if reraw, err := json.Marshal(cleanFields); err == nil {
			cleaned = string(reraw)
		}
	}
	state.SetReport(session.KindPolicy, cleaned)
	obslog.Warnf("[%s] stripped policy fields: %v", runID[:8], strippedKeys)
}

// decide feeds the committed artifacts to the Strategy Decision Function.
// Artifacts are read from the same state the nodes committed to, so the
// inputs are always consistent with one request.
func (s *Scheduler) decide(ctx context.Context, state *session.AgentState) strategy.Artifact {
	get := func(kind session.AnalystKind) string {
		raw, _ := state.GetReport(kind)
		return raw
	}
	return s.advisor.Decide(ctx, strategy.Inputs{
		Macro:     get(session.KindMacro),
		Policy:    get(session.KindPolicy),
		Sector:    get(session.KindSector),
		IntlNews:  get(session.KindIntlNews),
		Technical: get(session.KindTech),
		Session:   state.Request.SessionKind,
	})
}

func snapshotStatus(state *session.AgentState) map[string]session.SourceProbeResult {
	out := make(map[string]session.SourceProbeResult)
	for _, source := range []string{
		probe.SourceMacro, probe.SourcePolicy, probe.SourceNews,
		probe.SourceSectorFlow, probe.SourceTechnical,
	} {
		if r, ok := state.ProbeResult(source); ok {
			out[source] = r
		}
	}
	return out
}
