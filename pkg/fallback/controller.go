package fallback

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/config"
	"ccproxy/pkg/manager"
	"ccproxy/pkg/providers"
	"ccproxy/pkg/telemetry/metrics"
	"ccproxy/pkg/translate"
)

// Controller is the Fallback Controller (§4.6). It mints no request ids
// itself — callers (the HTTP handler) mint request_id once and pass it
// in, so it stays the cancellation and logging key for the whole
// lifecycle across every retry and escalation.
type Controller struct {
	holder    *manager.Holder
	minTokens int
	maxTokens int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(holder *manager.Holder, minTokens, maxTokens int, logger *slog.Logger, m *metrics.Metrics) *Controller {
	return &Controller{holder: holder, minTokens: minTokens, maxTokens: maxTokens, logger: logger, metrics: m}
}

// StreamEvent pairs a translated outbound event with a terminal error, if
// any. Err is non-nil only on the final item of the channel.
type StreamEvent struct {
	Event claude.Event
	Err   *providers.Error
}

// HandleUnary runs the full unary request lifecycle (§4.6 steps 2-6) and
// returns either a translated Claude reply or the final upstream error.
func (c *Controller) HandleUnary(ctx context.Context, requestID string, req *claude.Request) (*claude.Response, *providers.Error) {
	mgr := c.holder.Get()

	if mgr.IsLegacy() && config.IsLegacyPassthrough(req.Model) {
		return c.handleLegacyPassthrough(ctx, mgr, req)
	}

	sizeClass := manager.SizeClassFor(req.Model)

	state, model, ok := mgr.Pick(sizeClass, "")
	if !ok {
		return nil, &providers.Error{Kind: providers.KindNoProvider, Message: "no available providers"}
	}

	maxEscalations := len(mgr.Snapshots())
	escalations := 0
	rotatedInProvider := false
	var lastErr *providers.Error

	for {
		body, terr := translate.ToOpenAI(req, model, c.minTokens, c.maxTokens)
		if terr != nil {
			return nil, asProviderError(terr)
		}

		start := time.Now()
		resp, err := state.Client.Complete(ctx, body)
		if err == nil {
			mgr.MarkSuccess(state.Config.Name)
			if c.metrics != nil {
				c.metrics.RecordRequest(state.Config.Name, model)
				c.metrics.RecordLatency(state.Config.Name, model, time.Since(start).Seconds())
			}
			out := translate.ToClaude(resp, req.Model, c.logger)
			out.Provider = state.Config.Name
			return out, nil
		}

		pErr := asProviderError(err)
		pErr.Provider = state.Config.Name
		lastErr = pErr
		if c.metrics != nil {
			c.metrics.RecordError(state.Config.Name, string(pErr.Kind))
		}
		c.logger.Warn("upstream call failed", "request_id", requestID, "provider", state.Config.Name,
			"model", model, "kind", pErr.Kind, "error", pErr.Message)

		if !pErr.Kind.Recoverable() {
			return nil, pErr
		}

		// Rotate to another model of the same provider exactly once (§4.6
		// step 6a) before escalating.
		if !rotatedInProvider {
			if nextModel, ok := mgr.PickNextIn(state.Config.Name, sizeClass); ok && nextModel != model {
				if c.metrics != nil {
					c.metrics.RecordFallback("rotate_model")
				}
				rotatedInProvider = true
				model = nextModel
				continue
			}
		}

		mgr.MarkFailure(state.Config.Name)
		if escalations >= maxEscalations {
			return nil, lastErr
		}
		nextState, nextModel, ok := mgr.Pick(sizeClass, state.Config.Name)
		if !ok {
			return nil, lastErr
		}
		if c.metrics != nil {
			c.metrics.RecordFallback("escalate_provider")
		}
		escalations++
		rotatedInProvider = false
		state, model = nextState, nextModel
	}
}

// handleLegacyPassthrough forwards req.Model to the legacy bootstrap's sole
// provider unchanged, bypassing size-class mapping and model rotation
// (§4.3's legacy passthrough rule): a gpt-*/o1-*/ep-*/doubao-*/deepseek-*
// inbound model name means the caller already knows the upstream's exact
// model id, so there is nothing to rotate or escalate between.
func (c *Controller) handleLegacyPassthrough(ctx context.Context, mgr *manager.Manager, req *claude.Request) (*claude.Response, *providers.Error) {
	snapshots := mgr.Snapshots()
	if len(snapshots) == 0 {
		return nil, &providers.Error{Kind: providers.KindNoProvider, Message: "no available providers"}
	}
	state := mgr.Get(snapshots[0].Name)
	if state == nil {
		return nil, &providers.Error{Kind: providers.KindNoProvider, Message: "no available providers"}
	}

	body, terr := translate.ToOpenAI(req, req.Model, c.minTokens, c.maxTokens)
	if terr != nil {
		return nil, asProviderError(terr)
	}

	start := time.Now()
	resp, err := state.Client.Complete(ctx, body)
	if err != nil {
		mgr.MarkFailure(state.Config.Name)
		pErr := asProviderError(err)
		pErr.Provider = state.Config.Name
		if c.metrics != nil {
			c.metrics.RecordError(state.Config.Name, string(pErr.Kind))
		}
		return nil, pErr
	}

	mgr.MarkSuccess(state.Config.Name)
	if c.metrics != nil {
		c.metrics.RecordRequest(state.Config.Name, req.Model)
		c.metrics.RecordLatency(state.Config.Name, req.Model, time.Since(start).Seconds())
	}
	out := translate.ToClaude(resp, req.Model, c.logger)
	out.Provider = state.Config.Name
	return out, nil
}

// HandleStream runs the request lifecycle for a streamed reply. It
// performs every retry/escalation BEFORE the first upstream chunk is
// observed, matching §4.6's guarantee that streaming fallback is only
// attempted before the first byte reaches the client. Once a live stream
// is established it spawns a goroutine that translates chunks into
// claude.Events and sends them to the returned channel; a mid-stream
// upstream failure is terminal, no retry, with a best-effort
// message_delta/message_stop pair appended so the sequence stays
// well-formed.
func (c *Controller) HandleStream(ctx context.Context, requestID string, req *claude.Request) (<-chan StreamEvent, *providers.Error) {
	mgr := c.holder.Get()

	if mgr.IsLegacy() && config.IsLegacyPassthrough(req.Model) {
		return c.handleLegacyStreamPassthrough(ctx, mgr, requestID, req)
	}

	sizeClass := manager.SizeClassFor(req.Model)

	state, model, ok := mgr.Pick(sizeClass, "")
	if !ok {
		return nil, &providers.Error{Kind: providers.KindNoProvider, Message: "no available providers"}
	}

	maxEscalations := len(mgr.Snapshots())
	escalations := 0
	rotatedInProvider := false
	var lastErr *providers.Error

	// tryRecover attempts the same-provider rotate-once step, then escalates
	// to the next provider; it reports whether a retry target was found.
	tryRecover := func(pErr *providers.Error) bool {
		pErr.Provider = state.Config.Name
		lastErr = pErr
		if !pErr.Kind.Recoverable() {
			return false
		}
		if !rotatedInProvider {
			if nextModel, ok := mgr.PickNextIn(state.Config.Name, sizeClass); ok && nextModel != model {
				rotatedInProvider = true
				model = nextModel
				return true
			}
		}
		mgr.MarkFailure(state.Config.Name)
		if escalations >= maxEscalations {
			return false
		}
		nextState, nextModel, ok := mgr.Pick(sizeClass, state.Config.Name)
		if !ok {
			return false
		}
		escalations++
		rotatedInProvider = false
		state, model = nextState, nextModel
		return true
	}

	for {
		body, terr := translate.ToOpenAI(req, model, c.minTokens, c.maxTokens)
		if terr != nil {
			return nil, asProviderError(terr)
		}

		upstream, err := state.Client.CompleteStream(ctx, body, requestID)
		if err != nil {
			if tryRecover(asProviderError(err)) {
				continue
			}
			return nil, lastErr
		}

		first, more := <-upstream
		if !more {
			if tryRecover(&providers.Error{Kind: providers.KindUpstream, Message: "upstream closed stream without data"}) {
				continue
			}
			return nil, lastErr
		}
		if first.Err != nil {
			if tryRecover(asProviderError(first.Err)) {
				continue
			}
			return nil, lastErr
		}

		// First chunk observed without transport error: commit to this
		// stream, mark success, and forward the rest.
		mgr.MarkSuccess(state.Config.Name)
		if c.metrics != nil {
			c.metrics.RecordRequest(state.Config.Name, model)
		}
		out := make(chan StreamEvent, 8)
		go c.pumpStream(requestID, req.Model, first, upstream, out)
		return out, nil
	}
}

// handleLegacyStreamPassthrough is handleLegacyPassthrough's streaming
// counterpart: one attempt against the legacy bootstrap's sole provider,
// req.Model forwarded unchanged, no rotation or escalation.
func (c *Controller) handleLegacyStreamPassthrough(ctx context.Context, mgr *manager.Manager, requestID string, req *claude.Request) (<-chan StreamEvent, *providers.Error) {
	snapshots := mgr.Snapshots()
	if len(snapshots) == 0 {
		return nil, &providers.Error{Kind: providers.KindNoProvider, Message: "no available providers"}
	}
	state := mgr.Get(snapshots[0].Name)
	if state == nil {
		return nil, &providers.Error{Kind: providers.KindNoProvider, Message: "no available providers"}
	}

	body, terr := translate.ToOpenAI(req, req.Model, c.minTokens, c.maxTokens)
	if terr != nil {
		return nil, asProviderError(terr)
	}

	upstream, err := state.Client.CompleteStream(ctx, body, requestID)
	if err != nil {
		mgr.MarkFailure(state.Config.Name)
		pErr := asProviderError(err)
		pErr.Provider = state.Config.Name
		return nil, pErr
	}

	first, more := <-upstream
	if !more {
		mgr.MarkFailure(state.Config.Name)
		return nil, &providers.Error{Kind: providers.KindUpstream, Message: "upstream closed stream without data", Provider: state.Config.Name}
	}
	if first.Err != nil {
		mgr.MarkFailure(state.Config.Name)
		pErr := asProviderError(first.Err)
		pErr.Provider = state.Config.Name
		return nil, pErr
	}

	mgr.MarkSuccess(state.Config.Name)
	if c.metrics != nil {
		c.metrics.RecordRequest(state.Config.Name, req.Model)
	}
	out := make(chan StreamEvent, 8)
	go c.pumpStream(requestID, req.Model, first, upstream, out)
	return out, nil
}

func (c *Controller) pumpStream(requestID, inboundModel string, first providers.StreamEvent, upstream <-chan providers.StreamEvent, out chan<- StreamEvent) {
	defer close(out)
	tr := translate.NewStreamTranslator(requestID, inboundModel)

	emit := func(events []claude.Event) {
		for _, e := range events {
			out <- StreamEvent{Event: e}
		}
	}

	feed := func(chunk *providers.StreamChunk) {
		emit(tr.Feed(chunk))
	}

	feed(first.Chunk)
	for ev := range upstream {
		if ev.Err != nil {
			c.logger.Warn("stream failed mid-transfer, terminating without retry", "request_id", requestID, "error", ev.Err)
			emit(tr.Finish())
			return
		}
		feed(ev.Chunk)
	}
	emit(tr.Finish())
}

// asProviderError unwraps err into the shared *providers.Error shape,
// defaulting unclassified errors to KindInternal.
func asProviderError(err error) *providers.Error {
	var pErr *providers.Error
	if errors.As(err, &pErr) {
		return pErr
	}
	return &providers.Error{Kind: providers.KindInternal, Message: err.Error(), Cause: err}
}
