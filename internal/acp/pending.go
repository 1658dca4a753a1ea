package acp

// pendingKind identifies which logical step an outstanding request id
// belongs to.
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingInitialize
	pendingSessionLoad
	pendingSessionNew
	pendingPrompt
	pendingSetModel
)

// setModelPending holds the one-shot reply channel for an outstanding
// session/set_model request, plus the model the caller asked for so the
// reply can fall back to it when the agent omits currentModelId.
type setModelPending struct {
	model string
	reply chan<- SetModelResult
}

// pendingRequests correlates response ids back to the step that issued the
// request. At most one initialize, one session/load and one session/new may
// be outstanding; prompts may pipeline; set-model requests each carry their
// own responder.
type pendingRequests struct {
	initialize  *int64
	sessionLoad *int64
	sessionNew  *int64
	prompts     map[int64]struct{}
	setModel    map[int64]setModelPending
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{
		prompts:  make(map[int64]struct{}),
		setModel: make(map[int64]setModelPending),
	}
}

// resolve matches a response id against the outstanding requests, in the
// fixed priority order initialize, session/load, session/new, prompts,
// set-model. The match is removed so an id dispatches at most once.
func (p *pendingRequests) resolve(id int64) (pendingKind, setModelPending) {
	switch {
	case p.initialize != nil && *p.initialize == id:
		p.initialize = nil
		return pendingInitialize, setModelPending{}
	case p.sessionLoad != nil && *p.sessionLoad == id:
		p.sessionLoad = nil
		return pendingSessionLoad, setModelPending{}
	case p.sessionNew != nil && *p.sessionNew == id:
		p.sessionNew = nil
		return pendingSessionNew, setModelPending{}
	}
	if _, ok := p.prompts[id]; ok {
		delete(p.prompts, id)
		return pendingPrompt, setModelPending{}
	}
	if sm, ok := p.setModel[id]; ok {
		delete(p.setModel, id)
		return pendingSetModel, sm
	}
	return pendingNone, setModelPending{}
}
