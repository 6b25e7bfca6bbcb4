package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/levysystems/agentarmy/bus"
)

// AssistanceOutcome classifies how an assistance request ended.
type AssistanceOutcome string

const (
	// AssistanceResolved means a helper was found and its assist capability
	// completed successfully.
	AssistanceResolved AssistanceOutcome = "resolved"
	// AssistanceDeclined means a helper was selected but its assist
	// capability failed.
	AssistanceDeclined AssistanceOutcome = "declined"
	// AssistanceUnresolved means no candidate helper matched. This is a
	// normal outcome, not an error.
	AssistanceUnresolved AssistanceOutcome = "unresolved"
)

// AssistanceRequest records one routed request for help.
type AssistanceRequest struct {
	ID                string            `json:"id"`
	RequestingAgentID string            `json:"requesting_agent_id"`
	Reason            string            `json:"reason"`
	Priority          float64           `json:"priority"`
	HelperID          string            `json:"helper_id,omitempty"`
	Outcome           AssistanceOutcome `json:"outcome"`
	Result            any               `json:"result,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// RequestAssistance routes a request for help from a struggling agent to the
// best available helper. Candidates must be idle, distinct from the
// requester, declare an assist capability and match the requester's last
// failed task under the manager's match policy. Candidates are ranked by
// historical success rate, ties broken by agent id.
//
// Finding no helper yields an unresolved request and a nil error; only an
// unknown requesting agent is an error.
func (m *Manager) RequestAssistance(ctx context.Context, requestingAgentID, reason string, priority float64) (*AssistanceRequest, error) {
	requester, ok := m.agent(requestingAgentID)
	if !ok {
		return nil, fmt.Errorf("agent %q is not registered", requestingAgentID)
	}

	req := &AssistanceRequest{
		ID:                uuid.NewString(),
		RequestingAgentID: requestingAgentID,
		Reason:            reason,
		Priority:          priority,
		CreatedAt:         time.Now().UTC(),
	}

	helper := m.selectHelper(requester)

	payload := map[string]any{
		"request_id": req.ID,
		"reason":     reason,
		"priority":   priority,
	}
	if helper != nil {
		payload["helper_id"] = helper.desc.ID
	}
	m.bus.Publish(bus.NewEvent(requestingAgentID, bus.EventAssistanceRequest, payload))

	if helper == nil {
		req.Outcome = AssistanceUnresolved
		m.respond(req)
		m.logger.Info("manager.assistance_unresolved", "agent_id", requestingAgentID, "reason", reason)
		return req, nil
	}

	req.HelperID = helper.desc.ID
	helper.setStatus(StatusBusy)

	result, err := m.registry.Execute(ctx, helper.desc.AssistCapability, map[string]any{
		"requesting_agent": requestingAgentID,
		"reason":           reason,
		"priority":         priority,
	})

	helper.setStatus(StatusIdle)

	if err != nil {
		req.Outcome = AssistanceDeclined
		m.respond(req)
		m.logger.Warn("manager.assistance_declined", "agent_id", requestingAgentID, "helper_id", helper.desc.ID, "error", err.Error())
		return req, nil
	}

	req.Outcome = AssistanceResolved
	req.Result = result

	helper.mu.Lock()
	helper.metrics.AssistanceGiven++
	helper.mu.Unlock()

	requester.mu.Lock()
	requester.metrics.AssistanceReceived++
	requester.mu.Unlock()

	m.respond(req)
	m.logger.Info("manager.assistance_resolved", "agent_id", requestingAgentID, "helper_id", helper.desc.ID)

	return req, nil
}

// respond publishes the assistance_response event closing out a request.
func (m *Manager) respond(req *AssistanceRequest) {
	m.bus.Publish(bus.NewEvent(req.RequestingAgentID, bus.EventAssistanceResponse, map[string]any{
		"request_id": req.ID,
		"helper_id":  req.HelperID,
		"outcome":    string(req.Outcome),
	}))
}

// selectHelper picks the highest ranked candidate helper for the requesting
// agent, or nil when no agent qualifies.
func (m *Manager) selectHelper(requester *state) *state {
	requester.mu.Lock()
	failedCategory := requester.lastFailedCategory
	failedCap := requester.lastFailedCap
	requesterID := requester.desc.ID
	requester.mu.Unlock()

	m.mu.RLock()
	candidates := make([]*state, 0, len(m.agents))
	for id, st := range m.agents {
		if id == requesterID {
			continue
		}
		candidates = append(candidates, st)
	}
	m.mu.RUnlock()

	matched := candidates[:0]
	for _, st := range candidates {
		if st.currentStatus() != StatusIdle {
			continue
		}
		st.mu.Lock()
		assistCap := st.desc.AssistCapability
		st.mu.Unlock()
		if assistCap == "" {
			continue
		}
		if !m.matches(st, failedCategory, failedCap) {
			continue
		}
		matched = append(matched, st)
	}
	if len(matched) == 0 {
		return nil
	}

	sort.Slice(matched, func(i, j int) bool {
		ri := matched[i].snapshot()
		rj := matched[j].snapshot()
		if ri.Metrics.SuccessRate() != rj.Metrics.SuccessRate() {
			return ri.Metrics.SuccessRate() > rj.Metrics.SuccessRate()
		}
		return ri.ID < rj.ID
	})
	return matched[0]
}

// matches applies the manager's match policy against the requester's last
// failure. A requester that never failed matches any helper with an assist
// capability.
func (m *Manager) matches(candidate *state, failedCategory, failedCap string) bool {
	switch m.match {
	case MatchByCapability:
		if failedCap == "" {
			return true
		}
		return candidate.hasCapability(failedCap)
	default:
		if failedCategory == "" {
			return true
		}
		return candidate.hasCategory(failedCategory)
	}
}
