package treasury

import (
	"strconv"
)

// Event is a structured state change emitted by the engine. Every lifecycle
// transition emits exactly one, after the corresponding state mutation has
// committed (spec.md §4.10).
type Event struct {
	Topic      string            `json:"topic"`
	Attributes map[string]string `json:"attributes"`
}

// EventType satisfies the typed-event convention used across the emitter.
func (e Event) EventType() string { return e.Topic }

// Stable event topics (spec.md §6).
const (
	TopicInitialized        = "initialized"
	TopicProposalCreated    = "proposal_created"
	TopicProposalApproved   = "proposal_approved"
	TopicProposalAbstained  = "proposal_abstained"
	TopicProposalReady      = "proposal_ready"
	TopicProposalExecuted   = "proposal_executed"
	TopicProposalRejected   = "proposal_rejected"
	TopicProposalExpired    = "proposal_expired"
	TopicProposalCancelled  = "proposal_cancelled"
	TopicRoleAssigned       = "role_assigned"
	TopicConfigUpdated      = "config_updated"
	TopicSignerAdded        = "signer_added"
	TopicSignerRemoved      = "signer_removed"
	TopicInsuranceLocked    = "insurance_locked"
	TopicInsuranceReturned  = "insurance_returned"
	TopicInsuranceSlashed   = "insurance_slashed"
	TopicBatchExecuted      = "batch_executed"
	TopicReputationUpdated  = "reputation_updated"
)

// Emitter broadcasts engine events to downstream subscribers (e.g. the RPC
// websocket stream, audit journal).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. It is the Engine's default so unit tests
// exercising state transitions need not wire a real subscriber.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans a single event out to every wrapped Emitter, in order.
// Used to wire the audit journal, the websocket stream, and metrics
// recording off a single engine without the engine knowing any of them
// exist.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ev)
		}
	}
}

func newEvent(topic string, attrs map[string]string) Event {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Event{Topic: topic, Attributes: attrs}
}

func reputationEvent(rec *Reputation) Event {
	return newEvent(TopicReputationUpdated, map[string]string{
		"address": rec.Address.String(),
		"score":   strconv.FormatInt(rec.Score, 10),
	})
}

func proposalEvent(topic string, p *Proposal) Event {
	attrs := map[string]string{
		"id":     strconv.FormatUint(p.ID, 10),
		"status": p.Status.String(),
	}
	if !p.Proposer.IsZero() {
		attrs["proposer"] = p.Proposer.String()
	}
	if !p.Recipient.IsZero() {
		attrs["recipient"] = p.Recipient.String()
	}
	if p.Amount != nil {
		attrs["amount"] = p.Amount.String()
	}
	attrs["token"] = p.Token
	return newEvent(topic, attrs)
}
