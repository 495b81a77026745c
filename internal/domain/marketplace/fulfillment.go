package marketplace

import "encoding/json"

// ActionKind names an orchestrated business operation
type ActionKind string

const (
	ActionShip            ActionKind = "ship"
	ActionMessage         ActionKind = "message"
	ActionRefund          ActionKind = "refund"
	ActionEscalate        ActionKind = "escalate"
	ActionAcceptReturn    ActionKind = "accept_return"
	ActionProvideShipment ActionKind = "provide_shipment"
	ActionReadMessages    ActionKind = "read_messages"
)

// ActionResult summarizes how an action went across its items
type ActionResult string

const (
	ResultSuccess ActionResult = "success"
	ResultPartial ActionResult = "partial"
	ResultFailure ActionResult = "failure"
)

// ItemOutcome is the result of an action for a single line item
type ItemOutcome struct {
	ItemID    string `json:"item_id"`
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// FulfillmentAction describes one orchestrated operation and its outcome.
// It lives for one invocation and is not persisted.
type FulfillmentAction struct {
	TargetRecordID  string          `json:"target_record_id"`
	Kind            ActionKind      `json:"kind"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Result          ActionResult    `json:"result"`
	PerItemOutcomes []ItemOutcome   `json:"per_item_outcomes,omitempty"`
	// Reference is the marketplace id created by the action, if any.
	Reference       string          `json:"reference,omitempty"`
	// RecordState is the target's marketplace state read back after the action
	RecordState     string          `json:"record_state,omitempty"`
}

// NewFulfillmentAction creates an action with a marshaled payload
func NewFulfillmentAction(target string, kind ActionKind, payload any) *FulfillmentAction {
	a := &FulfillmentAction{TargetRecordID: target, Kind: kind, Result: ResultSuccess}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			a.Payload = raw
		}
	}
	return a
}

// Aggregate sets Result from the per-item outcomes
func (a *FulfillmentAction) Aggregate() {
	if len(a.PerItemOutcomes) == 0 {
		return
	}
	succeeded := 0
	for _, o := range a.PerItemOutcomes {
		if o.Success {
			succeeded++
		}
	}
	switch succeeded {
	case len(a.PerItemOutcomes):
		a.Result = ResultSuccess
	case 0:
		a.Result = ResultFailure
	default:
		a.Result = ResultPartial
	}
}

// FailedItems returns the outcomes that did not succeed
func (a *FulfillmentAction) FailedItems() []ItemOutcome {
	var out []ItemOutcome
	for _, o := range a.PerItemOutcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}
