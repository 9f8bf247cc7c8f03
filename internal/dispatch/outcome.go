package dispatch

import (
	"encoding/json"
	"errors"

	"larkmcp/internal/domain"
)

// Outcome is the result of one dispatch: either the platform's send result or an error
// reason. A companion text sent ahead of media gets its own slot.
type Outcome struct {
	*domain.SendResult
	Error     string   `json:"error,omitempty"`
	Companion *Outcome `json:"companion,omitempty"`
}

func (o Outcome) OK() bool { return o.Error == "" && o.SendResult != nil }

func success(res *domain.SendResult) Outcome {
	if res == nil {
		res = &domain.SendResult{}
	}
	return Outcome{SendResult: res}
}

func failure(reason string) Outcome { return Outcome{Error: reason} }

// BatchOutcome collects several named sends made by one request. A request-level
// failure (for example the group is missing) replaces all results.
type BatchOutcome struct {
	Error   string
	Results map[string]Outcome
}

func (b BatchOutcome) MarshalJSON() ([]byte, error) {
	if b.Error != "" {
		return json.Marshal(map[string]string{"error": b.Error})
	}
	if b.Results == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b.Results)
}

const (
	reasonNoRecipient   = "No valid recipient specified"
	reasonUserNotFound  = "User not found"
	reasonGroupNotFound = "Group not found"
	reasonMemberNotFound = "Member not found"
)

// recipientReason turns a resolution failure into the reason reported to callers.
func recipientReason(spec domain.RecipientSpec, err error) string {
	switch {
	case errors.Is(err, domain.ErrNoRecipient):
		return reasonNoRecipient
	case errors.Is(err, domain.ErrMemberNotFound):
		return reasonMemberNotFound
	case errors.Is(err, domain.ErrRecipientNotFound):
		if spec.HasUser() {
			return reasonUserNotFound
		}
		return reasonGroupNotFound
	case errors.Is(err, domain.ErrNotInitialized):
		return err.Error()
	default:
		return "recipient lookup failed: " + err.Error()
	}
}
