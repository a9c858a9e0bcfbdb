package rules

import (
	"encoding/json"
	"errors"
	"io"
)

var errPayload = errors.New("payload error")

// Rule is a routing rule as reported by the controller.
// Size is -1 for rules that do not carry a set, and missing on older cores.
type Rule struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Proxy   string `json:"proxy"`
	Size    int    `json:"size,omitempty"`
}

type ruleList struct {
	Rules []Rule `json:"rules"`
}

// Decode reads the body of GET /rules
func Decode(r io.Reader) ([]Rule, error) {
	list := ruleList{}
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, err
	}
	if list.Rules == nil {
		return nil, errPayload
	}
	return list.Rules, nil
}
