package provider

import (
	"fmt"
	"strings"
	"time"
)

type Behavior int

const (
	Domain Behavior = iota
	IPCIDR
	Classical
)

func (b Behavior) String() string {
	switch b {
	case Domain:
		return "Domain"
	case IPCIDR:
		return "IPCIDR"
	case Classical:
		return "Classical"
	default:
		return ""
	}
}

func (b Behavior) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Behavior) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "domain":
		*b = Domain
	case "ipcidr":
		*b = IPCIDR
	case "classical":
		*b = Classical
	default:
		return fmt.Errorf("unsupported behavior type: %s", text)
	}
	return nil
}

// RuleProvider is the controller's view of a rule-set source
type RuleProvider struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	VehicleType string    `json:"vehicleType"`
	Behavior    Behavior  `json:"behavior"`
	Format      string    `json:"format,omitempty"`
	RuleCount   int       `json:"ruleCount"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Index is the position of the provider in RuleProviders.Names
	Index int `json:"idx"`
}

// RuleProviders keeps the providers by name together with
// the order the controller reported them in.
type RuleProviders struct {
	ByName map[string]*RuleProvider `json:"byName"`
	Names  []string                 `json:"names"`
}

// Get returns the provider named name
func (rp *RuleProviders) Get(name string) (*RuleProvider, bool) {
	if rp == nil {
		return nil, false
	}
	p, ok := rp.ByName[name]
	return p, ok
}

// FilterNames keeps the provider names containing text, ignoring case.
// ByName is shared with rp. An empty text returns rp itself.
func FilterNames(rp *RuleProviders, text string) *RuleProviders {
	if text == "" || rp == nil {
		return rp
	}

	f := strings.ToLower(text)
	names := make([]string, 0, len(rp.Names))
	for _, name := range rp.Names {
		if strings.Contains(strings.ToLower(name), f) {
			names = append(names, name)
		}
	}
	return &RuleProviders{
		ByName: rp.ByName,
		Names:  names,
	}
}
