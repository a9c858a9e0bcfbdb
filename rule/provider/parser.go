package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Dreamacro/clash-dashboard/log"
)

var errProvidersPayload = errors.New(`missing "providers" object`)

type ruleProviderSchema struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	VehicleType string    `json:"vehicleType"`
	Behavior    string    `json:"behavior"`
	Format      string    `json:"format,omitempty"`
	RuleCount   int       `json:"ruleCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// parseRuleProvider converts one entry of the controller's provider map
func parseRuleProvider(name string, idx int, schema *ruleProviderSchema) *RuleProvider {
	var behavior Behavior
	if err := behavior.UnmarshalText([]byte(schema.Behavior)); err != nil {
		log.Debugln("[Provider] %s: %s, treated as %s", name, err.Error(), Classical)
		behavior = Classical
	}

	if schema.Name == "" {
		schema.Name = name
	}

	return &RuleProvider{
		Name:        schema.Name,
		Type:        schema.Type,
		VehicleType: schema.VehicleType,
		Behavior:    behavior,
		Format:      schema.Format,
		RuleCount:   schema.RuleCount,
		UpdatedAt:   schema.UpdatedAt,
		Index:       idx,
	}
}

// Decode reads the body of GET /providers/rules.
// Names follow the key order of the "providers" object.
func Decode(r io.Reader) (*RuleProviders, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var result *RuleProviders
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}

		if key != "providers" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		result, err = decodeProviders(dec)
		if err != nil {
			return nil, err
		}
	}

	if result == nil {
		return nil, errProvidersPayload
	}
	return result, nil
}

func decodeProviders(dec *json.Decoder) (*RuleProviders, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	result := &RuleProviders{
		ByName: map[string]*RuleProvider{},
		Names:  []string{},
	}
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return nil, err
		}

		schema := &ruleProviderSchema{}
		if err := dec.Decode(schema); err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}

		if _, exist := result.ByName[name]; exist {
			continue
		}
		result.ByName[name] = parseRuleProvider(name, len(result.Names), schema)
		result.Names = append(result.Names, name)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	return result, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	t, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := t.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, t)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	t, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := t.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", t)
	}
	return key, nil
}
