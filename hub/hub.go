package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Dreamacro/clash-dashboard/component/query"
	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/log"
	R "github.com/Dreamacro/clash-dashboard/rule"
	"github.com/Dreamacro/clash-dashboard/rule/provider"
)

var ErrProvidersNotLoaded = errors.New("rule providers not loaded")

// API is the controller surface the hub reads and mutates
type API interface {
	FetchRules(ctx context.Context, cfg C.APIConfig) ([]R.Rule, error)
	FetchRuleProviders(ctx context.Context, cfg C.APIConfig) (*provider.RuleProviders, error)
	RefreshRuleProviderByName(ctx context.Context, name string, cfg C.APIConfig) error
	UpdateRuleProviders(ctx context.Context, names []string, cfg C.APIConfig) error
}

// Queries is the query cache the hub runs on
type Queries interface {
	Query(ctx context.Context, key query.Key, fn query.Func) query.Result
	Invalidate(prefix query.Key) int
	NewMutation(fn query.MutationFunc, onSuccess func()) *query.Mutation
}

// FilterSource provides the current rule filter text
type FilterSource interface {
	FilterText() string
}

// RuleAndProvider is the filtered view of rules and rule providers.
// IsFetching is the fetching state of the rules query.
type RuleAndProvider struct {
	Rules      []R.Rule                `json:"rules"`
	Provider   *provider.RuleProviders `json:"provider"`
	IsFetching bool                    `json:"isFetching"`
}

type Hub struct {
	queries Queries
	api     API
	filter  FilterSource

	actions    sync.Map
	invalidate func()
}

func New(queries Queries, api API, filter FilterSource) *Hub {
	h := &Hub{
		queries: queries,
		api:     api,
		filter:  filter,
	}
	h.invalidate = func() {
		h.queries.Invalidate(query.Key{C.RulesQueryKey})
		h.queries.Invalidate(query.Key{C.RuleProvidersQueryKey})
	}
	return h
}

func rulesKey(cfg C.APIConfig) query.Key {
	return query.Key{C.RulesQueryKey, cfg.CacheKey()}
}

func ruleProvidersKey(cfg C.APIConfig) query.Key {
	return query.Key{C.RuleProvidersQueryKey, cfg.CacheKey()}
}

// Rules reads the rules of cfg through the cache
func (h *Hub) Rules(ctx context.Context, cfg C.APIConfig) ([]R.Rule, bool, error) {
	r := h.queries.Query(ctx, rulesKey(cfg), func(ctx context.Context) (interface{}, error) {
		return h.api.FetchRules(ctx, cfg)
	})
	if r.Data == nil {
		return nil, r.IsFetching, r.Err
	}
	return r.Data.([]R.Rule), r.IsFetching, nil
}

// RuleProviderQuery reads the rule providers of cfg through the cache
func (h *Hub) RuleProviderQuery(ctx context.Context, cfg C.APIConfig) (*provider.RuleProviders, error) {
	r := h.queries.Query(ctx, ruleProvidersKey(cfg), func(ctx context.Context) (interface{}, error) {
		return h.api.FetchRuleProviders(ctx, cfg)
	})
	if r.Data == nil {
		if r.Err == nil {
			return nil, ErrProvidersNotLoaded
		}
		return nil, r.Err
	}
	return r.Data.(*provider.RuleProviders), nil
}

// RuleAndProvider combines both queries and applies the current filter text.
// With an empty filter the cached values are returned as they are.
func (h *Hub) RuleAndProvider(ctx context.Context, cfg C.APIConfig) (*RuleAndProvider, error) {
	rules, isFetching, err := h.Rules(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("fetch rules: %w", err)
	}
	providers, err := h.RuleProviderQuery(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("fetch rule providers: %w", err)
	}

	text := h.filter.FilterText()
	if text == "" {
		return &RuleAndProvider{Rules: rules, Provider: providers, IsFetching: isFetching}, nil
	}

	return &RuleAndProvider{
		Rules:      R.Filter(rules, text),
		Provider:   provider.FilterNames(providers, text),
		IsFetching: isFetching,
	}, nil
}

// InvalidateQueries returns a callback marking both the rules and the rule
// providers of every controller stale. The same func is returned each time.
func (h *Hub) InvalidateQueries() func() {
	return h.invalidate
}

func (h *Hub) invalidateRuleProviders() {
	n := h.queries.Invalidate(query.Key{C.RuleProvidersQueryKey})
	log.Debugln("[Hub] rule providers invalidated, %d cached", n)
}
