package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dreamacro/clash-dashboard/component/query"
	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/log"
)

// Action is a user triggered mutation and its in-flight state
type Action struct {
	mutation *query.Mutation
}

// Do runs the action, it is the click handler of a refresh button
func (a *Action) Do(ctx context.Context) error {
	return a.mutation.Mutate(ctx)
}

func (a *Action) IsPending() bool {
	return a.mutation.IsPending()
}

type actionKey struct {
	kind string
	name string
	cfg  string
}

func (h *Hub) loadAction(key actionKey, fn query.MutationFunc, onSuccess func()) *Action {
	if a, ok := h.actions.Load(key); ok {
		return a.(*Action)
	}
	a, _ := h.actions.LoadOrStore(key, &Action{mutation: h.queries.NewMutation(fn, onSuccess)})
	return a.(*Action)
}

// UpdateRuleProviderItem refreshes the provider called name.
// A success invalidates the cached rule providers.
func (h *Hub) UpdateRuleProviderItem(name string, cfg C.APIConfig) *Action {
	key := actionKey{kind: "provider", name: name, cfg: cfg.CacheKey()}
	return h.loadAction(key, func(ctx context.Context) error {
		log.Infoln("[Hub] update rule provider %s", name)
		return h.api.RefreshRuleProviderByName(ctx, name, cfg)
	}, h.invalidateRuleProviders)
}

// UpdateAllRuleProviderItems refreshes every provider of cfg. The provider
// list is loaded first when it is not cached yet, and nothing is sent when
// that load fails.
func (h *Hub) UpdateAllRuleProviderItems(cfg C.APIConfig) *Action {
	key := actionKey{kind: "providers", cfg: cfg.CacheKey()}
	return h.loadAction(key, func(ctx context.Context) error {
		providers, err := h.RuleProviderQuery(ctx, cfg)
		if errors.Is(err, ErrProvidersNotLoaded) {
			return err
		} else if err != nil {
			return fmt.Errorf("%w: %s", ErrProvidersNotLoaded, err.Error())
		}

		log.Infoln("[Hub] update %d rule providers", len(providers.Names))
		return h.api.UpdateRuleProviders(ctx, providers.Names, cfg)
	}, h.invalidateRuleProviders)
}
