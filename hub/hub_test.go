package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dreamacro/clash-dashboard/component/filtertext"
	"github.com/Dreamacro/clash-dashboard/component/query"
	C "github.com/Dreamacro/clash-dashboard/constant"
	R "github.com/Dreamacro/clash-dashboard/rule"
	"github.com/Dreamacro/clash-dashboard/rule/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var testCfg = C.APIConfig{BaseURL: "http://127.0.0.1:9090", Secret: "s"}

type recorder struct {
	*query.Client
	mux         sync.Mutex
	invalidated []string
}

func (r *recorder) Invalidate(prefix query.Key) int {
	r.mux.Lock()
	r.invalidated = append(r.invalidated, strings.Join(prefix, ","))
	r.mux.Unlock()
	return r.Client.Invalidate(prefix)
}

func (r *recorder) calls() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string(nil), r.invalidated...)
}

type fakeAPI struct {
	rules        []R.Rule
	providers    *provider.RuleProviders
	rulesErr     error
	providersErr error
	refreshErr   error

	ruleFetches     *atomic.Int32
	providerFetches *atomic.Int32

	mux       sync.Mutex
	refreshed []string
	updated   [][]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		rules: []R.Rule{
			{Type: "DOMAIN", Payload: "DOMAIN,a.com", Proxy: "DIRECT"},
			{Type: "DOMAIN", Payload: "DOMAIN,b.com", Proxy: "Proxy"},
		},
		providers: &provider.RuleProviders{
			ByName: map[string]*provider.RuleProvider{
				"Local":  {Name: "Local", Index: 0},
				"Remote": {Name: "Remote", Index: 1},
			},
			Names: []string{"Local", "Remote"},
		},
		ruleFetches:     atomic.NewInt32(0),
		providerFetches: atomic.NewInt32(0),
	}
}

func (f *fakeAPI) FetchRules(ctx context.Context, cfg C.APIConfig) ([]R.Rule, error) {
	f.ruleFetches.Inc()
	return f.rules, f.rulesErr
}

func (f *fakeAPI) FetchRuleProviders(ctx context.Context, cfg C.APIConfig) (*provider.RuleProviders, error) {
	f.providerFetches.Inc()
	if f.providersErr != nil {
		return nil, f.providersErr
	}
	return f.providers, nil
}

func (f *fakeAPI) RefreshRuleProviderByName(ctx context.Context, name string, cfg C.APIConfig) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.refreshed = append(f.refreshed, name)
	return f.refreshErr
}

func (f *fakeAPI) UpdateRuleProviders(ctx context.Context, names []string, cfg C.APIConfig) error {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.updated = append(f.updated, names)
	return f.refreshErr
}

func setup(t *testing.T) (*Hub, *fakeAPI, *recorder, *filtertext.Store) {
	queries := &recorder{Client: query.New()}
	t.Cleanup(queries.Close)
	api := newFakeAPI()
	filter := filtertext.New(nil)
	return New(queries, api, filter), api, queries, filter
}

func TestRuleAndProviderEmptyFilter(t *testing.T) {
	h, api, _, _ := setup(t)

	v, err := h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)
	require.Len(t, v.Rules, 2)
	assert.True(t, &v.Rules[0] == &api.rules[0])
	assert.Same(t, api.providers, v.Provider)
	assert.False(t, v.IsFetching)

	// served from cache
	_, err = h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.ruleFetches.Load())
	assert.Equal(t, int32(1), api.providerFetches.Load())
}

func TestRuleAndProviderFilter(t *testing.T) {
	h, api, _, filter := setup(t)

	filter.SetFilterText("A.COM")
	v, err := h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)
	assert.Equal(t, []R.Rule{{Type: "DOMAIN", Payload: "DOMAIN,a.com", Proxy: "DIRECT"}}, v.Rules)
	assert.Empty(t, v.Provider.Names)

	filter.SetFilterText("rem")
	v, err = h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)
	assert.Empty(t, v.Rules)
	assert.Equal(t, []string{"Remote"}, v.Provider.Names)
	assert.Equal(t, api.providers.ByName, v.Provider.ByName)
	assert.Equal(t, []string{"Local", "Remote"}, api.providers.Names)

	filter.SetFilterText("")
	v, err = h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)
	assert.Same(t, api.providers, v.Provider)
}

func TestRuleAndProviderError(t *testing.T) {
	h, api, _, _ := setup(t)
	api.rulesErr = errors.New("connection refused")

	_, err := h.RuleAndProvider(context.Background(), testCfg)
	assert.ErrorIs(t, err, api.rulesErr)

	api.rulesErr = nil
	api.providersErr = errors.New("unauthorized")
	_, err = h.RuleAndProvider(context.Background(), testCfg)
	assert.ErrorIs(t, err, api.providersErr)
}

func TestUpdateRuleProviderItem(t *testing.T) {
	h, api, queries, _ := setup(t)

	action := h.UpdateRuleProviderItem("Remote", testCfg)
	assert.Same(t, action, h.UpdateRuleProviderItem("Remote", testCfg))
	assert.NotSame(t, action, h.UpdateRuleProviderItem("Local", testCfg))
	assert.False(t, action.IsPending())

	require.NoError(t, action.Do(context.Background()))
	assert.Equal(t, []string{"Remote"}, api.refreshed)
	assert.Equal(t, []string{C.RuleProvidersQueryKey}, queries.calls())
}

func TestUpdateRuleProviderItemFailure(t *testing.T) {
	h, api, queries, _ := setup(t)
	api.refreshErr = errors.New("500")

	err := h.UpdateRuleProviderItem("Remote", testCfg).Do(context.Background())
	assert.Equal(t, api.refreshErr, err)
	assert.Empty(t, queries.calls())
}

func TestUpdateRuleProviderItemRefetch(t *testing.T) {
	h, api, _, _ := setup(t)

	_, err := h.RuleProviderQuery(context.Background(), testCfg)
	require.NoError(t, err)
	require.NoError(t, h.UpdateRuleProviderItem("Remote", testCfg).Do(context.Background()))

	_, err = h.RuleProviderQuery(context.Background(), testCfg)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return api.providerFetches.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestUpdateAllRuleProviderItems(t *testing.T) {
	h, api, queries, _ := setup(t)

	// the provider list is loaded on demand
	require.NoError(t, h.UpdateAllRuleProviderItems(testCfg).Do(context.Background()))
	assert.Equal(t, [][]string{{"Local", "Remote"}}, api.updated)
	assert.Equal(t, []string{C.RuleProvidersQueryKey}, queries.calls())
	assert.Equal(t, int32(1), api.providerFetches.Load())
}

func TestUpdateAllRuleProviderItemsNotLoaded(t *testing.T) {
	h, api, queries, _ := setup(t)
	api.providersErr = errors.New("connection refused")

	err := h.UpdateAllRuleProviderItems(testCfg).Do(context.Background())
	assert.ErrorIs(t, err, ErrProvidersNotLoaded)
	assert.Empty(t, api.updated)
	assert.Empty(t, queries.calls())
}

func TestUpdateAllRuleProviderItemsFailure(t *testing.T) {
	h, api, queries, _ := setup(t)
	api.refreshErr = context.Canceled

	err := h.UpdateAllRuleProviderItems(testCfg).Do(context.Background())
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, queries.calls())
}

func TestInvalidateQueries(t *testing.T) {
	h, api, queries, _ := setup(t)

	_, err := h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)

	invalidate := h.InvalidateQueries()
	invalidate()
	assert.Equal(t, []string{C.RulesQueryKey, C.RuleProvidersQueryKey}, queries.calls())

	v, err := h.RuleAndProvider(context.Background(), testCfg)
	require.NoError(t, err)
	assert.Len(t, v.Rules, 2)
	assert.Eventually(t, func() bool {
		return api.ruleFetches.Load() == 2 && api.providerFetches.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPending(t *testing.T) {
	queries := &recorder{Client: query.New()}
	defer queries.Close()
	api := &blockingAPI{fakeAPI: newFakeAPI(), release: make(chan struct{})}
	h := New(queries, api, filtertext.New(nil))

	action := h.UpdateRuleProviderItem("Local", testCfg)
	done := make(chan error)
	go func() { done <- action.Do(context.Background()) }()

	assert.Eventually(t, action.IsPending, time.Second, time.Millisecond)
	assert.True(t, h.UpdateRuleProviderItem("Local", testCfg).IsPending())
	assert.Empty(t, queries.calls())

	close(api.release)
	assert.NoError(t, <-done)
	assert.False(t, action.IsPending())
	assert.Equal(t, []string{C.RuleProvidersQueryKey}, queries.calls())
}

type blockingAPI struct {
	*fakeAPI
	release chan struct{}
}

func (b *blockingAPI) RefreshRuleProviderByName(ctx context.Context, name string, cfg C.APIConfig) error {
	<-b.release
	return b.fakeAPI.RefreshRuleProviderByName(ctx, name, cfg)
}
