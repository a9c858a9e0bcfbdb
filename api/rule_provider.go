package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	C "github.com/Dreamacro/clash-dashboard/constant"
	"github.com/Dreamacro/clash-dashboard/log"
	"github.com/Dreamacro/clash-dashboard/rule/provider"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentUpdates bounds the PUTs of UpdateRuleProviders
const maxConcurrentUpdates = 4

func (c *Client) FetchRuleProviders(ctx context.Context, cfg C.APIConfig) (*provider.RuleProviders, error) {
	var providers *provider.RuleProviders
	err := c.do(ctx, cfg, http.MethodGet, "/providers/rules", func(body io.Reader) (err error) {
		providers, err = provider.Decode(body)
		return
	})
	if err != nil {
		return nil, err
	}
	return providers, nil
}

// RefreshRuleProviderByName asks the controller to reload one provider
func (c *Client) RefreshRuleProviderByName(ctx context.Context, name string, cfg C.APIConfig) error {
	return c.do(ctx, cfg, http.MethodPut, "/providers/rules/"+url.PathEscape(name), nil)
}

// UpdateRuleProviders refreshes every named provider. A provider that fails
// is logged and skipped, only a done ctx fails the whole update.
func (c *Client) UpdateRuleProviders(ctx context.Context, names []string, cfg C.APIConfig) error {
	sem := semaphore.NewWeighted(maxConcurrentUpdates)
	failed := atomic.NewInt32(0)
	g := errgroup.Group{}

	for _, name := range names {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		name := name
		g.Go(func() error {
			defer sem.Release(1)
			if err := c.RefreshRuleProviderByName(ctx, name, cfg); err != nil {
				failed.Inc()
				log.Warnln("[Provider] update %s failed: %s", name, err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		log.Infoln("[Provider] %d of %d rule providers not updated", n, len(names))
	}
	return nil
}
