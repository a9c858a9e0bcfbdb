package api

import (
	"context"
	"io"
	"net/http"

	C "github.com/Dreamacro/clash-dashboard/constant"
	R "github.com/Dreamacro/clash-dashboard/rule"
)

func (c *Client) FetchRules(ctx context.Context, cfg C.APIConfig) ([]R.Rule, error) {
	var rules []R.Rule
	err := c.do(ctx, cfg, http.MethodGet, "/rules", func(body io.Reader) (err error) {
		rules, err = R.Decode(body)
		return
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}
