package route

var (
	CtxKeyProviderName = contextKey("provider name")
	CtxKeyProvider     = contextKey("provider")
)

type contextKey string

func (c contextKey) String() string {
	return "clash-dashboard context key " + string(c)
}
