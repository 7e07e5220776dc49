package supa

import (
	"net/http"
	"strings"
	"time"

	"dealstream/pkg/model"
)

// Factory builds query channels parametrized by a credential tier.
type Factory struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// FactoryConfig carries the connection settings for the data service.
// ServiceKey is the trusted server-held secret; it must come from
// process configuration, never from request input.
type FactoryConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	Timeout    time.Duration
}

// NewFactory validates the connection settings and returns a factory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.URL == "" {
		return nil, model.Validationf("data service URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, model.Validationf("anon key is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Factory{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Credentials resolves the api key and bearer credential for a tier.
// An Authenticated tier with an empty token is a configuration error
// surfaced to the caller, never silently downgraded to Public.
func (f *Factory) Credentials(tier Tier) (apikey, bearer string, err error) {
	switch tier.Kind() {
	case TierPublic:
		return f.anonKey, f.anonKey, nil
	case TierAuthenticated:
		if tier.token == "" {
			return "", "", model.Authenticationf("authenticated tier requires a bearer token")
		}
		return f.anonKey, tier.token, nil
	case TierAdmin:
		if f.serviceKey == "" {
			return "", "", model.Authorizationf("admin tier requires a configured service key")
		}
		return f.serviceKey, f.serviceKey, nil
	default:
		return "", "", model.Internalf("unknown credential tier")
	}
}

// Channel constructs a configured request channel for the tier. No
// network I/O happens until a query executes.
func (f *Factory) Channel(tier Tier) (*Channel, error) {
	apikey, bearer, err := f.Credentials(tier)
	if err != nil {
		return nil, err
	}
	return &Channel{
		baseURL:    f.baseURL,
		apikey:     apikey,
		bearer:     bearer,
		tier:       tier.Kind(),
		httpClient: f.httpClient,
	}, nil
}

// Channel is an immutable request/response conduit to the data service,
// bound to a single credential tier.
type Channel struct {
	baseURL    string
	apikey     string
	bearer     string
	tier       TierKind
	httpClient *http.Client
}

// Tier reports the credential tier the channel was built with.
func (c *Channel) Tier() TierKind { return c.tier }

// From starts a query against a logical table.
func (c *Channel) From(table string) *QueryBuilder {
	return &QueryBuilder{ch: c, table: table, selectCols: "*"}
}
