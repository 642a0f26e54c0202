package shopify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// newAPIClient builds a go-shopify client for one shop. A non-empty baseURL
// replaces the shop origin on every request.
func newAPIClient(shopDomain, baseURL, accessToken, apiVersion string, httpClient *http.Client, logger zerolog.Logger) (*goshopify.Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL != "" {
		origin, err := url.Parse(baseURL)
		if err != nil || origin.Scheme == "" || origin.Host == "" {
			return nil, fmt.Errorf("invalid base url %q", baseURL)
		}
		rewritten := *httpClient
		rewritten.Transport = &originTransport{base: httpClient.Transport, origin: origin}
		httpClient = &rewritten
	}

	opts := []goshopify.Option{
		goshopify.WithHTTPClient(httpClient),
		goshopify.WithLogger(apiLogger{logger: logger}),
	}
	if apiVersion != "" {
		opts = append(opts, goshopify.WithVersion(apiVersion))
	}
	client, err := goshopify.NewClient(goshopify.App{}, shopName(shopDomain), accessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// originTransport sends requests to a fixed origin, prefixing its path
type originTransport struct {
	base   http.RoundTripper
	origin *url.URL
}

func (t *originTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.origin.Scheme
	out.URL.Host = t.origin.Host
	out.URL.Path = strings.TrimRight(t.origin.Path, "/") + req.URL.Path
	out.URL.RawPath = ""
	out.Host = t.origin.Host

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

// apiLogger routes go-shopify logging into zerolog.
// Its debug output carries full response bodies, so it goes to trace.
type apiLogger struct {
	logger zerolog.Logger
}

func (l apiLogger) Debugf(format string, v ...interface{}) { l.logger.Trace().Msgf(format, v...) }
func (l apiLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l apiLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l apiLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }

// shopName strips scheme, port and path; go-shopify expects the bare shop domain
func shopName(shopDomain string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(shopDomain, "https://"), "http://")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}
