package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-search/internal/models"
	"storefront-search/internal/normalizer"
	"storefront-search/pkg/transport"
)

// --- Test doubles ---

type reply func(call int) (any, error)

func respond(raw any) reply {
	return func(int) (any, error) { return raw, nil }
}

func fail(err error) reply {
	return func(int) (any, error) { return nil, err }
}

// sequence returns replies in order, repeating the last one.
func sequence(replies ...reply) reply {
	return func(call int) (any, error) {
		if call > len(replies) {
			call = len(replies)
		}
		return replies[call-1](call)
	}
}

type postCall struct {
	host, port, path string
	body             any
	opts             transport.Options
}

// stubPoster tells the strategies apart by body type: the legacy strategy
// posts JSON text and the direct strategy posts a map.
type stubPoster struct {
	mu          sync.Mutex
	legacy      reply
	direct      reply
	legacyCalls []postCall
	directCalls []postCall
}

func (s *stubPoster) Post(_ context.Context, host, port, path string, body any, opts transport.Options) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := postCall{host: host, port: port, path: path, body: body, opts: opts}
	if _, ok := body.(string); ok {
		s.legacyCalls = append(s.legacyCalls, call)
		return s.legacy(len(s.legacyCalls))
	}
	s.directCalls = append(s.directCalls, call)
	return s.direct(len(s.directCalls))
}

type recordingObserver struct {
	attempts  []string
	fallbacks []string
	outcomes  []Outcome
}

func (r *recordingObserver) OnAttempt(_ context.Context, strategy string, attempt, _ int, err error) {
	status := "ok"
	if err != nil {
		status = "err"
	}
	r.attempts = append(r.attempts, strategy+":"+status)
}

func (r *recordingObserver) OnFallback(_ context.Context, strategy string, _ error) {
	r.fallbacks = append(r.fallbacks, strategy)
}

func (r *recordingObserver) OnResolved(_ context.Context, o Outcome) {
	r.outcomes = append(r.outcomes, o)
}

var errConnRefused = &transport.TransportError{Op: "post", URL: "http://search:5040/apish", Err: errors.New("connection refused")}

func testConfig(production bool) ResolverConfig {
	return ResolverConfig{
		Endpoint: Endpoint{
			Host:    "search",
			Port:    "5040",
			Path:    "/apish",
			Timeout: 3 * time.Second,
			Headers: map[string]string{"Authorization": "Bearer key"},
		},
		Retry:        RetryPolicy{Attempts: 2, Delay: 0},
		IsProduction: production,
	}
}

func rptaIDs(ids ...any) map[string]any {
	return map[string]any{"rpta": map[string]any{"ids": ids}}
}

func primary(ids ...any) map[string]any {
	return map[string]any{"rpta": map[string]any{"dataIA": map[string]any{"ids": []any{ids}}}}
}

var rejected = map[string]any{"rpta": false}

// --- Tests ---

func TestResolveLegacySuccessSkipsDirect(t *testing.T) {
	poster := &stubPoster{legacy: respond(primary("TE-24155", "LG-24MS500"))}
	r := NewResolver(poster, testConfig(true))

	ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"TE-24155", "LG-24MS500"}, ids)
	assert.Len(t, poster.legacyCalls, 1)
	assert.Empty(t, poster.directCalls)
}

func TestResolveLegacyValidEmptyIsFinal(t *testing.T) {
	poster := &stubPoster{legacy: respond(primary())}
	r := NewResolver(poster, testConfig(false))

	ids, err := r.Resolve(context.Background(), "nothing matches", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)
	assert.Empty(t, poster.directCalls)
}

func TestResolveFallsThroughOnTransportError(t *testing.T) {
	poster := &stubPoster{
		legacy: fail(errConnRefused),
		direct: respond(rptaIDs("LG-1", "LG-2")),
	}
	r := NewResolver(poster, testConfig(true))

	ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"LG-1", "LG-2"}, ids)
	assert.Len(t, poster.legacyCalls, 2, "legacy strategy retries transport failures")
	assert.Len(t, poster.directCalls, 1)
}

func TestResolveLegacyRetryRecovers(t *testing.T) {
	poster := &stubPoster{
		legacy: sequence(fail(errConnRefused), respond(rptaIDs("TE-1"))),
	}
	r := NewResolver(poster, testConfig(true))

	ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"TE-1"}, ids)
	assert.Len(t, poster.legacyCalls, 2)
	assert.Empty(t, poster.directCalls)
}

func TestResolveBusinessRejectionFallsThrough(t *testing.T) {
	poster := &stubPoster{
		legacy: respond(rejected),
		direct: respond(rptaIDs("ADV-21655")),
	}
	r := NewResolver(poster, testConfig(true))

	ids, err := r.Resolve(context.Background(), "advance", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ADV-21655"}, ids)
	assert.Len(t, poster.legacyCalls, 1, "rejections are not retried")
}

func TestResolveRejectedByBothStrategies(t *testing.T) {
	poster := &stubPoster{legacy: respond(rejected), direct: respond(rejected)}
	r := NewResolver(poster, testConfig(false))

	ids, err := r.Resolve(context.Background(), "xyz", models.SearchFilters{})
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.True(t, IsSearchFailed(err))

	var sf *SearchFailedError
	require.ErrorAs(t, err, &sf)
	assert.Contains(t, sf.Message, "rpta: false")
	assert.Len(t, poster.directCalls, 1)
}

func TestResolveDirectRejectionAfterTransportFailure(t *testing.T) {
	poster := &stubPoster{legacy: fail(errConnRefused), direct: respond(rejected)}
	r := NewResolver(poster, testConfig(true))

	_, err := r.Resolve(context.Background(), "xyz", models.SearchFilters{})
	assert.True(t, IsSearchFailed(err))
}

func TestResolveTotalFailure(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		want       []string
	}{
		{"production returns empty", true, []string{}},
		{"non-production returns sample", false, []string{"TE-24155", "TE-27535", "LG-24MS500"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &stubPoster{legacy: fail(errConnRefused), direct: fail(errors.New("timeout"))}
			r := NewResolver(poster, testConfig(tt.production))

			ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
			assert.Len(t, poster.legacyCalls, 2)
			assert.Len(t, poster.directCalls, 2)
		})
	}
}

func TestResolveSampleIsCopied(t *testing.T) {
	poster := &stubPoster{legacy: fail(errConnRefused), direct: fail(errConnRefused)}
	r := NewResolver(poster, testConfig(false), WithSampleIdentifiers([]string{"A", "B"}))

	ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)

	ids[0] = "mutated"
	again, _ := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	assert.Equal(t, []string{"A", "B"}, again)
}

func TestResolveDirectUnrecognisedReturnsPartial(t *testing.T) {
	poster := &stubPoster{
		legacy: respond(map[string]any{"status": "ok"}),
		direct: respond(map[string]any{"status": "ok"}),
	}
	obs := &recordingObserver{}
	r := NewResolver(poster, testConfig(false), WithObserver(obs))

	ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)

	require.Len(t, obs.outcomes, 1)
	assert.True(t, obs.outcomes[0].Partial)
	assert.Equal(t, StrategyDirect, obs.outcomes[0].Strategy)
}

func TestResolveEmptyQuerySkipsNetwork(t *testing.T) {
	poster := &stubPoster{}
	r := NewResolver(poster, testConfig(false))

	for _, q := range []string{"", "   ", "\t\n"} {
		ids, err := r.Resolve(context.Background(), q, models.SearchFilters{})
		require.NoError(t, err)
		assert.Empty(t, ids)
	}
	assert.Empty(t, poster.legacyCalls)
	assert.Empty(t, poster.directCalls)
}

func TestResolveIsDeterministic(t *testing.T) {
	poster := &stubPoster{
		legacy: fail(errConnRefused),
		direct: respond(rptaIDs("B", "A", "C")),
	}
	r := NewResolver(poster, testConfig(true))
	filters := models.SearchFilters{Brand: "LG"}

	first, err := r.Resolve(context.Background(), "monitor", filters)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "monitor", filters)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStrategiesSendEquivalentPayloads(t *testing.T) {
	poster := &stubPoster{
		legacy: fail(errConnRefused),
		direct: respond(rptaIDs("X")),
	}
	r := NewResolver(poster, testConfig(true))

	filters := models.SearchFilters{ProductLine: "Monitores", Brand: "LG", WarehouseCode: "A01", ProductType: "gaming"}
	_, err := r.Resolve(context.Background(), "  monitor  ", filters)
	require.NoError(t, err)

	require.NotEmpty(t, poster.legacyCalls)
	require.NotEmpty(t, poster.directCalls)

	var legacyBody map[string]any
	require.NoError(t, json.Unmarshal([]byte(poster.legacyCalls[0].body.(string)), &legacyBody))

	directJSON, err := json.Marshal(poster.directCalls[0].body)
	require.NoError(t, err)
	var directBody map[string]any
	require.NoError(t, json.Unmarshal(directJSON, &directBody))

	want := map[string]any{
		"pregunta": "monitor",
		"buscador": "Y",
		"filtros": map[string]any{
			"linea_de_producto": "Monitores",
			"marca_de_producto": "LG",
			"almacen_codigo":    "A01",
			"tipo_producto":     "gaming",
		},
	}
	assert.Equal(t, want, legacyBody)
	assert.Equal(t, want, directBody)

	for _, c := range append(poster.legacyCalls, poster.directCalls...) {
		assert.Equal(t, "search", c.host)
		assert.Equal(t, "5040", c.port)
		assert.Equal(t, "/apish", c.path)
	}
}

func TestStrategyRequestOptions(t *testing.T) {
	poster := &stubPoster{
		legacy: fail(errConnRefused),
		direct: respond(rptaIDs("X")),
	}
	r := NewResolver(poster, testConfig(true))

	_, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, transport.Options{}, poster.legacyCalls[0].opts, "legacy uses transport defaults")
	assert.Equal(t, 3*time.Second, poster.directCalls[0].opts.Timeout)
	assert.Equal(t, "Bearer key", poster.directCalls[0].opts.Headers["Authorization"])
}

func TestResolveReportsToObserver(t *testing.T) {
	poster := &stubPoster{
		legacy: respond(rejected),
		direct: sequence(fail(errConnRefused), respond(rptaIDs("LG-1"))),
	}
	obs := &recordingObserver{}
	r := NewResolver(poster, testConfig(true), WithObserver(obs))

	_, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, []string{"legacy:ok", "direct:err", "direct:ok"}, obs.attempts)
	assert.Equal(t, []string{StrategyLegacy}, obs.fallbacks)
	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, StrategyDirect, obs.outcomes[0].Strategy)
	assert.Equal(t, "monitor", obs.outcomes[0].Query)
	assert.Equal(t, []string{"LG-1"}, obs.outcomes[0].Identifiers)
}

func TestTotalFailureOutcomeCarriesBothErrors(t *testing.T) {
	directErr := errors.New("direct timeout")
	poster := &stubPoster{legacy: fail(errConnRefused), direct: fail(directErr)}
	obs := &recordingObserver{}
	r := NewResolver(poster, testConfig(true), WithObserver(obs))

	_, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)

	require.Len(t, obs.outcomes, 1)
	o := obs.outcomes[0]
	assert.Equal(t, StrategyFallback, o.Strategy)
	assert.ErrorIs(t, o.Err, directErr)
	assert.True(t, transport.IsTransport(o.Err))
}

func TestResolveByBrandAndCategory(t *testing.T) {
	poster := &stubPoster{legacy: respond(rptaIDs("LG-1"))}
	r := NewResolver(poster, testConfig(true))

	_, err := r.ResolveByBrand(context.Background(), "monitor", "LG")
	require.NoError(t, err)
	_, err = r.ResolveByCategory(context.Background(), "monitor", "Monitores")
	require.NoError(t, err)

	require.Len(t, poster.legacyCalls, 2)
	assert.Contains(t, poster.legacyCalls[0].body, `"marca_de_producto":"LG"`)
	assert.Contains(t, poster.legacyCalls[1].body, `"linea_de_producto":"Monitores"`)
}

type fixedStrategy struct {
	name string
	err  error
}

func (f fixedStrategy) Name() string { return f.name }

func (f fixedStrategy) Search(context.Context, string, models.SearchFilters) (normalizer.ValidationResult, error) {
	return normalizer.ValidationResult{}, f.err
}

func TestWithStrategiesOverridesDefaults(t *testing.T) {
	r := NewResolver(nil, testConfig(true), WithStrategies(
		fixedStrategy{name: "a", err: errConnRefused},
		fixedStrategy{name: "b", err: errConnRefused},
	))

	ids, err := r.Resolve(context.Background(), "monitor", models.SearchFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{}, ids)
}

func TestNewResolverRetryDefaults(t *testing.T) {
	policyOf := func(r *Resolver) RetryPolicy {
		return r.legacy.(*legacyStrategy).retry
	}

	cfg := testConfig(false)
	cfg.Retry = RetryPolicy{}
	r := NewResolver(&stubPoster{}, cfg)
	assert.Equal(t, RetryPolicy{Attempts: 2, Delay: time.Second}, policyOf(r))
	assert.Equal(t, policyOf(r), r.direct.(*directStrategy).retry)

	cfg.Retry = RetryPolicy{Attempts: 3}
	assert.Equal(t, RetryPolicy{Attempts: 3}, policyOf(NewResolver(&stubPoster{}, cfg)))

	cfg.Retry = RetryPolicy{Attempts: -1, Delay: 5 * time.Millisecond}
	assert.Equal(t, RetryPolicy{Attempts: 2, Delay: 5 * time.Millisecond}, policyOf(NewResolver(&stubPoster{}, cfg)))
}
