package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/tensorio"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	cases, err := casegen.Run(context.Background(), 1)
	require.NoError(t, err)
	store := NewCaseStore()
	store.Replace(nil, cases)
	e := echo.New()
	NewServer(store).Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeTensor(t *testing.T, raw []byte) *tensor.Tensor {
	t.Helper()
	doc, err := tensorio.DecodeDocument(raw)
	require.NoError(t, err)
	x, err := tensorio.FromDocument(doc)
	require.NoError(t, err)
	return x
}

func TestHealth(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 21, resp.Cases)
	assert.NotEmpty(t, resp.Version)
}

func TestListCasesFiltersByOp(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/cases?op=DynamicQuantizeLinear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse[CaseSummary]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	var names []string
	for _, c := range resp.Data {
		names = append(names, c.Name)
		assert.Len(t, c.Outputs, 3)
	}
	assert.Equal(t, []string{
		"test_dynamicquantizelinear",
		"test_dynamicquantizelinear_max_adjusted",
		"test_dynamicquantizelinear_min_adjusted",
	}, names)
}

func TestGetCaseAndTensors(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)

	rec := doJSON(t, e, http.MethodGet, "/v1/cases/test_quantizelinear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum CaseSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "QuantizeLinear", sum.OpType)
	assert.Equal(t, "half_away_from_zero", sum.Rounding)
	assert.Equal(t, dtype.Uint8, sum.Outputs[0].Kind)

	rec = doJSON(t, e, http.MethodGet, "/v1/cases/test_dequantizelinear_int32/outputs/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeTensor(t, rec.Body.Bytes())
	want := tensor.Must(tensor.New(dtype.Float, []int{3}, []float32{-3, 0, 3}))
	assert.True(t, tensor.Equal(want, got), "got %v", got.Data())

	rec = doJSON(t, e, http.MethodGet, "/v1/cases/test_quantizelinear_without_zero_point/inputs/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"FLOAT"`)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	for _, path := range []string{
		"/v1/cases/test_missing",
		"/v1/cases/test_missing/inputs/0",
		"/v1/cases/test_quantizelinear/inputs/9",
		"/v1/cases/test_quantizelinear/outputs/x",
		"/v1/cases/test_quantizelinear_without_zero_point/inputs/2",
	} {
		rec := doJSON(t, e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "not_found_error", path)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/cases/test_cast_FLOAT_to_BFLOAT16/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK, resp.Error)
}

func TestOps(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/ops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse[OpSummary]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var ops []string
	for _, op := range resp.Data {
		ops = append(ops, op.OpType)
	}
	assert.Equal(t, []string{"Cast", "DequantizeLinear", "DynamicQuantizeLinear", "QuantizeLinear"}, ops)
}

const quantizeNode = `{"op_type":"QuantizeLinear","inputs":["x","s","zp"],"outputs":["y"]}`

func TestEvaluateQuantize(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	body := `{"node":` + quantizeNode + `,"inputs":[
		{"kind":"FLOAT","shape":[6],"values":[0,2,3,1000,-254,-1000]},
		{"kind":"FLOAT","shape":[],"values":[2]},
		{"kind":"UINT8","shape":[],"values":[128]}]}`
	rec := doJSON(t, e, http.MethodPost, "/v1/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Outputs []json.RawMessage `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Outputs, 1)
	got := decodeTensor(t, resp.Outputs[0])
	want := tensor.Must(tensor.New(dtype.Uint8, []int{6}, []uint8{128, 129, 130, 255, 1, 0}))
	assert.True(t, tensor.Equal(want, got), "got %v", got.Data())
}

func TestEvaluateRoundingAndOmittedInput(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	body := `{"node":{"op_type":"QuantizeLinear","inputs":["x","s",""],"outputs":["y"]},
		"rounding":"half_away_from_zero",
		"inputs":[{"kind":"FLOAT","shape":[2],"values":[1,5]},{"kind":"FLOAT","shape":[],"values":[2]},null]}`
	rec := doJSON(t, e, http.MethodPost, "/v1/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Outputs []json.RawMessage `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	got := decodeTensor(t, resp.Outputs[0])
	want := tensor.Must(tensor.New(dtype.Uint8, []int{2}, []uint8{1, 3}))
	assert.True(t, tensor.Equal(want, got), "got %v", got.Data())
}

func TestEvaluateRejects(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	scalar := `{"kind":"FLOAT","shape":[],"values":[2]}`
	bodies := map[string]string{
		"malformed json":  `{"node":`,
		"unknown field":   `{"node":` + quantizeNode + `,"inputs":[],"extra":1}`,
		"unknown op":      `{"node":{"op_type":"Relu","inputs":["x"],"outputs":["y"]},"inputs":[` + scalar + `]}`,
		"arity":           `{"node":` + quantizeNode + `,"inputs":[` + scalar + `]}`,
		"bad rounding":    `{"node":` + quantizeNode + `,"rounding":"up","inputs":[` + scalar + `,` + scalar + `,null]}`,
		"type constraint": `{"node":` + quantizeNode + `,"inputs":[` + scalar + `,` + scalar + `,` + scalar + `]}`,
		"bad literal":     `{"node":` + quantizeNode + `,"inputs":[{"kind":"FLOAT","shape":[1],"values":["abc"]},` + scalar + `,null]}`,
	}
	for name, body := range bodies {
		rec := doJSON(t, e, http.MethodPost, "/v1/evaluate", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s: %s", name, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "invalid_request_error", name)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	e := newTestEcho(t)
	doJSON(t, e, http.MethodGet, "/healthz", "")
	rec := doJSON(t, e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `goldcase_http_requests_total{code="200",method="GET",route="/healthz"}`)
}

func TestStoreLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cases, err := casegen.Run(ctx, 3, "DequantizeLinear")
	require.NoError(t, err)
	root := t.TempDir()
	m, err := tensorio.WriteCases(ctx, root, cases, tensorio.WriteOptions{Seed: 3})
	require.NoError(t, err)

	store := NewCaseStore()
	require.NoError(t, store.Load(ctx, root))
	assert.Equal(t, len(cases), store.Len())
	got, ok := store.Manifest()
	require.True(t, ok)
	assert.Equal(t, m.RunID, got.RunID)
	_, ok = store.Get("test_dequantizelinear_2D")
	assert.True(t, ok)
	assert.Error(t, store.Load(ctx, t.TempDir()))
}
