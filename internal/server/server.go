// Package server exposes golden cases and the reference evaluator over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/goldcase/internal/casegen"
	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/metrics"
	"github.com/samcharles93/goldcase/internal/reference"
	"github.com/samcharles93/goldcase/internal/shapeinfer"
	"github.com/samcharles93/goldcase/internal/tensorio"
	"github.com/samcharles93/goldcase/internal/version"
	"github.com/samcharles93/goldcase/pkg/cast"
	"github.com/samcharles93/goldcase/pkg/dtype"
	"github.com/samcharles93/goldcase/pkg/qlinear"
	"github.com/samcharles93/goldcase/pkg/tensor"
)

const statusKey = "goldcase.status"

type Server struct {
	store *CaseStore
	clock func() time.Time
}

func NewServer(store *CaseStore) *Server {
	if store == nil {
		store = NewCaseStore()
	}
	return &Server{store: store, clock: time.Now}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.instrument("/healthz", s.handleHealth))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.GET("/v1/ops", s.instrument("/v1/ops", s.handleOps))
	e.POST("/v1/evaluate", s.instrument("/v1/evaluate", s.handleEvaluate))

	e.GET("/v1/cases", s.instrument("/v1/cases", s.handleListCases))
	e.GET("/v1/cases/:name", s.instrument("/v1/cases/:name", s.handleGetCase))
	e.GET("/v1/cases/:name/inputs/:index", s.instrument("/v1/cases/:name/inputs/:index", s.handleTensor("input")))
	e.GET("/v1/cases/:name/outputs/:index", s.instrument("/v1/cases/:name/outputs/:index", s.handleTensor("output")))
	e.POST("/v1/cases/:name/verify", s.instrument("/v1/cases/:name/verify", s.handleVerify))
}

// instrument records request count and latency under a fixed route label.
func (s *Server) instrument(route string, h echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := s.clock()
		err := h(c)
		code, _ := c.Get(statusKey).(int)
		if err != nil || code == 0 {
			code = http.StatusInternalServerError
		}
		metrics.ObserveHTTP(c.Request().Method, route, code, s.clock().Sub(start))
		return err
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Cases:   s.store.Len(),
	}
	if m, ok := s.store.Manifest(); ok {
		resp.RunID = m.RunID
		resp.Seed = m.Seed
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleOps(c *echo.Context) error {
	schemas := shapeinfer.Schemas()
	out := ListResponse[OpSummary]{Object: "list", Data: make([]OpSummary, 0, len(schemas))}
	for _, sc := range schemas {
		out.Data = append(out.Data, OpSummary{
			OpType:     sc.OpType,
			Since:      sc.Since,
			Doc:        sc.Doc,
			Inputs:     formalInfos(sc, sc.Inputs),
			Outputs:    formalInfos(sc, sc.Outputs),
			Attributes: sc.Attributes,
		})
	}
	return writeJSON(c, http.StatusOK, out)
}

func formalInfos(sc *shapeinfer.Schema, fs []shapeinfer.Formal) []FormalInfo {
	out := make([]FormalInfo, 0, len(fs))
	for _, f := range fs {
		kinds := []dtype.ElementKind{f.Fixed}
		if f.TypeParam != "" {
			kinds = sc.Constraints[f.TypeParam]
		}
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}
		out = append(out, FormalInfo{Name: f.Name, Kinds: names, Optional: f.Optional})
	}
	return out
}

func (s *Server) handleListCases(c *echo.Context) error {
	cases := s.store.List(c.QueryParam("op"))
	out := ListResponse[CaseSummary]{Object: "list", Data: make([]CaseSummary, 0, len(cases))}
	for _, tc := range cases {
		out.Data = append(out.Data, summarize(tc))
	}
	return writeJSON(c, http.StatusOK, out)
}

func summarize(tc casegen.Case) CaseSummary {
	sum := CaseSummary{
		Name:    tc.Name,
		OpType:  tc.Node.OpType,
		Node:    tc.Node,
		Inputs:  tc.InputInfos(),
		Outputs: tc.OutputInfos(),
	}
	if tc.Node.OpType == "QuantizeLinear" {
		sum.Rounding = tc.Rounding.String()
	}
	return sum
}

func (s *Server) handleGetCase(c *echo.Context) error {
	tc, ok := s.store.Get(c.Param("name"))
	if !ok {
		return writeNotFound(c, fmt.Sprintf("case %q not found", c.Param("name")))
	}
	return writeJSON(c, http.StatusOK, summarize(tc))
}

func (s *Server) handleTensor(role string) echo.HandlerFunc {
	return func(c *echo.Context) error {
		tc, ok := s.store.Get(c.Param("name"))
		if !ok {
			return writeNotFound(c, fmt.Sprintf("case %q not found", c.Param("name")))
		}
		list := tc.Outputs
		if role == "input" {
			list = tc.Inputs
		}
		i, err := strconv.Atoi(c.Param("index"))
		if err != nil || i < 0 || i >= len(list) {
			return writeNotFound(c, fmt.Sprintf("%s %q not found in %s", role, c.Param("index"), tc.Name))
		}
		if list[i] == nil {
			return writeNotFound(c, fmt.Sprintf("%s %d of %s is omitted", role, i, tc.Name))
		}
		doc, err := tensorio.ToDocument(list[i])
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
		}
		return writeJSON(c, http.StatusOK, doc)
	}
}

func (s *Server) handleVerify(c *echo.Context) error {
	tc, ok := s.store.Get(c.Param("name"))
	if !ok {
		return writeNotFound(c, fmt.Sprintf("case %q not found", c.Param("name")))
	}
	err := casegen.Check(tc)
	metrics.CasesVerifiedTotal.WithLabelValues(tc.Node.OpType, metrics.Status(err)).Inc()
	resp := VerifyResponse{Name: tc.Name, OK: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleEvaluate(c *echo.Context) error {
	req, err := decodeJSON[EvaluateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	outputs, err := evaluate(req)
	metrics.EvaluateTotal.WithLabelValues(req.Node.OpType, metrics.Status(err)).Inc()
	if err != nil {
		if isClientError(err) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}

	resp := EvaluateResponse{
		Outputs: make([]tensorio.Document, len(outputs)),
		Infos:   reference.Infos(req.Node.Outputs, outputs),
	}
	for i, t := range outputs {
		if resp.Outputs[i], err = tensorio.ToDocument(t); err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
		}
	}
	return writeJSON(c, http.StatusOK, resp)
}

func evaluate(req EvaluateRequest) ([]*tensor.Tensor, error) {
	if len(req.Inputs) != len(req.Node.Inputs) {
		return nil, newInvalidRequest(fmt.Sprintf("node has %d inputs, request carries %d tensors", len(req.Node.Inputs), len(req.Inputs)))
	}
	var opts []reference.Option
	if req.Rounding != "" {
		r, err := qlinear.ParseRounding(req.Rounding)
		if err != nil {
			return nil, newInvalidRequest(err.Error())
		}
		opts = append(opts, reference.WithRounding(r))
	}
	inputs := make([]*tensor.Tensor, len(req.Inputs))
	for i, doc := range req.Inputs {
		if doc == nil {
			continue
		}
		t, err := tensorio.FromDocument(*doc)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs[i] = t
	}
	return reference.Evaluate(req.Node, inputs, opts...)
}

var clientErrors = []error{
	ErrInvalidRequest,
	graph.ErrInvalidNode,
	graph.ErrAttribute,
	shapeinfer.ErrUnknownOp,
	shapeinfer.ErrArity,
	shapeinfer.ErrTypeConstraint,
	shapeinfer.ErrShape,
	dtype.ErrUnknownKind,
	cast.ErrMalformedLiteral,
	qlinear.ErrKind,
	qlinear.ErrBroadcast,
	tensor.ErrShape,
	tensor.ErrKind,
	tensorio.ErrCorrupt,
}

func isClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func writeJSON(c *echo.Context, status int, v any) error {
	c.Set(statusKey, status)
	return c.JSON(status, v)
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return writeJSON(c, status, map[string]any{
		"error": ResponseError{Message: msg, Type: errType},
	})
}
