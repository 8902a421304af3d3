package server

import (
	"github.com/samcharles93/goldcase/internal/graph"
	"github.com/samcharles93/goldcase/internal/tensorio"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Cases   int    `json:"cases"`
	RunID   string `json:"run_id,omitempty"`
	Seed    uint64 `json:"seed,omitempty"`
}

type CaseSummary struct {
	Name     string            `json:"name"`
	OpType   string            `json:"op_type"`
	Node     graph.Node        `json:"node"`
	Inputs   []graph.ValueInfo `json:"inputs"`
	Outputs  []graph.ValueInfo `json:"outputs"`
	Rounding string            `json:"rounding,omitempty"`
}

type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

type FormalInfo struct {
	Name     string   `json:"name"`
	Kinds    []string `json:"kinds"`
	Optional bool     `json:"optional,omitempty"`
}

type OpSummary struct {
	OpType     string                    `json:"op_type"`
	Since      int                       `json:"since"`
	Doc        string                    `json:"doc,omitempty"`
	Inputs     []FormalInfo              `json:"inputs"`
	Outputs    []FormalInfo              `json:"outputs"`
	Attributes map[string]graph.AttrType `json:"attributes,omitempty"`
}

// EvaluateRequest runs one node. Inputs align with Node.Inputs; a null entry
// is an omitted optional input.
type EvaluateRequest struct {
	Node     graph.Node           `json:"node"`
	Inputs   []*tensorio.Document `json:"inputs"`
	Rounding string               `json:"rounding,omitempty"`
}

type EvaluateResponse struct {
	Outputs []tensorio.Document `json:"outputs"`
	Infos   []graph.ValueInfo   `json:"infos"`
}

type VerifyResponse struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
