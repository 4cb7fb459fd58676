package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// InputKind distinguishes the two accepted shapes of "input".
type InputKind int

const (
	// InputText is a single string.
	InputText InputKind = iota + 1
	// InputList is an ordered list of strings.
	InputList
)

// Input is the validated "input" field of an embedding request.
type Input struct {
	Kind InputKind
	Text string
	List []string
}

// Texts returns the input as an ordered list.
func (in Input) Texts() []string {
	if in.Kind == InputText {
		return []string{in.Text}
	}
	return in.List
}

// ParseInput validates raw JSON as a string or a list of strings.
// Anything else, including null, an absent value, or a list holding a
// non-string element, yields ErrInvalidInput.
func ParseInput(raw json.RawMessage) (Input, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Input{}, ErrInvalidInput
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Input{}, ErrInvalidInput
		}
		return Input{Kind: InputText, Text: s}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Input{}, ErrInvalidInput
		}
		list := make([]string, len(items))
		for i, item := range items {
			// null would silently decode to "" in a []string
			if len(item) == 0 || item[0] != '"' {
				return Input{}, ErrInvalidInput
			}
			if err := json.Unmarshal(item, &list[i]); err != nil {
				return Input{}, ErrInvalidInput
			}
		}
		return Input{Kind: InputList, List: list}, nil
	default:
		return Input{}, ErrInvalidInput
	}
}

// EmbeddingRequest is the decoded body of POST /v1/embeddings.
type EmbeddingRequest struct {
	Input Input
	// Model is the requested model name, empty when absent. It never
	// selects the encoder.
	Model string
}

// errModelType indicates a "model" field that is not a string.
var errModelType = errors.New("model needs to be a string")

// errMalformedBody indicates a body that is not a single JSON object.
var errMalformedBody = errors.New("invalid request body")

// DecodeEmbeddingRequest reads and validates a request body. The returned
// error is one of errMalformedBody, errModelType or ErrInvalidInput.
func DecodeEmbeddingRequest(r io.Reader) (EmbeddingRequest, error) {
	dec := json.NewDecoder(r)

	// Field names match exactly; struct decoding would also accept "INPUT".
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return EmbeddingRequest{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return EmbeddingRequest{}, fmt.Errorf("%w: trailing data", errMalformedBody)
	}

	input, err := ParseInput(raw["input"])
	if err != nil {
		return EmbeddingRequest{}, err
	}

	req := EmbeddingRequest{Input: input}
	if model, ok := raw["model"]; ok {
		if err := json.Unmarshal(model, &req.Model); err != nil || model[0] != '"' {
			return EmbeddingRequest{}, errModelType
		}
	}
	return req, nil
}

// EmbeddingData is one embedding in a response.
type EmbeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
	Object    string    `json:"object"`
}

// Usage reports the token accounting of a response. Counts are the summed
// embedding dimensions, not tokenizer output.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingResponse is the body of a successful POST /v1/embeddings.
type EmbeddingResponse struct {
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  Usage           `json:"usage"`
	Object string          `json:"object"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
