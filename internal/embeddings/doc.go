// Package embeddings provides the encoder backends behind the gateway.
//
// Two providers are supported: fastembed (local ONNX, requires cgo) and TEI
// (a remote text-embeddings-inference server). NewRegistry loads exactly one
// model at startup; the resulting Registry is immutable and safe for
// concurrent reads.
package embeddings
