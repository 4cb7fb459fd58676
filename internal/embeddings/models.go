package embeddings

import "sort"

// ModelInfo describes a model the fastembed provider can load.
type ModelInfo struct {
	// Name is the identifier accepted in configuration.
	Name string
	// ID is the fastembed model identifier.
	ID string
	// Dimension is the embedding vector length.
	Dimension int
}

// catalog maps accepted model names to fastembed models. Both the
// sentence-transformers style names and fastembed's own names are accepted.
var catalog = map[string]ModelInfo{
	"all-MiniLM-L6-v2":                       {ID: "fast-all-MiniLM-L6-v2", Dimension: 384},
	"sentence-transformers/all-MiniLM-L6-v2": {ID: "fast-all-MiniLM-L6-v2", Dimension: 384},
	"fast-all-MiniLM-L6-v2":                  {ID: "fast-all-MiniLM-L6-v2", Dimension: 384},
	"BAAI/bge-small-en-v1.5":                 {ID: "fast-bge-small-en-v1.5", Dimension: 384},
	"fast-bge-small-en-v1.5":                 {ID: "fast-bge-small-en-v1.5", Dimension: 384},
	"BAAI/bge-small-en":                      {ID: "fast-bge-small-en", Dimension: 384},
	"fast-bge-small-en":                      {ID: "fast-bge-small-en", Dimension: 384},
	"BAAI/bge-base-en-v1.5":                  {ID: "fast-bge-base-en-v1.5", Dimension: 768},
	"fast-bge-base-en-v1.5":                  {ID: "fast-bge-base-en-v1.5", Dimension: 768},
	"BAAI/bge-base-en":                       {ID: "fast-bge-base-en", Dimension: 768},
	"fast-bge-base-en":                       {ID: "fast-bge-base-en", Dimension: 768},
	"BAAI/bge-small-zh-v1.5":                 {ID: "fast-bge-small-zh-v1.5", Dimension: 512},
	"fast-bge-small-zh-v1.5":                 {ID: "fast-bge-small-zh-v1.5", Dimension: 512},
}

// LookupModel returns catalog information for a model name.
func LookupModel(name string) (ModelInfo, bool) {
	info, ok := catalog[name]
	if !ok {
		return ModelInfo{}, false
	}
	info.Name = name
	return info, true
}

// Models returns every accepted model name, sorted by name.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(catalog))
	for name := range catalog {
		info, _ := LookupModel(name)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
