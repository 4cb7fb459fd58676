package http_test

import (
	"encoding/json"
	"fmt"

	httpserver "github.com/fyrsmithlabs/embedgate/internal/http"
)

// ExampleParseInput shows the two accepted shapes of "input".
func ExampleParseInput() {
	for _, raw := range []string{`"hello"`, `["a", "b"]`, `["a", 1]`} {
		in, err := httpserver.ParseInput(json.RawMessage(raw))
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println(in.Texts())
	}
	// Output:
	// [hello]
	// [a b]
	// input needs to be an array of strings or a string
}
