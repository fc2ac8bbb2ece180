package elasticsearch

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const errResourceAlreadyExists = "resource_already_exists_exception"

// esErrorResponse is the error body Elasticsearch returns for failed requests.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// decodeError reads a failed response body. Bodies that are not an
// Elasticsearch error document yield an empty Type.
func decodeError(res *esapi.Response) esErrorResponse {
	var e esErrorResponse
	if res.Body != nil {
		_ = json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&e)
	}
	e.Status = res.StatusCode
	return e
}

func (e esErrorResponse) err(op string) error {
	if e.Error.Type == "" {
		return fmt.Errorf("%s: unexpected status %d", op, e.Status)
	}
	return fmt.Errorf("%s: %s: %s", op, e.Error.Type, e.Error.Reason)
}
