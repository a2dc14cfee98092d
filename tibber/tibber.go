package tibber

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/angas/spotprice-go/apiclient"
	"github.com/goccy/go-json"
)

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse[T any] struct {
	Data struct {
		Viewer T `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string   `json:"message"`
		Path    []string `json:"path"`
	} `json:"errors,omitempty"`
}

func doQuery(ctx context.Context, client *apiclient.Client, url string, apiToken string, query string) ([]byte, error) {
	header := http.Header{"Authorization": {fmt.Sprintf("Bearer %s", apiToken)}}
	return client.PostJSON(ctx, url, queryRequest{Query: query}, header)
}

// decodeResponse surfaces GraphQL errors, which Tibber reports with status 200.
func decodeResponse[T any](raw []byte) (*queryResponse[T], error) {
	resBody := new(queryResponse[T])
	if err := json.Unmarshal(raw, resBody); err != nil {
		return nil, fmt.Errorf("failed to decode tibber response: %w", err)
	}

	if resBody.Errors != nil {
		messages := make([]string, len(resBody.Errors))
		for i, err := range resBody.Errors {
			messages[i] = err.Message
		}
		return nil, fmt.Errorf("graphql error: %s", strings.Join(messages, "; "))
	}

	return resBody, nil
}
