// Package similarity talks to the external document similarity service.
package similarity

import (
	"context"
	"fmt"

	imrocreq "github.com/imroc/req/v3"

	"github.com/raids-lab/capstone/pkg/config"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Result is the outcome of a similarity check on a single document.
type Result struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

type ClientInterface interface {
	// Check submits the document identified by fileID and waits for the
	// service's verdict.
	Check(ctx context.Context, fileID string) (*Result, error)
}

type client struct {
	baseURL string
	req     *imrocreq.Client
}

func NewClient() ClientInterface {
	simConfig := config.GetConfig().Similarity
	return &client{
		baseURL: simConfig.BaseURL,
		req:     imrocreq.C().SetCommonBearerAuthToken(simConfig.AccessToken),
	}
}

type checkRequest struct {
	FileID string `json:"fileId"`
}

func (c *client) Check(ctx context.Context, fileID string) (*Result, error) {
	var result Result
	resp, err := c.req.R().
		SetContext(ctx).
		SetBody(&checkRequest{FileID: fileID}).
		SetSuccessResult(&result).
		Post(c.baseURL + "/v1/checks")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessState() {
		return nil, fmt.Errorf("similarity service returned %s", resp.Status)
	}
	return &result, nil
}
