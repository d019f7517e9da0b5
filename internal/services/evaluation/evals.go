package evaluation

import (
	"context"
	"errors"
	"net/url"
	"strconv"
)

// CreateEval registers a new evaluation definition.
func (c *Client) CreateEval(ctx context.Context, req CreateEvalRequest) (Eval, error) {
	var eval Eval
	if req.Name == "" {
		return eval, errors.New("evaluation: eval name required")
	}
	err := c.postJSON(ctx, c.endpoint("evals"), req, &eval)
	return eval, err
}

// GetEval fetches one eval by id.
func (c *Client) GetEval(ctx context.Context, evalID string) (Eval, error) {
	var eval Eval
	if evalID == "" {
		return eval, errors.New("evaluation: eval id required")
	}
	err := c.getJSON(ctx, c.endpoint("evals", evalID), nil, &eval)
	return eval, err
}

// ListEvals returns one page of evals.
func (c *Client) ListEvals(ctx context.Context, page PageRequest) ([]Eval, Page, error) {
	var envelope listEnvelope[Eval]
	limit := c.normalizeLimit(page.Limit)
	err := c.getJSON(ctx, c.endpoint("evals"), pageQuery(limit, page.Cursor), &envelope)
	if err != nil {
		return nil, Page{}, err
	}
	return envelope.Data, envelope.page(limit), nil
}

// CreateRun starts a run of the given file against an eval.
func (c *Client) CreateRun(ctx context.Context, evalID string, req CreateRunRequest) (Run, error) {
	var run Run
	if evalID == "" {
		return run, errors.New("evaluation: eval id required")
	}
	if req.FileID == "" {
		return run, errors.New("evaluation: file id required")
	}
	err := c.postJSON(ctx, c.endpoint("evals", evalID, "runs"), req, &run)
	return run, err
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, evalID, runID string) (Run, error) {
	var run Run
	if evalID == "" || runID == "" {
		return run, errors.New("evaluation: eval id and run id required")
	}
	err := c.getJSON(ctx, c.endpoint("evals", evalID, "runs", runID), nil, &run)
	return run, err
}

// ListRuns returns one page of runs for an eval.
func (c *Client) ListRuns(ctx context.Context, evalID string, page PageRequest) ([]Run, Page, error) {
	if evalID == "" {
		return nil, Page{}, errors.New("evaluation: eval id required")
	}
	var envelope listEnvelope[Run]
	limit := c.normalizeLimit(page.Limit)
	err := c.getJSON(ctx, c.endpoint("evals", evalID, "runs"), pageQuery(limit, page.Cursor), &envelope)
	if err != nil {
		return nil, Page{}, err
	}
	return envelope.Data, envelope.page(limit), nil
}

func (c *Client) normalizeLimit(limit int) int {
	if limit <= 0 {
		return c.cfg.PageLimit
	}
	return limit
}

func pageQuery(limit int, cursor string) url.Values {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	return query
}
