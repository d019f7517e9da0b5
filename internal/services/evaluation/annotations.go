package evaluation

import (
	"context"
	"errors"
	"net/url"
)

// ListAnnotations returns one page of annotations produced by a run.
func (c *Client) ListAnnotations(ctx context.Context, runID string, page PageRequest) ([]Annotation, Page, error) {
	if runID == "" {
		return nil, Page{}, errors.New("evaluation: run id required")
	}
	var envelope listEnvelope[Annotation]
	limit := c.normalizeLimit(page.Limit)
	err := c.getJSON(ctx, c.endpoint("runs", runID, "annotations"), pageQuery(limit, page.Cursor), &envelope)
	if err != nil {
		return nil, Page{}, err
	}
	return envelope.Data, envelope.page(limit), nil
}

// UpdateAnnotation replaces an annotation's attributes, returning the stored
// annotation.
func (c *Client) UpdateAnnotation(ctx context.Context, annotationID string, attributes map[string]any) (Annotation, error) {
	var annotation Annotation
	if annotationID == "" {
		return annotation, errors.New("evaluation: annotation id required")
	}
	payload := struct {
		Attributes map[string]any `json:"annotationAttributes"`
	}{Attributes: attributes}
	err := c.patchJSON(ctx, c.endpoint("annotations", annotationID), payload, &annotation)
	return annotation, err
}

// SuggestLabels asks the service to generate taxonomy label suggestions for a
// run. The returned job is polled with GetSuggestion until terminal.
func (c *Client) SuggestLabels(ctx context.Context, runID string) (SuggestionJob, error) {
	var job SuggestionJob
	if runID == "" {
		return job, errors.New("evaluation: run id required")
	}
	payload := struct {
		RunID string `json:"run_id"`
	}{RunID: runID}
	err := c.postJSON(ctx, c.endpoint("label-suggestions"), payload, &job)
	return job, err
}

// GetSuggestion fetches the state of a label-suggestion job.
func (c *Client) GetSuggestion(ctx context.Context, jobID string) (SuggestionJob, error) {
	var job SuggestionJob
	if jobID == "" {
		return job, errors.New("evaluation: suggestion job id required")
	}
	err := c.getJSON(ctx, c.endpoint("label-suggestions", jobID), nil, &job)
	return job, err
}

// Aggregate returns grouped label counts for one annotation attribute of a
// run, for result visualization.
func (c *Client) Aggregate(ctx context.Context, runID, attribute string) (Aggregation, error) {
	var agg Aggregation
	if runID == "" {
		return agg, errors.New("evaluation: run id required")
	}
	if attribute == "" {
		return agg, errors.New("evaluation: attribute required")
	}
	query := url.Values{}
	query.Set("attribute", attribute)
	err := c.getJSON(ctx, c.endpoint("runs", runID, "aggregation"), query, &agg)
	return agg, err
}
