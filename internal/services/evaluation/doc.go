// Package evaluation is the HTTP client for the external annotation and
// evaluation service: file uploads, eval and run management, annotation
// listing and editing, label suggestions, result aggregation, and exports.
//
// The service owns all clustering, labeling, and model invocation; this
// package only shapes requests and responses. Wire field names the dashboard
// reads (report_url, annotationAttributes, testing_criteria) follow the
// service's contract exactly.
package evaluation
