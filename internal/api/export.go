package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/atlasoi/tokensync/internal/model"
)

var exportContentTypes = map[string]string{
	model.ExportJSON: "application/json",
	model.ExportCSV:  "text/csv",
	model.ExportXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Export downloads a statistics export in the requested format and
// returns the raw document plus its content type. The body is passed
// through untouched; only JSON endpoints use the response envelope.
func (c *Client) Export(ctx context.Context, req model.ExportRequest) ([]byte, string, error) {
	contentType, ok := exportContentTypes[req.Format]
	if !ok {
		return nil, "", fmt.Errorf("invalid export format %q (want json, csv, or xlsx)", req.Format)
	}

	query := url.Values{}
	query.Set("format", req.Format)
	// Correlation id lets the backend tie retries of the same
	// export together.
	query.Set("request_id", uuid.NewString())
	if req.StartDate != "" {
		query.Set("start_date", req.StartDate)
	}
	if req.EndDate != "" {
		query.Set("end_date", req.EndDate)
	}
	if req.IncludeDetails {
		query.Set("include_details", "true")
	}

	opt := defaultRequestOptions()
	opt.accept = contentType

	body, err := c.doWithRetry(ctx, http.MethodPost, "/export", query, opt)
	if err != nil {
		return nil, "", fmt.Errorf("export stats: %w", err)
	}

	return body, contentType, nil
}
