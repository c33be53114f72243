package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// DefaultPageSize is the largest page Notion returns per query.
const DefaultPageSize = 100

// QueryAll fetches every page of a Notion database, following NextCursor
// until HasMore is false. A nil filter returns the whole database.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	req := &notionapi.DatabaseQueryRequest{PageSize: DefaultPageSize}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		if filter.PageSize > 0 {
			req.PageSize = filter.PageSize
		}
	}

	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}

		next := *req
		next.StartCursor = resp.NextCursor
		req = &next
	}
}
