package destination

import (
	"context"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/talent-sync/internal/model"
	"github.com/sells-group/talent-sync/internal/reconcile"
	"github.com/sells-group/talent-sync/internal/resilience"
	"github.com/sells-group/talent-sync/pkg/notion"
)

// Notion database property names.
const (
	propName        = "Name"
	propFirstName   = "First Name"
	propLastName    = "Last Name"
	propEmail       = "Email"
	propEmails      = "Emails"
	propLocation    = "Location"
	propLinkedIn    = "LinkedIn"
	propSyncStatus  = "Sync Status"
	propLastSynced  = "Last Synced"
	propCandidateID = "Candidate ID"
)

// Notion appends one page per row to a Notion database.
type Notion struct {
	client     notion.Client
	databaseID string
}

var _ reconcile.Destination = (*Notion)(nil)

// NewNotion creates a Notion database destination.
func NewNotion(client notion.Client, databaseID string) *Notion {
	return &Notion{client: client, databaseID: databaseID}
}

// ReadExisting pages through the whole database.
func (n *Notion) ReadExisting(ctx context.Context) ([]model.DestinationRow, error) {
	pages, err := notion.QueryAll(ctx, n.client, n.databaseID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "destination: read notion database")
	}
	rows := make([]model.DestinationRow, 0, len(pages))
	for i, p := range pages {
		r := pageToRow(p.Properties)
		r.RowNumber = i + 1
		rows = append(rows, r)
	}
	return rows, nil
}

// Append creates a page per row. An error on the first row is returned as
// the call's error so the caller may retry; later failures are reported
// per row.
func (n *Notion) Append(ctx context.Context, rows []model.DestinationRow) (reconcile.AppendResult, error) {
	var res reconcile.AppendResult
	for i, r := range rows {
		_, err := n.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(n.databaseID),
			},
			Properties: rowToProperties(r),
		})
		if err == nil {
			res.Written = append(res.Written, r.CandidateID)
			continue
		}
		if i == 0 || resilience.IsAuth(err) || ctx.Err() != nil {
			if len(res.Written) == 0 {
				return reconcile.AppendResult{}, eris.Wrap(err, "destination: create notion page")
			}
			// Earlier pages landed; report the rest as failed.
			for _, rest := range rows[i:] {
				res.Failed = append(res.Failed, model.RowFailure{CandidateID: rest.CandidateID, Error: err.Error()})
			}
			return res, nil
		}
		zap.L().Warn("notion page create failed",
			zap.String("candidate_id", r.CandidateID),
			zap.Error(err),
		)
		res.Failed = append(res.Failed, model.RowFailure{CandidateID: r.CandidateID, Error: err.Error()})
	}
	return res, nil
}

func text(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

func rowToProperties(r model.DestinationRow) notionapi.Properties {
	props := notionapi.Properties{
		propName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: text(r.FullName()),
		},
		propFirstName: notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text(r.FirstName)},
		propLastName:  notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text(r.LastName)},
		propEmails: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: text(strings.Join(r.Emails, ", ")),
		},
		propLocation:    notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text(r.Location)},
		propCandidateID: notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: text(r.CandidateID)},
	}
	if len(r.Emails) > 0 {
		props[propEmail] = notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: r.Emails[0]}
	}
	if r.ProfileURL != "" {
		props[propLinkedIn] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: r.ProfileURL}
	}
	if r.SyncStatus != "" {
		props[propSyncStatus] = notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: string(r.SyncStatus)},
		}
	}
	if !r.LastSyncedAt.IsZero() {
		d := notionapi.Date(r.LastSyncedAt)
		props[propLastSynced] = notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &d},
		}
	}
	return props
}

// plainText concatenates the plain text of rich text runs, falling back to
// the request-side content for values that never went through the API.
func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

func pageToRow(props notionapi.Properties) model.DestinationRow {
	var r model.DestinationRow
	var emails []string
	var full string
	for name, prop := range props {
		switch p := prop.(type) {
		case *notionapi.TitleProperty:
			if name == propName {
				full = plainText(p.Title)
			}
		case *notionapi.RichTextProperty:
			v := strings.TrimSpace(plainText(p.RichText))
			switch name {
			case propFirstName:
				r.FirstName = v
			case propLastName:
				r.LastName = v
			case propEmails:
				for _, e := range strings.Split(v, ",") {
					if e = strings.TrimSpace(e); e != "" {
						emails = append(emails, e)
					}
				}
			case propLocation:
				r.Location = v
			case propCandidateID:
				r.CandidateID = v
			}
		case *notionapi.EmailProperty:
			if name == propEmail && p.Email != "" {
				emails = append([]string{p.Email}, emails...)
			}
		case *notionapi.URLProperty:
			if name == propLinkedIn {
				r.ProfileURL = p.URL
			}
		case *notionapi.SelectProperty:
			if name == propSyncStatus {
				r.SyncStatus = model.SyncStatus(p.Select.Name)
			}
		case *notionapi.DateProperty:
			if name == propLastSynced && p.Date != nil && p.Date.Start != nil {
				r.LastSyncedAt = time.Time(*p.Date.Start)
			}
		}
	}
	if r.FirstName == "" && r.LastName == "" && full != "" {
		r.FirstName, r.LastName = model.SplitName(full)
	}
	r.Emails = model.MergeEmails(nil, emails...)
	return r
}
