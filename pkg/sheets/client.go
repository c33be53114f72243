// Package sheets provides a narrow client for reading and appending values in
// a Google Sheets worksheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/sells-group/talent-sync/internal/resilience"
)

const defaultTimeout = 30 * time.Second

// Client defines the Sheets operations used by the destination adapter.
type Client interface {
	// ReadValues returns the formatted cell values in rng, row-major. Trailing
	// empty cells are omitted by the API, so rows may be ragged.
	ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	// AppendValues appends rows after the last row of the table containing
	// rng, inserting new rows rather than overwriting.
	AppendValues(ctx context.Context, spreadsheetID, rng string, rows [][]string) (*AppendResponse, error)
}

// AppendResponse summarizes an append.
type AppendResponse struct {
	UpdatedRange string
	UpdatedRows  int64
}

// Option configures the Sheets client.
type Option func(*settings)

type settings struct {
	credentialsFile string
	endpoint        string
	noAuth          bool
	httpClient      *http.Client
	timeout         time.Duration
}

// WithCredentialsFile authenticates with a service-account JSON key.
func WithCredentialsFile(path string) Option {
	return func(s *settings) {
		s.credentialsFile = path
	}
}

// WithEndpoint sets a custom API endpoint (for testing).
func WithEndpoint(u string) Option {
	return func(s *settings) {
		s.endpoint = u
	}
}

// WithoutAuthentication disables credentials (for testing).
func WithoutAuthentication() Option {
	return func(s *settings) {
		s.noAuth = true
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

type sheetsClient struct {
	svc     *gsheets.Service
	timeout time.Duration
}

// NewClient creates a Sheets client.
func NewClient(ctx context.Context, opts ...Option) (Client, error) {
	s := &settings{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(s)
	}

	copts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if s.credentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(s.credentialsFile))
	}
	if s.endpoint != "" {
		copts = append(copts, option.WithEndpoint(s.endpoint))
	}
	if s.noAuth {
		copts = append(copts, option.WithoutAuthentication())
	}
	if s.httpClient != nil {
		copts = append(copts, option.WithHTTPClient(s.httpClient))
	}

	svc, err := gsheets.NewService(ctx, copts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: new service")
	}
	return &sheetsClient{svc: svc, timeout: s.timeout}, nil
}

func (c *sheetsClient) ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(classify(err), "sheets: read %s", rng)
	}

	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out, nil
}

func (c *sheetsClient) AppendValues(ctx context.Context, spreadsheetID, rng string, rows [][]string) (*AppendResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	resp, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(classify(err), "sheets: append %s", rng)
	}

	out := &AppendResponse{}
	if resp.Updates != nil {
		out.UpdatedRange = resp.Updates.UpdatedRange
		out.UpdatedRows = resp.Updates.UpdatedRows
	}
	return out, nil
}

// classify maps API status codes onto the resilience taxonomy. A deadline
// hit by the per-call timeout is transient.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus("sheets", apiErr.Code, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.NewTransientError(err, 0)
	}
	return err
}
