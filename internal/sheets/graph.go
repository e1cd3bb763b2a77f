package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	apperrors "excel-mcp/internal/errors"
	"excel-mcp/internal/identity"
	"excel-mcp/internal/logging"
	"excel-mcp/internal/resilience"
	"excel-mcp/pkg/utils"
)

// DefaultGraphBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphOptions configures a GraphClient.
type GraphOptions struct {
	BaseURL        string
	RequestTimeout time.Duration
	RetryAttempts  int
	LocatorTTL     time.Duration
	Breaker        resilience.CircuitBreakerConfig

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// GraphClient is a Backend over the Microsoft Graph workbook API.
type GraphClient struct {
	http    *resty.Client
	creds   identity.CredentialProvider
	timeout time.Duration
	retry   utils.RetryConfig
	breaker *resilience.CircuitBreaker
	locator *Locator
	logger  zerolog.Logger
}

// NewGraphClient creates a Graph client.
func NewGraphClient(opts GraphOptions, creds identity.CredentialProvider, logger zerolog.Logger) *GraphClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGraphBaseURL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.LocatorTTL <= 0 {
		opts.LocatorTTL = 30 * time.Minute
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "excel-mcp/1.0")

	retry := utils.DefaultRetryConfig()
	if opts.RetryAttempts > 0 {
		retry.MaxAttempts = opts.RetryAttempts
	}
	retry.RetryableErrors = []error{apperrors.ErrRemoteUnavailable}

	breakerCfg := opts.Breaker
	if breakerCfg.Timeout == 0 {
		breakerCfg = resilience.DefaultCircuitBreakerConfig()
	}
	breakerCfg.IsFailure = func(err error) bool {
		return apperrors.Is(err, apperrors.ErrRemoteUnavailable) || apperrors.Is(err, apperrors.ErrRemoteTimeout)
	}

	g := &GraphClient{
		http:    client,
		creds:   creds,
		timeout: opts.RequestTimeout,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker("graph", breakerCfg),
		logger:  logger.With().Str("component", "graph").Logger(),
	}
	g.locator = &Locator{graph: g, cache: cache.New(opts.LocatorTTL, 2*opts.LocatorTTL)}
	return g
}

// Locate implements Backend.
func (g *GraphClient) Locate(ctx context.Context, siteURL, fileName string) (WorkbookRef, error) {
	return g.locator.Locate(ctx, siteURL, fileName)
}

// Workbook implements Backend.
func (g *GraphClient) Workbook(ref WorkbookRef) Store {
	return &graphWorkbook{graph: g, ref: ref}
}

// BreakerStats exposes the store circuit breaker state.
func (g *GraphClient) BreakerStats() resilience.CircuitBreakerStats {
	return g.breaker.Stats()
}

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one logical request: circuit breaker, retry on
// RemoteUnavailable for idempotent methods, and a per-attempt timeout.
func (g *GraphClient) call(ctx context.Context, op, method, path string, body, out any) error {
	attempt := func() error {
		return g.breaker.Execute(ctx, func() error {
			return g.do(ctx, op, method, path, body, out)
		})
	}

	retry := g.retry
	if method == http.MethodPost {
		retry.MaxAttempts = 1
	}

	err := utils.Retry(ctx, retry, attempt)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return &apperrors.StoreError{Op: op, Message: "store temporarily disabled after repeated failures", Err: apperrors.ErrRemoteUnavailable}
	}
	return err
}

func (g *GraphClient) do(ctx context.Context, op, method, path string, body, out any) error {
	token, err := g.creds.Token(ctx)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := g.http.R().
		SetContext(reqCtx).
		SetAuthToken(token).
		SetError(&graphErrorBody{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	logging.LogAPICall(g.logger, method, path, time.Since(start), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return &apperrors.StoreError{Op: op, Message: fmt.Sprintf("no response within %s", g.timeout), Err: apperrors.ErrRemoteTimeout}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &apperrors.StoreError{Op: op, Message: err.Error(), Err: apperrors.ErrRemoteUnavailable}
	}

	if resp.IsError() {
		return statusError(op, resp)
	}

	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &apperrors.StoreError{Op: op, Status: resp.StatusCode(), Message: "decoding response", Err: err}
		}
	}
	return nil
}

func statusError(op string, resp *resty.Response) error {
	status := resp.StatusCode()
	msg := http.StatusText(status)
	if e, ok := resp.Error().(*graphErrorBody); ok && e.Error.Message != "" {
		msg = e.Error.Message
	}

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = apperrors.ErrUnauthorized
	case status == http.StatusNotFound:
		kind = apperrors.ErrNotFound
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		kind = apperrors.ErrConflict
	case status == http.StatusTooManyRequests || status >= 500:
		kind = apperrors.ErrRemoteUnavailable
	case status == http.StatusRequestTimeout:
		kind = apperrors.ErrRemoteTimeout
	default:
		kind = apperrors.ErrValidation
	}
	return apperrors.NewStoreError(op, status, msg, kind)
}

type graphWorkbook struct {
	graph *GraphClient
	ref   WorkbookRef
}

func (w *graphWorkbook) base() string {
	if w.ref.SiteID != "" {
		return fmt.Sprintf("/sites/%s/drives/%s/items/%s/workbook",
			url.PathEscape(w.ref.SiteID), url.PathEscape(w.ref.DriveID), url.PathEscape(w.ref.ItemID))
	}
	return fmt.Sprintf("/drives/%s/items/%s/workbook", url.PathEscape(w.ref.DriveID), url.PathEscape(w.ref.ItemID))
}

func (w *graphWorkbook) rangePath(sheet, address string) string {
	return fmt.Sprintf("%s/worksheets/%s/range(address='%s')", w.base(), url.PathEscape(sheet), address)
}

func (w *graphWorkbook) ReadColumn(ctx context.Context, sheet, column string) ([]string, error) {
	if _, err := ColumnNumber(column); err != nil {
		return nil, err
	}
	if err := w.ref.Validate(); err != nil {
		return nil, err
	}
	col := strings.ToUpper(strings.TrimSpace(column))

	var out struct {
		RowIndex int        `json:"rowIndex"`
		Text     [][]string `json:"text"`
	}
	path := w.rangePath(sheet, col+":"+col) + "/usedRange(valuesOnly=true)?$select=rowIndex,text"
	if err := w.graph.call(ctx, "readColumn", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	cells := make([]string, out.RowIndex+len(out.Text))
	for i, row := range out.Text {
		if len(row) > 0 {
			cells[out.RowIndex+i] = row[0]
		}
	}
	return cells, nil
}

func (w *graphWorkbook) ReadRange(ctx context.Context, sheet, address string) ([][]any, error) {
	r, err := ParseRange(address)
	if err != nil {
		return nil, err
	}
	if err := w.ref.Validate(); err != nil {
		return nil, err
	}

	var out struct {
		Values [][]any `json:"values"`
	}
	path := w.rangePath(sheet, r.String()) + "?$select=values"
	if err := w.graph.call(ctx, "readRange", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (w *graphWorkbook) WriteRange(ctx context.Context, sheet, address string, values [][]any) (RangeResult, error) {
	r, err := CheckShape(address, values)
	if err != nil {
		return RangeResult{}, err
	}
	if err := w.ref.Validate(); err != nil {
		return RangeResult{}, err
	}

	var out struct {
		Address     string `json:"address"`
		RowCount    int    `json:"rowCount"`
		ColumnCount int    `json:"columnCount"`
	}
	body := map[string]any{"values": values}
	if err := w.graph.call(ctx, "writeRange", http.MethodPatch, w.rangePath(sheet, r.String()), body, &out); err != nil {
		return RangeResult{}, err
	}

	result := RangeResult{Address: out.Address, RowCount: out.RowCount, ColumnCount: out.ColumnCount}
	if result.Address == "" {
		result.Address = sheet + "!" + r.String()
	}
	if result.RowCount == 0 {
		result.RowCount = r.Rows()
	}
	if result.ColumnCount == 0 {
		result.ColumnCount = r.Columns()
	}
	return result, nil
}

func (w *graphWorkbook) AppendRows(ctx context.Context, table string, rows [][]any) (AppendResult, error) {
	if strings.TrimSpace(table) == "" {
		return AppendResult{}, apperrors.NewValidationError("table_name", nil, "required")
	}
	if len(rows) == 0 {
		return AppendResult{}, apperrors.NewValidationError("rows", nil, "at least one row required")
	}
	if err := w.ref.Validate(); err != nil {
		return AppendResult{}, err
	}

	var out struct {
		Index int `json:"index"`
	}
	path := fmt.Sprintf("%s/tables/%s/rows", w.base(), url.PathEscape(table))
	if err := w.graph.call(ctx, "appendRows", http.MethodPost, path, map[string]any{"values": rows}, &out); err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Index: out.Index, RowsAdded: len(rows)}, nil
}
