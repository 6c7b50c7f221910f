// Package sheets reads and writes the shared roster range of a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/roster"
)

// Adapter translates between roster.State and the remote two-row range.
// It holds no cache; every call goes to the backend with the caller's token.
type Adapter struct {
	spreadsheetID string
	readRange     string
	codec         roster.Codec
	base          http.RoundTripper
	opts          []option.ClientOption
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithTransport sets the round tripper used underneath the bearer token.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Adapter) { a.base = rt }
}

// WithClientOptions appends google API client options, e.g. option.WithEndpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(a *Adapter) { a.opts = append(a.opts, opts...) }
}

func NewAdapter(spreadsheetID, cellRange string, codec roster.Codec, opts ...Option) (*Adapter, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}
	if cellRange == "" {
		return nil, fmt.Errorf("cell range is required")
	}
	a := &Adapter{
		spreadsheetID: spreadsheetID,
		readRange:     cellRange,
		codec:         codec,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Read fetches the range and decodes it into a complete state. An empty or
// missing range decodes to every member absent with no comment.
func (a *Adapter) Read(ctx context.Context, token string) (roster.State, error) {
	srv, err := a.service(ctx, token, "read")
	if err != nil {
		return nil, err
	}

	resp, err := srv.Spreadsheets.Values.Get(a.spreadsheetID, a.readRange).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("read", err)
	}

	logger.Debug("read roster range", "range", resp.Range, "rows", len(resp.Values))

	state, err := a.codec.Decode(resp.Values)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Write replaces the whole range with the encoding of state. Values are sent
// RAW so the backend never reinterprets comments as formulas or numbers.
func (a *Adapter) Write(ctx context.Context, state roster.State, token string) error {
	srv, err := a.service(ctx, token, "write")
	if err != nil {
		return err
	}

	body := &sheetsapi.ValueRange{
		Range:          a.readRange,
		MajorDimension: "ROWS",
		Values:         a.codec.Encode(state),
	}
	resp, err := srv.Spreadsheets.Values.Update(a.spreadsheetID, a.readRange, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify("write", err)
	}

	logger.Debug("wrote roster range", "range", resp.UpdatedRange, "cells", resp.UpdatedCells)
	return nil
}

func (a *Adapter) service(ctx context.Context, token, op string) (*sheetsapi.Service, error) {
	if token == "" {
		return nil, roster.NewRemoteError(roster.KindNotAuthorized, op, "no access token available")
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   a.base,
		},
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, a.opts...)

	srv, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, roster.NewRemoteError(roster.KindTransport, op, "failed to create sheets service").WithCause(err)
	}
	return srv, nil
}

// classify maps a client error onto the roster error taxonomy, keeping the
// backend's own message.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return roster.NewRemoteError(roster.KindTransport, op, err.Error()).WithCause(err)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Body)
	}
	if msg == "" {
		msg = http.StatusText(apiErr.Code)
	}

	kind := roster.KindTransport
	switch apiErr.Code {
	case http.StatusUnauthorized:
		kind = roster.KindNotAuthorized
	case http.StatusNotFound:
		kind = roster.KindNotFound
	}
	return roster.NewRemoteError(kind, op, msg).WithStatus(apiErr.Code).WithCause(err)
}
