package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/bibresolve/internal/app"
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveByISBN(ctx context.Context, container string, pure bool, dateFormat string) (*domain.Record, error) {
	args := m.Called(ctx, container, pure, dateFormat)
	rec, _ := args.Get(0).(*domain.Record)

	return rec, args.Error(1)
}

func (m *mockResolver) ResolveByOCLC(ctx context.Context, oclc, dateFormat string) (*domain.Record, *domain.UserMessage, error) {
	args := m.Called(ctx, oclc, dateFormat)
	rec, _ := args.Get(0).(*domain.Record)
	msg, _ := args.Get(1).(*domain.UserMessage)

	return rec, msg, args.Error(2)
}

func (m *mockResolver) ResolveByDOI(ctx context.Context, doi, dateFormat string) (*domain.Record, error) {
	args := m.Called(ctx, doi, dateFormat)
	rec, _ := args.Get(0).(*domain.Record)

	return rec, args.Error(1)
}

func (m *mockResolver) ResolveByURL(ctx context.Context, url, dateFormat string) (*domain.Record, error) {
	args := m.Called(ctx, url, dateFormat)
	rec, _ := args.Get(0).(*domain.Record)

	return rec, args.Error(1)
}

func (m *mockResolver) Resolve(ctx context.Context, raw, dateFormat string) (*domain.Record, *domain.UserMessage, error) {
	args := m.Called(ctx, raw, dateFormat)
	rec, _ := args.Get(0).(*domain.Record)
	msg, _ := args.Get(1).(*domain.UserMessage)

	return rec, msg, args.Error(2)
}

func (m *mockResolver) ResolveBatch(ctx context.Context, inputs []string, dateFormat string) []app.BatchItem {
	args := m.Called(ctx, inputs, dateFormat)
	items, _ := args.Get(0).([]app.BatchItem)

	return items
}

func (m *mockResolver) ExtractAuthors(html string) []domain.Name {
	args := m.Called(html)
	names, _ := args.Get(0).([]domain.Name)

	return names
}

func bookRecord(title string) *domain.Record {
	return &domain.Record{
		Fields:     domain.Fields{Type: domain.TypeBook, Title: title, ISBN: "9781933771694"},
		DateFormat: "%Y-%m-%d",
		Sources:    []string{"bibformat"},
	}
}

// execute runs the CLI with args against r and returns stdout.
func execute(t *testing.T, r Resolver, stdin string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(func(*globalOptions) (Resolver, error) { return r, nil })

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestISBN(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveByISBN", mock.Anything, "see 978-1-933771-69-4 here", false, "%d %B %Y").
		Return(bookRecord("Linux in a Nutshell"), nil)

	out, err := execute(t, r, "", "isbn", "--date-format", "%d %B %Y", "see", "978-1-933771-69-4", "here")
	require.NoError(t, err)

	var rec domain.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "Linux in a Nutshell", rec.Title)
	r.AssertExpectations(t)
}

func TestISBN_Pure(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveByISBN", mock.Anything, "9781933771694", true, "").Return(bookRecord("T"), nil)

	_, err := execute(t, r, "", "isbn", "--pure", "9781933771694")
	require.NoError(t, err)
	r.AssertExpectations(t)
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no isbn", err: domain.NewIdentifierNotFoundError("isbn", "nothing"), want: exitUsage},
		{name: "validation", err: domain.NewValidationError("oclc", "is required"), want: exitUsage},
		{name: "not found", err: domain.NewRecordNotFoundError("9781933771694"), want: exitFailure},
		{name: "unavailable", err: domain.NewUnavailableError("bibformat", "down"), want: exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mockResolver{}
			r.On("ResolveByISBN", mock.Anything, "x", false, "").Return(nil, tt.err)

			_, err := execute(t, r, "", "isbn", "x")
			require.Error(t, err)
			assert.Equal(t, tt.want, exitCode(err))
		})
	}
}

func TestOCLC_Rejected(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveByOCLC", mock.Anything, "123", "").Return(nil, domain.InvalidOCLCMessage("123"), nil)

	out, err := execute(t, r, "", "oclc", "123")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, err.Error(), "Error processing OCLC number: 123")
	assert.Contains(t, err.Error(), "Perhaps you entered an invalid OCLC number?")
}

func TestOCLC_Found(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveByOCLC", mock.Anything, "310400084", "").Return(bookRecord("Found"), nil, nil)

	out, err := execute(t, r, "", "--compact", "oclc", "310400084")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestDOIAndURL(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveByDOI", mock.Anything, "10.1000/xyz", "").Return(bookRecord("Paper"), nil)
	r.On("ResolveByURL", mock.Anything, "https://example.com/a", "").Return(nil, errors.New("boom"))

	_, err := execute(t, r, "", "doi", "10.1000/xyz")
	require.NoError(t, err)

	_, err = execute(t, r, "", "url", "https://example.com/a")
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestResolve_Message(t *testing.T) {
	r := &mockResolver{}
	r.On("Resolve", mock.Anything, "ocn1", "").Return(nil, domain.InvalidOCLCMessage("1"), nil)

	_, err := execute(t, r, "", "resolve", "ocn1")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestBadDateFormat(t *testing.T) {
	r := &mockResolver{}

	_, err := execute(t, r, "", "--date-format", "YYYY", "doi", "10.1/x")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
	r.AssertNotCalled(t, "ResolveByDOI", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatch(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveBatch", mock.Anything, []string{"9781933771694", "ocn1", "nope"}, "").Return([]app.BatchItem{
		{Input: "9781933771694", Record: bookRecord("One")},
		{Input: "ocn1", Message: domain.InvalidOCLCMessage("1")},
		{Input: "nope", Err: errors.New("unrecognized")},
	})

	out, err := execute(t, r, "9781933771694\n\n  ocn1  \nnope\n", "batch")
	require.NoError(t, err)

	var lines []batchLine
	require.NoError(t, json.Unmarshal([]byte(out), &lines))
	require.Len(t, lines, 3)
	assert.Equal(t, "One", lines[0].Record.Title)
	assert.Len(t, lines[1].Message, 3)
	assert.Equal(t, "unrecognized", lines[2].Error)
}

func TestBatch_Empty(t *testing.T) {
	_, err := execute(t, &mockResolver{}, "\n \n", "batch")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestAuthors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>By Jane Doe</p>"), 0o600))

	r := &mockResolver{}
	r.On("ExtractAuthors", "<p>By Jane Doe</p>").Return([]domain.Name{{First: "Jane", Last: "Doe"}})
	r.On("ExtractAuthors", "<p>nothing</p>").Return(nil)

	out, err := execute(t, r, "", "authors", path)
	require.NoError(t, err)

	var names []domain.Name
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []domain.Name{{First: "Jane", Last: "Doe"}}, names)

	out, err = execute(t, r, "<p>nothing</p>", "authors", "-")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestAuthors_MissingFile(t *testing.T) {
	_, err := execute(t, &mockResolver{}, "", "authors", filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}
