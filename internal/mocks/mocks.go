// Package mocks holds testify mocks of the ports interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// T is the subset of testing.TB the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t T) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

func partial(args mock.Arguments, i int) *domain.PartialRecord {
	if v := args.Get(i); v != nil {
		return v.(*domain.PartialRecord) //nolint:forcetypeassert // set by test
	}

	return nil
}

// MockISBNSource mocks ports.ISBNSource.
type MockISBNSource struct {
	mock.Mock
	name string
}

// NewMockISBNSource creates a mock that asserts its expectations at cleanup.
func NewMockISBNSource(t T, name string) *MockISBNSource {
	m := &MockISBNSource{name: name}
	register(&m.Mock, t)

	return m
}

// Name returns the source name given at construction.
func (m *MockISBNSource) Name() string { return m.name }

// LookupISBN records the call.
func (m *MockISBNSource) LookupISBN(ctx context.Context, isbn string) (*domain.PartialRecord, error) {
	args := m.Called(ctx, isbn)
	return partial(args, 0), args.Error(1)
}

// MockOCLCFinder mocks ports.OCLCFinder.
type MockOCLCFinder struct {
	mock.Mock
	name string
}

// NewMockOCLCFinder creates a mock that asserts its expectations at cleanup.
func NewMockOCLCFinder(t T, name string) *MockOCLCFinder {
	m := &MockOCLCFinder{name: name}
	register(&m.Mock, t)

	return m
}

// Name returns the source name given at construction.
func (m *MockOCLCFinder) Name() string { return m.name }

// FindOCLC records the call.
func (m *MockOCLCFinder) FindOCLC(ctx context.Context, isbn string) (string, error) {
	args := m.Called(ctx, isbn)
	return args.String(0), args.Error(1)
}

// MockOCLCSource mocks ports.OCLCSource.
type MockOCLCSource struct {
	mock.Mock
	name string
}

// NewMockOCLCSource creates a mock that asserts its expectations at cleanup.
func NewMockOCLCSource(t T, name string) *MockOCLCSource {
	m := &MockOCLCSource{name: name}
	register(&m.Mock, t)

	return m
}

// Name returns the source name given at construction.
func (m *MockOCLCSource) Name() string { return m.name }

// LookupOCLC records the call.
func (m *MockOCLCSource) LookupOCLC(ctx context.Context, oclc string) (*domain.PartialRecord, error) {
	args := m.Called(ctx, oclc)
	return partial(args, 0), args.Error(1)
}

// MockDOISource mocks ports.DOISource.
type MockDOISource struct {
	mock.Mock
	name string
}

// NewMockDOISource creates a mock that asserts its expectations at cleanup.
func NewMockDOISource(t T, name string) *MockDOISource {
	m := &MockDOISource{name: name}
	register(&m.Mock, t)

	return m
}

// Name returns the source name given at construction.
func (m *MockDOISource) Name() string { return m.name }

// LookupDOI records the call.
func (m *MockDOISource) LookupDOI(ctx context.Context, doi string) (*domain.PartialRecord, error) {
	args := m.Called(ctx, doi)
	return partial(args, 0), args.Error(1)
}

// MockPageSource mocks ports.PageSource.
type MockPageSource struct {
	mock.Mock
	name string
}

// NewMockPageSource creates a mock that asserts its expectations at cleanup.
func NewMockPageSource(t T, name string) *MockPageSource {
	m := &MockPageSource{name: name}
	register(&m.Mock, t)

	return m
}

// Name returns the source name given at construction.
func (m *MockPageSource) Name() string { return m.name }

// FetchPage records the call.
func (m *MockPageSource) FetchPage(ctx context.Context, url string) (*domain.Page, error) {
	args := m.Called(ctx, url)

	var page *domain.Page
	if v := args.Get(0); v != nil {
		page = v.(*domain.Page) //nolint:forcetypeassert // set by test
	}

	return page, args.Error(1)
}

// MockLanguageDetector mocks ports.LanguageDetector.
type MockLanguageDetector struct {
	mock.Mock
}

// NewMockLanguageDetector creates a mock that asserts its expectations at cleanup.
func NewMockLanguageDetector(t T) *MockLanguageDetector {
	m := &MockLanguageDetector{}
	register(&m.Mock, t)

	return m
}

// Detect records the call.
func (m *MockLanguageDetector) Detect(text string) []string {
	args := m.Called(text)

	if v := args.Get(0); v != nil {
		return v.([]string) //nolint:forcetypeassert // set by test
	}

	return nil
}
