// Package mocks provides test doubles for the sheets client.
package mocks

import (
	"context"

	sheets "github.com/sells-group/talent-sync/pkg/sheets"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// ReadValues provides a mock function with given fields: ctx, spreadsheetID, rng
func (_m *MockClient) ReadValues(ctx context.Context, spreadsheetID string, rng string) ([][]string, error) {
	ret := _m.Called(ctx, spreadsheetID, rng)

	if len(ret) == 0 {
		panic("no return value specified for ReadValues")
	}

	var r0 [][]string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) ([][]string, error)); ok {
		return rf(ctx, spreadsheetID, rng)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([][]string)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// AppendValues provides a mock function with given fields: ctx, spreadsheetID, rng, rows
func (_m *MockClient) AppendValues(ctx context.Context, spreadsheetID string, rng string, rows [][]string) (*sheets.AppendResponse, error) {
	ret := _m.Called(ctx, spreadsheetID, rng, rows)

	if len(ret) == 0 {
		panic("no return value specified for AppendValues")
	}

	var r0 *sheets.AppendResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, [][]string) (*sheets.AppendResponse, error)); ok {
		return rf(ctx, spreadsheetID, rng, rows)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*sheets.AppendResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}
