// Package mocks provides test doubles for the lever client.
package mocks

import (
	"context"

	lever "github.com/sells-group/talent-sync/pkg/lever"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// ListOpportunities provides a mock function with given fields: ctx, postingID, cursor
func (_m *MockClient) ListOpportunities(ctx context.Context, postingID string, cursor string) (*lever.ListResponse, error) {
	ret := _m.Called(ctx, postingID, cursor)

	if len(ret) == 0 {
		panic("no return value specified for ListOpportunities")
	}

	var r0 *lever.ListResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*lever.ListResponse, error)); ok {
		return rf(ctx, postingID, cursor)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*lever.ListResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// GetOpportunity provides a mock function with given fields: ctx, id
func (_m *MockClient) GetOpportunity(ctx context.Context, id string) (*lever.Opportunity, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetOpportunity")
	}

	var r0 *lever.Opportunity
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*lever.Opportunity, error)); ok {
		return rf(ctx, id)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*lever.Opportunity)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// FindPosting provides a mock function with given fields: ctx, title
func (_m *MockClient) FindPosting(ctx context.Context, title string) (*lever.Posting, error) {
	ret := _m.Called(ctx, title)

	if len(ret) == 0 {
		panic("no return value specified for FindPosting")
	}

	var r0 *lever.Posting
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*lever.Posting, error)); ok {
		return rf(ctx, title)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*lever.Posting)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
