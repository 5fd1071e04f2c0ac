// Package mocks holds testify mocks of the RPC client.
package mocks

import (
	context "context"

	ethereum "github.com/ethereum/go-ethereum"
	mock "github.com/stretchr/testify/mock"

	types "github.com/ethereum/go-ethereum/core/types"
)

// EthClient is a mock type for the EthClient type
type EthClient struct {
	mock.Mock
}

// BatchGetBlockHeaders provides a mock function with given fields: ctx, blockNums
func (_m *EthClient) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	ret := _m.Called(ctx, blockNums)

	if len(ret) == 0 {
		panic("no return value specified for BatchGetBlockHeaders")
	}

	var r0 []*types.Header
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []uint64) ([]*types.Header, error)); ok {
		return rf(ctx, blockNums)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []uint64) []*types.Header); ok {
		r0 = rf(ctx, blockNums)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]*types.Header)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, []uint64) error); ok {
		r1 = rf(ctx, blockNums)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Close provides a mock function with no fields
func (_m *EthClient) Close() {
	_m.Called()
}

// GetBlockHeader provides a mock function with given fields: ctx, blockNum
func (_m *EthClient) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	ret := _m.Called(ctx, blockNum)

	if len(ret) == 0 {
		panic("no return value specified for GetBlockHeader")
	}

	var r0 *types.Header
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, uint64) (*types.Header, error)); ok {
		return rf(ctx, blockNum)
	}
	if rf, ok := ret.Get(0).(func(context.Context, uint64) *types.Header); ok {
		r0 = rf(ctx, blockNum)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*types.Header)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, uint64) error); ok {
		r1 = rf(ctx, blockNum)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetFinalizedBlockHeader provides a mock function with given fields: ctx
func (_m *EthClient) GetFinalizedBlockHeader(ctx context.Context) (*types.Header, error) {
	return _m.header("GetFinalizedBlockHeader", ctx)
}

// GetLatestBlockHeader provides a mock function with given fields: ctx
func (_m *EthClient) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	return _m.header("GetLatestBlockHeader", ctx)
}

// GetSafeBlockHeader provides a mock function with given fields: ctx
func (_m *EthClient) GetSafeBlockHeader(ctx context.Context) (*types.Header, error) {
	return _m.header("GetSafeBlockHeader", ctx)
}

func (_m *EthClient) header(method string, ctx context.Context) (*types.Header, error) {
	ret := _m.MethodCalled(method, ctx)

	if len(ret) == 0 {
		panic("no return value specified for " + method)
	}

	var r0 *types.Header
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*types.Header, error)); ok {
		return rf(ctx)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*types.Header)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// GetLogs provides a mock function with given fields: ctx, query
func (_m *EthClient) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	ret := _m.Called(ctx, query)

	if len(ret) == 0 {
		panic("no return value specified for GetLogs")
	}

	var r0 []types.Log
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, ethereum.FilterQuery) ([]types.Log, error)); ok {
		return rf(ctx, query)
	}
	if rf, ok := ret.Get(0).(func(context.Context, ethereum.FilterQuery) []types.Log); ok {
		r0 = rf(ctx, query)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]types.Log)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, ethereum.FilterQuery) error); ok {
		r1 = rf(ctx, query)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewEthClient creates a new instance of EthClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewEthClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *EthClient {
	mock := &EthClient{}
	mock.Mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
