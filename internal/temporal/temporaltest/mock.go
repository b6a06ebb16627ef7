// Package temporaltest provides a testify double for the engine's WorkflowService.
package temporaltest

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/grpc"
)

// MockWorkflowService records every RPC the gateway issues. Methods that are
// not overridden fall through to the nil embedded client and panic, which
// surfaces unexpected calls.
type MockWorkflowService struct {
	workflowservice.WorkflowServiceClient
	mock.Mock
}

var _ workflowservice.WorkflowServiceClient = (*MockWorkflowService)(nil)

func result[T any](args mock.Arguments) (T, error) {
	v, _ := args.Get(0).(T)
	return v, args.Error(1)
}

func (m *MockWorkflowService) DescribeNamespace(ctx context.Context, in *workflowservice.DescribeNamespaceRequest, _ ...grpc.CallOption) (*workflowservice.DescribeNamespaceResponse, error) {
	return result[*workflowservice.DescribeNamespaceResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) ListNamespaces(ctx context.Context, in *workflowservice.ListNamespacesRequest, _ ...grpc.CallOption) (*workflowservice.ListNamespacesResponse, error) {
	return result[*workflowservice.ListNamespacesResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) DescribeTaskQueue(ctx context.Context, in *workflowservice.DescribeTaskQueueRequest, _ ...grpc.CallOption) (*workflowservice.DescribeTaskQueueResponse, error) {
	return result[*workflowservice.DescribeTaskQueueResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) GetClusterInfo(ctx context.Context, in *workflowservice.GetClusterInfoRequest, _ ...grpc.CallOption) (*workflowservice.GetClusterInfoResponse, error) {
	return result[*workflowservice.GetClusterInfoResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) DescribeWorkflowExecution(ctx context.Context, in *workflowservice.DescribeWorkflowExecutionRequest, _ ...grpc.CallOption) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	return result[*workflowservice.DescribeWorkflowExecutionResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) ListOpenWorkflowExecutions(ctx context.Context, in *workflowservice.ListOpenWorkflowExecutionsRequest, _ ...grpc.CallOption) (*workflowservice.ListOpenWorkflowExecutionsResponse, error) {
	return result[*workflowservice.ListOpenWorkflowExecutionsResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) ListClosedWorkflowExecutions(ctx context.Context, in *workflowservice.ListClosedWorkflowExecutionsRequest, _ ...grpc.CallOption) (*workflowservice.ListClosedWorkflowExecutionsResponse, error) {
	return result[*workflowservice.ListClosedWorkflowExecutionsResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) ListWorkflowExecutions(ctx context.Context, in *workflowservice.ListWorkflowExecutionsRequest, _ ...grpc.CallOption) (*workflowservice.ListWorkflowExecutionsResponse, error) {
	return result[*workflowservice.ListWorkflowExecutionsResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) ListArchivedWorkflowExecutions(ctx context.Context, in *workflowservice.ListArchivedWorkflowExecutionsRequest, _ ...grpc.CallOption) (*workflowservice.ListArchivedWorkflowExecutionsResponse, error) {
	return result[*workflowservice.ListArchivedWorkflowExecutionsResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) GetWorkflowExecutionHistory(ctx context.Context, in *workflowservice.GetWorkflowExecutionHistoryRequest, _ ...grpc.CallOption) (*workflowservice.GetWorkflowExecutionHistoryResponse, error) {
	return result[*workflowservice.GetWorkflowExecutionHistoryResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) QueryWorkflow(ctx context.Context, in *workflowservice.QueryWorkflowRequest, _ ...grpc.CallOption) (*workflowservice.QueryWorkflowResponse, error) {
	return result[*workflowservice.QueryWorkflowResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) SignalWorkflowExecution(ctx context.Context, in *workflowservice.SignalWorkflowExecutionRequest, _ ...grpc.CallOption) (*workflowservice.SignalWorkflowExecutionResponse, error) {
	return result[*workflowservice.SignalWorkflowExecutionResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) TerminateWorkflowExecution(ctx context.Context, in *workflowservice.TerminateWorkflowExecutionRequest, _ ...grpc.CallOption) (*workflowservice.TerminateWorkflowExecutionResponse, error) {
	return result[*workflowservice.TerminateWorkflowExecutionResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) ResetWorkflowExecution(ctx context.Context, in *workflowservice.ResetWorkflowExecutionRequest, _ ...grpc.CallOption) (*workflowservice.ResetWorkflowExecutionResponse, error) {
	return result[*workflowservice.ResetWorkflowExecutionResponse](m.Called(ctx, in))
}

func (m *MockWorkflowService) StartWorkflowExecution(ctx context.Context, in *workflowservice.StartWorkflowExecutionRequest, _ ...grpc.CallOption) (*workflowservice.StartWorkflowExecutionResponse, error) {
	return result[*workflowservice.StartWorkflowExecutionResponse](m.Called(ctx, in))
}

// Requests returns the request arguments recorded for method, in call order.
func (m *MockWorkflowService) Requests(method string) []any {
	var out []any
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c.Arguments.Get(1))
		}
	}
	return out
}
