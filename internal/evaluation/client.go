package evaluation

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/stopper/internal/stopper"
)

// #region client-struct
// Client asks a remote validation worker for the metric of an epoch.
// It implements stopper.Evaluator.
type Client struct {
	conn   *grpc.ClientConn
	client EvaluationServiceClient
	metric string
}

// #endregion client-struct

// #region constructor
// NewClient connects to the evaluation service at addr. Connection is lazy;
// an unreachable address surfaces on the first Evaluate call.
func NewClient(addr, metric string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewEvaluationServiceClient(conn),
		metric: metric,
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc EvaluationServiceClient, metric string) *Client {
	return &Client{client: svc, metric: metric}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region evaluate
// Evaluate requests the metric value for epoch. RPC failures and malformed
// responses wrap stopper.ErrEvaluationUnavailable.
func (c *Client) Evaluate(ctx context.Context, epoch int) (float64, error) {
	req, err := structpb.NewStruct(map[string]any{
		fieldEpoch:  epoch,
		fieldMetric: c.metric,
	})
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Evaluate(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("%w: evaluate rpc: %w", stopper.ErrEvaluationUnavailable, err)
	}

	field, ok := resp.GetFields()[fieldValue]
	if !ok {
		return 0, fmt.Errorf("%w: response has no %q field", stopper.ErrEvaluationUnavailable, fieldValue)
	}
	number, ok := field.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a number: %v", stopper.ErrEvaluationUnavailable, fieldValue, field.AsInterface())
	}
	return number.NumberValue, nil
}

// #endregion evaluate
