package evaluation

import (
	"context"
	"math"
	"net"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/stopper/internal/stopper"
)

// #region server
// Server exposes a stopper.Evaluator over the evaluation service, so a
// validation worker can feed metrics to a trainer in another process.
type Server struct {
	UnimplementedEvaluationServiceServer

	evaluator stopper.Evaluator
	metric    string
	logger    logr.Logger
}

// NewServer wraps evaluator. Requests naming a different metric are rejected.
func NewServer(evaluator stopper.Evaluator, metric string, logger logr.Logger) *Server {
	return &Server{evaluator: evaluator, metric: metric, logger: logger}
}

// Evaluate implements EvaluationServiceServer.
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	epochField, ok := fields[fieldEpoch].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "request needs a numeric %q", fieldEpoch)
	}
	epoch := int(epochField.NumberValue)
	if float64(epoch) != epochField.NumberValue {
		return nil, status.Errorf(codes.InvalidArgument, "epoch %v is not an integer", epochField.NumberValue)
	}
	if metric := fields[fieldMetric].GetStringValue(); metric != "" && metric != s.metric {
		return nil, status.Errorf(codes.InvalidArgument, "serving %q, not %q", s.metric, metric)
	}

	value, err := s.evaluator.Evaluate(ctx, epoch)
	if err != nil {
		s.logger.Error(err, "Evaluation failed", "epoch", epoch)
		return nil, status.Errorf(codes.Unavailable, "evaluate epoch %d: %v", epoch, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, status.Errorf(codes.Unavailable, "epoch %d produced non-finite %s", epoch, s.metric)
	}

	s.logger.V(1).Info("Served evaluation", "epoch", epoch, "metric", s.metric, "value", value)
	return structpb.NewStruct(map[string]any{
		fieldValue:  value,
		fieldMetric: s.metric,
	})
}

// #endregion server

// #region serve
// Serve registers s on a new gRPC server and blocks serving lis until ctx is
// cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	RegisterEvaluationServiceServer(gs, s)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	s.logger.Info("Serving evaluations", "addr", lis.Addr().String(), "metric", s.metric)
	if err := gs.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// #endregion serve
