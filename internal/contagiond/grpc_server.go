package contagiond

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/config"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/logger"
)

// SweepGRPCServer implements SweepServiceServer on a RunStore and RunExecutor.
type SweepGRPCServer struct {
	store    *RunStore
	cfg      *config.Config
	Executor *RunExecutor
}

func NewSweepGRPCServer(runs *RunStore, executor *RunExecutor, cfg *config.Config) *SweepGRPCServer {
	return &SweepGRPCServer{
		store:    runs,
		cfg:      cfg,
		Executor: executor,
	}
}

func (s *SweepGRPCServer) CreateSweep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		SweepID string       `json:"sweep_id"`
		Start   bool         `json:"start"`
		Input   SweepRequest `json:"input"`
	}
	if in != nil {
		data, err := protojson.Marshal(in)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
		}
	}

	rec, err := createSweep(s.store, s.Executor, s.cfg, req.SweepID, req.Input, req.Start)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("sweep created", "sweep_id", rec.Sweep.ID, "start", req.Start)
	return sweepResponse(rec)
}

func (s *SweepGRPCServer) StartSweep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sweepID(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.Executor.Start(id)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("sweep started (executor)", "sweep_id", id)
	return sweepResponse(updated)
}

func (s *SweepGRPCServer) StopSweep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sweepID(in)
	if err != nil {
		return nil, err
	}
	updated, err := s.Executor.Stop(id)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("sweep cancelled", "sweep_id", id)
	return sweepResponse(updated)
}

func (s *SweepGRPCServer) GetSweep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sweepID(in)
	if err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(id)
	if !ok {
		return nil, status.Error(codes.NotFound, "sweep not found")
	}
	return sweepResponse(rec)
}

func (s *SweepGRPCServer) GetCurve(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	curve, err := s.Executor.Curve(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := structpb.NewStruct(map[string]any{"curve": convertCurveToJSON(curve)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func sweepID(in *structpb.Struct) (string, error) {
	id := in.GetFields()["sweep_id"].GetStringValue()
	if id == "" {
		return "", status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	return id, nil
}

func sweepResponse(rec SweepRecord) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{"sweep": convertSweepToJSON(rec)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound), errors.Is(err, store.ErrStoreMissing):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing), errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrStoreMalformed):
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
