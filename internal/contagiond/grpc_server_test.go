package contagiond

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/contagion-core/internal/store"
	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

func startBufconnServer(t *testing.T, backend store.Backend) (*SweepServiceClient, *grpc.ClientConn, *RunStore, *RunExecutor) {
	t.Helper()
	runs, exec, cfg := newTestExecutor(backend)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSweepServiceServer(srv, NewSweepGRPCServer(runs, exec, cfg))
	hs := health.NewServer()
	hs.SetServingStatus(SweepServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		srv.Stop()
		exec.Shutdown()
	})
	return NewSweepServiceClient(conn), conn, runs, exec
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct error: %v", err)
	}
	return s
}

func sweepOf(t *testing.T, resp *structpb.Struct) map[string]any {
	t.Helper()
	sweep, ok := resp.AsMap()["sweep"].(map[string]any)
	if !ok {
		t.Fatalf("expected sweep in response, got %v", resp.AsMap())
	}
	return sweep
}

func TestGRPCServerLifecycle(t *testing.T) {
	client, _, runs, exec := startBufconnServer(t, store.NewMemoryBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := client.CreateSweep(ctx, mustStruct(t, map[string]any{
		"input": map[string]any{"iterations": 4, "densities": []any{0.5, 1.5}},
	}))
	if err != nil {
		t.Fatalf("CreateSweep error: %v", err)
	}
	sweep := sweepOf(t, created)
	id := sweep["id"].(string)
	if sweep["status"] != "pending" {
		t.Fatalf("expected pending, got %v", sweep["status"])
	}

	started, err := client.StartSweep(ctx, mustStruct(t, map[string]any{"sweep_id": id}))
	if err != nil {
		t.Fatalf("StartSweep error: %v", err)
	}
	if sweepOf(t, started)["status"] != "running" {
		t.Fatalf("expected running")
	}

	waitForStatus(t, runs, id, models.RunStatusCompleted)
	exec.Wait()

	got, err := client.GetSweep(ctx, mustStruct(t, map[string]any{"sweep_id": id}))
	if err != nil {
		t.Fatalf("GetSweep error: %v", err)
	}
	if points := sweepOf(t, got)["points"].([]any); len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	curveResp, err := client.GetCurve(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("GetCurve error: %v", err)
	}
	curve := curveResp.AsMap()["curve"].(map[string]any)
	if _, ok := curve["0.5"]; !ok {
		t.Fatalf("expected key 0.5 in curve %v", curve)
	}
	if _, ok := curve["1.5"]; !ok {
		t.Fatalf("expected key 1.5 in curve %v", curve)
	}
}

func TestGRPCServerLargeSeedReplays(t *testing.T) {
	client, _, runs, exec := startBufconnServer(t, store.NewMemoryBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const seed = "1760857213235118937"
	run := func(seedValue any) (string, map[string]any) {
		created, err := client.CreateSweep(ctx, mustStruct(t, map[string]any{
			"start": true,
			"input": map[string]any{"iterations": 3, "densities": []any{1.0, 2.0}, "seed": seedValue, "persist": false},
		}))
		if err != nil {
			t.Fatalf("CreateSweep error: %v", err)
		}
		id := sweepOf(t, created)["id"].(string)
		waitForStatus(t, runs, id, models.RunStatusCompleted)
		exec.Wait()
		got, err := client.GetSweep(ctx, mustStruct(t, map[string]any{"sweep_id": id}))
		if err != nil {
			t.Fatalf("GetSweep error: %v", err)
		}
		return id, sweepOf(t, got)
	}

	firstID, first := run(seed)
	if first["seed"] != seed {
		t.Fatalf("reported seed %v, want %s", first["seed"], seed)
	}
	rec, _ := runs.Get(firstID)
	if rec.Sweep.Seed != 1760857213235118937 {
		t.Fatalf("executor used seed %d", rec.Sweep.Seed)
	}

	replayID, _ := run(first["seed"])
	a, _ := runs.Get(firstID)
	b, _ := runs.Get(replayID)
	for i := range a.Result.Points {
		if a.Result.Points[i] != b.Result.Points[i] {
			t.Fatalf("replay diverged at point %d: %+v vs %+v", i, a.Result.Points[i], b.Result.Points[i])
		}
	}

	_, err := client.CreateSweep(ctx, mustStruct(t, map[string]any{
		"input": map[string]any{"seed": 1.76e18},
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an inexact numeric seed, got %v", err)
	}
}

func TestGRPCServerErrors(t *testing.T) {
	client, _, runs, _ := startBufconnServer(t, store.NewMissingMemoryBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.GetSweep(ctx, &structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	_, err = client.StartSweep(ctx, mustStruct(t, map[string]any{"sweep_id": "missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	_, err = client.CreateSweep(ctx, mustStruct(t, map[string]any{"input": map[string]any{"threshold": 2}}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	_, err = client.GetCurve(ctx, &structpb.Struct{})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for missing store, got %v", err)
	}

	_, _ = runs.Create("done", SweepRequest{})
	_, _ = runs.SetStatus("done", models.RunStatusCompleted, "")
	_, err = client.StopSweep(ctx, mustStruct(t, map[string]any{"sweep_id": "done"}))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
	_, err = client.CreateSweep(ctx, mustStruct(t, map[string]any{"sweep_id": "done"}))
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestGRPCServerStopRunning(t *testing.T) {
	client, _, _, exec := startBufconnServer(t, store.NewMemoryBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := client.CreateSweep(ctx, mustStruct(t, map[string]any{
		"start": true,
		"input": map[string]any{"population": 300, "iterations": 50000, "densities": []any{1.0, 2.0}},
	}))
	if err != nil {
		t.Fatalf("CreateSweep error: %v", err)
	}
	id := sweepOf(t, created)["id"].(string)

	stopped, err := client.StopSweep(ctx, mustStruct(t, map[string]any{"sweep_id": id}))
	if err != nil {
		t.Fatalf("StopSweep error: %v", err)
	}
	if sweepOf(t, stopped)["status"] != "cancelled" {
		t.Fatalf("expected cancelled")
	}
	exec.Wait()
}

func TestGRPCHealth(t *testing.T) {
	_, conn, _, _ := startBufconnServer(t, store.NewMemoryBackend())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: SweepServiceName})
	if err != nil {
		t.Fatalf("health check error: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.Status)
	}
}
