package server

import (
	"context"
	"errors"
	"testing"

	"github.com/blockberries/govledger"
	"github.com/blockberries/govledger/types"
)

// testApp is a minimal lifecycle used to avoid an import cycle with
// the app and ledgertest packages.
type testApp struct {
	caps           types.Capabilities
	handshakeCalls int
	executeErr     error
	commitErr      error
	commits        int
}

var (
	_ govledger.Lifecycle = (*testApp)(nil)
	_ govledger.Simulator = (*testApp)(nil)
)

func (a *testApp) Handshake(_ context.Context, _ types.HandshakeRequest) (types.HandshakeResponse, error) {
	a.handshakeCalls++
	return types.HandshakeResponse{Capabilities: a.caps}, nil
}

func (a *testApp) CheckTx(_ context.Context, _ types.Tx, _ types.MempoolContext) (types.GateVerdict, error) {
	return types.GateVerdict{Code: 0}, nil
}

func (a *testApp) ExecuteBlock(_ context.Context, block types.FinalizedBlock) (types.BlockOutcome, error) {
	if a.executeErr != nil {
		return types.BlockOutcome{}, a.executeErr
	}
	outcomes := make([]types.TxOutcome, len(block.Txs))
	for i := range block.Txs {
		outcomes[i] = types.TxOutcome{Index: uint32(i), Code: 0}
	}
	return types.BlockOutcome{
		TxOutcomes: outcomes,
		AppHash:    types.AppHash{0x01},
	}, nil
}

func (a *testApp) Commit(_ context.Context) (types.CommitResult, error) {
	if a.commitErr != nil {
		return types.CommitResult{}, a.commitErr
	}
	a.commits++
	return types.CommitResult{}, nil
}

func (a *testApp) Query(_ context.Context, _ types.StateQuery) (types.StateQueryResult, error) {
	return types.StateQueryResult{}, nil
}

func (a *testApp) Simulate(_ context.Context, _ types.Tx) (types.TxOutcome, error) {
	return types.TxOutcome{Code: 0}, nil
}

// plainApp implements only the lifecycle.
type plainApp struct{ testApp }

func (a *plainApp) Simulate() {}

func handshake(t *testing.T, srv *Server) {
	t.Helper()
	_, err := srv.Handshake(context.Background(), types.HandshakeRequest{
		Genesis: &types.GenesisDoc{ChainID: "test"},
	})
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
}

func TestServer_Handshake_Genesis(t *testing.T) {
	app := &testApp{}
	srv := New(app)

	resp, err := srv.Handshake(context.Background(), types.HandshakeRequest{
		Genesis: &types.GenesisDoc{ChainID: "test"},
	})
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if resp.Capabilities != 0 {
		t.Errorf("expected no capabilities, got %s", resp.Capabilities)
	}
	if app.handshakeCalls != 1 {
		t.Errorf("expected 1 handshake call, got %d", app.handshakeCalls)
	}

	_, err = srv.Handshake(context.Background(), types.HandshakeRequest{})
	if !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder on second handshake, got %v", err)
	}
	if app.handshakeCalls != 1 {
		t.Errorf("second handshake reached the app")
	}
}

func TestServer_Handshake_UndeclaredCapability(t *testing.T) {
	srv := New(&plainApp{testApp{caps: types.CapSimulation}})

	_, err := srv.Handshake(context.Background(), types.HandshakeRequest{})
	if err == nil {
		t.Fatal("expected error for undeclarable capability")
	}
	if srv.State() != "Init" {
		t.Errorf("expected Init after failed handshake, got %s", srv.State())
	}
}

func TestServer_CallsBeforeHandshake(t *testing.T) {
	srv := New(&testApp{caps: types.CapSimulation})
	ctx := context.Background()

	if _, err := srv.CheckTx(ctx, types.Tx{0x01}, types.MempoolFirstSeen); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("CheckTx: expected ErrOutOfOrder, got %v", err)
	}
	if _, err := srv.Query(ctx, types.StateQuery{}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Query: expected ErrOutOfOrder, got %v", err)
	}
	if _, err := srv.Simulate(ctx, types.Tx{0x01}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Simulate: expected ErrOutOfOrder, got %v", err)
	}
	if _, err := srv.ExecuteBlock(ctx, types.FinalizedBlock{Height: 1}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("ExecuteBlock: expected ErrOutOfOrder, got %v", err)
	}
}

func TestServer_ExecuteCommitCycle(t *testing.T) {
	app := &testApp{}
	srv := New(app)
	handshake(t, srv)

	block := types.FinalizedBlock{
		Height: 1,
		Txs:    []types.Tx{{0x01}},
	}

	outcome, err := srv.ExecuteBlock(context.Background(), block)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if len(outcome.TxOutcomes) != 1 {
		t.Errorf("expected 1 tx outcome, got %d", len(outcome.TxOutcomes))
	}
	if srv.LastOutcome() == nil {
		t.Error("expected non-nil LastOutcome between execute and commit")
	}

	if _, err := srv.ExecuteBlock(context.Background(), block); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder for execute before commit, got %v", err)
	}

	if _, err := srv.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if srv.LastOutcome() != nil {
		t.Error("expected nil LastOutcome after commit")
	}
	if _, err := srv.Commit(context.Background()); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder for second commit, got %v", err)
	}
}

func TestServer_ExecuteHalt(t *testing.T) {
	app := &testApp{executeErr: govledger.NewHaltError(3, "height gap")}
	srv := New(app)
	handshake(t, srv)

	_, err := srv.ExecuteBlock(context.Background(), types.FinalizedBlock{Height: 3})
	if _, ok := govledger.IsHalt(err); !ok {
		t.Fatalf("expected HaltError, got %v", err)
	}
	if srv.State() != "Ready" {
		t.Errorf("expected Ready after failed execute, got %s", srv.State())
	}
}

func TestServer_CommitRetry(t *testing.T) {
	app := &testApp{commitErr: errors.New("disk full")}
	srv := New(app)
	handshake(t, srv)

	if _, err := srv.ExecuteBlock(context.Background(), types.FinalizedBlock{Height: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Commit(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}
	if srv.LastOutcome() == nil {
		t.Error("expected pending outcome to survive a failed commit")
	}

	app.commitErr = nil
	if _, err := srv.Commit(context.Background()); err != nil {
		t.Fatalf("retry commit: %v", err)
	}
	if app.commits != 1 {
		t.Errorf("expected 1 commit, got %d", app.commits)
	}
}

func TestServer_CheckTxConcurrent(t *testing.T) {
	srv := New(&testApp{})
	handshake(t, srv)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, err := srv.CheckTx(context.Background(), types.Tx{0x01}, types.MempoolFirstSeen)
			if err != nil {
				t.Errorf("CheckTx error: %v", err)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestServer_CapabilityGating(t *testing.T) {
	srv := New(&testApp{})
	handshake(t, srv)

	if srv.AsSimulator() != nil {
		t.Error("expected nil Simulator when not declared")
	}

	srv = New(&testApp{caps: types.CapSimulation})
	handshake(t, srv)
	sim := srv.AsSimulator()
	if sim == nil {
		t.Fatal("expected non-nil Simulator")
	}
	if _, err := sim.Simulate(context.Background(), types.Tx{0x01}); err != nil {
		t.Errorf("simulate: %v", err)
	}
}
