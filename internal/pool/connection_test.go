package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oarkflow/smpp-engine/pkg/smpp"
)

func TestConnectionPoolReportsStats(t *testing.T) {
	config := DefaultPoolConfig()
	config.MaxConnections = 2

	p := NewConnectionPool(config, func(ctx context.Context) (*smpp.Client, error) {
		return nil, errors.New("factory unavailable in unit test")
	})

	stats := p.Stats()
	if stats.TotalConnections != 2 {
		t.Fatalf("expected TotalConnections=2, got %d", stats.TotalConnections)
	}
	if stats.ActiveConnections != 0 {
		t.Fatalf("expected ActiveConnections=0 before any Get, got %d", stats.ActiveConnections)
	}
}

func TestConnectionPoolGetFailurePropagatesAndReleasesSlot(t *testing.T) {
	config := DefaultPoolConfig()
	config.MaxConnections = 1
	wantErr := errors.New("dial refused")

	p := NewConnectionPool(config, func(ctx context.Context) (*smpp.Client, error) {
		return nil, wantErr
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := p.Get(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("expected factory error to propagate, got %v", err)
	}

	// the failed Get must have released its semaphore slot, so a
	// second Get should reach the factory rather than block.
	if _, err := p.Get(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("expected slot released after failed Get, got %v", err)
	}
}

func TestConnectionPoolGetAfterCloseFails(t *testing.T) {
	config := DefaultPoolConfig()
	p := NewConnectionPool(config, func(ctx context.Context) (*smpp.Client, error) {
		return nil, errors.New("unused")
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := p.Get(context.Background()); err == nil {
		t.Fatal("expected error getting from closed pool")
	}
}

func TestConnectionPoolGetContextCancelled(t *testing.T) {
	config := DefaultPoolConfig()
	config.MaxConnections = 1
	p := NewConnectionPool(config, func(ctx context.Context) (*smpp.Client, error) {
		return nil, errors.New("unused")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
