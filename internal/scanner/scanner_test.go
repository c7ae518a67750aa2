package scanner

import (
	"context"
	"strings"
	"testing"

	"MemeFarm/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.Candidate, error) {
	return []domain.Candidate{{ID: s.name}}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: "reddit-html"})
	reg.Register(stubScanner{name: "reddit-api"})

	sc, err := reg.Resolve("reddit-api")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ := sc.Scan(context.Background(), Request{})
	if got[0].ID != "reddit-api" {
		t.Fatalf("resolved wrong scanner: %v", got)
	}

	if names := reg.Names(); strings.Join(names, ",") != "reddit-api,reddit-html" {
		t.Fatalf("unexpected names: %v", names)
	}

	_, err = reg.Resolve("twitter")
	if err == nil || !strings.Contains(err.Error(), "twitter") {
		t.Fatalf("expected unknown scanner error, got %v", err)
	}
}

func TestZeroRegistryRegister(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubScanner{name: "x"})
	if _, err := reg.Resolve("x"); err != nil {
		t.Fatalf("resolve after zero-value register: %v", err)
	}
}
