//go:build !integration

package usecase_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/adapter"
	"trailroom-billing/internal/usecase"
)

var pngB64 = base64.StdEncoding.EncodeToString(pngBytes)

type tryOnFixture struct {
	accounts  *MockAccountRepo
	ledger    *MockLedgerRepo
	jobs      *MockTryOnJobRepo
	generator *MockGenerator
	queue     *MockQueue
	events    *MockPublisher
	uc        usecase.TryOnUseCase
}

func newTryOnFixture() *tryOnFixture {
	f := &tryOnFixture{
		accounts:  NewMockAccountRepo(),
		ledger:    NewMockLedgerRepo(),
		jobs:      NewMockTryOnJobRepo(),
		generator: &MockGenerator{},
		queue:     &MockQueue{},
		events:    &MockPublisher{},
	}
	logger := newTestLogger()
	credits := usecase.NewCreditUseCase(f.accounts, f.ledger, NewMockTxManager(), f.events, usecase.CreditOptions{BackoffBase: time.Microsecond}, logger)
	f.uc = usecase.NewTryOnUseCase(f.jobs, credits, f.generator, f.queue, f.events, usecase.TryOnOptions{CreditCost: 1, Timeout: time.Second}, logger)
	return f
}

func TestTryOnUseCase_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a valid job", func(t *testing.T) {
		// Arrange
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 3)

		// Act
		job, err := f.uc.Submit(ctx, "acc-1", usecase.TryOnSubmission{
			Mode:          model.TryOnModeTop,
			PersonImage:   "data:image/png;base64," + pngB64,
			ClothingImage: pngB64,
		})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.Status != model.JobStatusQueued || len(f.queue.IDs) != 1 || f.queue.IDs[0] != job.ID {
			t.Fatalf("unexpected job %+v / queue %v", job, f.queue.IDs)
		}
		stored, _ := f.jobs.FindForWork(ctx, nil, job.ID)
		if stored.PersonImage != pngB64 {
			t.Error("data-URL prefix should be stripped")
		}
		if f.accounts.credits("acc-1") != 3 {
			t.Error("submit must not charge credits")
		}
	})

	t.Run("validation", func(t *testing.T) {
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 3)
		notImage := base64.StdEncoding.EncodeToString([]byte("hello, plain text"))

		cases := []usecase.TryOnSubmission{
			{Mode: "side", PersonImage: pngB64, ClothingImage: pngB64},
			{Mode: model.TryOnModeTop, PersonImage: "", ClothingImage: pngB64},
			{Mode: model.TryOnModeTop, PersonImage: "%%%not-base64", ClothingImage: pngB64},
			{Mode: model.TryOnModeTop, PersonImage: pngB64, ClothingImage: notImage},
			{Mode: model.TryOnModeFull, PersonImage: pngB64, ClothingImage: pngB64, BottomImage: notImage},
		}
		for i, c := range cases {
			if _, err := f.uc.Submit(ctx, "acc-1", c); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("case %d: expected ErrInvalidArgument, got %v", i, err)
			}
		}
		if len(f.queue.IDs) != 0 {
			t.Error("invalid submissions must not be queued")
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 0)

		_, err := f.uc.Submit(ctx, "acc-1", usecase.TryOnSubmission{Mode: model.TryOnModeTop, PersonImage: pngB64, ClothingImage: pngB64})

		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
	})

	t.Run("full queue fails the job", func(t *testing.T) {
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 3)
		f.queue.Err = domain.ErrQueueFull

		_, err := f.uc.Submit(ctx, "acc-1", usecase.TryOnSubmission{Mode: model.TryOnModeTop, PersonImage: pngB64, ClothingImage: pngB64})

		if !errors.Is(err, domain.ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
		jobs, _ := f.jobs.ListByAccount(ctx, nil, "acc-1", 10, 0)
		if len(jobs) != 1 || jobs[0].Status != model.JobStatusFailed {
			t.Fatalf("expected one failed job, got %+v", jobs)
		}
	})
}

func TestTryOnUseCase_Process(t *testing.T) {
	ctx := context.Background()
	submit := func(t *testing.T, f *tryOnFixture, mode model.TryOnMode) *model.TryOnJob {
		t.Helper()
		req := usecase.TryOnSubmission{Mode: mode, PersonImage: pngB64, ClothingImage: pngB64}
		if mode == model.TryOnModeFull {
			req.BottomImage = pngB64
		}
		job, err := f.uc.Submit(ctx, "acc-1", req)
		if err != nil {
			t.Fatal(err)
		}
		return job
	}

	t.Run("completes and charges once", func(t *testing.T) {
		// Arrange
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 3)
		job := submit(t, f, model.TryOnModeFull)
		var seen adapter.TryOnRequest
		f.generator.GenerateFunc = func(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
			seen = req
			return adapter.Image{Data: []byte("result"), MIMEType: "image/png"}, nil
		}

		// Act
		err1 := f.uc.Process(ctx, job.ID)
		err2 := f.uc.Process(ctx, job.ID)

		// Assert
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if seen.Mode != "full" || seen.Bottom == nil || seen.Person.MIMEType != "image/png" {
			t.Errorf("unexpected generator request %+v", seen)
		}
		got, _ := f.uc.Get(ctx, "acc-1", job.ID)
		if got.Status != model.JobStatusCompleted || got.CreditsUsed != 1 || got.CompletedAt == nil {
			t.Fatalf("unexpected job %+v", got)
		}
		if got.ResultImage != base64.StdEncoding.EncodeToString([]byte("result")) {
			t.Error("result image not stored as base64")
		}
		if got.PersonImage != "" {
			t.Error("input images must be dropped once finished")
		}
		if f.accounts.credits("acc-1") != 2 {
			t.Fatalf("expected one credit charged, balance %d", f.accounts.credits("acc-1"))
		}
		entries := f.ledger.forAccount("acc-1")
		if len(entries) != 1 || entries[0].Description != "Try-on generation (full mode)" || *entries[0].ReferenceID != job.ID {
			t.Errorf("unexpected ledger %+v", entries)
		}
		if len(f.events.of(model.EventTryOnCompleted)) != 1 {
			t.Error("expected tryon.completed event")
		}
	})

	t.Run("generator failure charges nothing", func(t *testing.T) {
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 3)
		job := submit(t, f, model.TryOnModeTop)
		f.generator.GenerateFunc = func(ctx context.Context, req adapter.TryOnRequest) (adapter.Image, error) {
			return adapter.Image{}, errors.New("model overloaded")
		}

		if err := f.uc.Process(ctx, job.ID); err != nil {
			t.Fatal(err)
		}

		got, _ := f.uc.Get(ctx, "acc-1", job.ID)
		if got.Status != model.JobStatusFailed || got.ErrorMessage != "model overloaded" {
			t.Fatalf("unexpected job %+v", got)
		}
		if f.accounts.credits("acc-1") != 3 {
			t.Error("failed generation must not charge")
		}
		if len(f.events.of(model.EventTryOnFailed)) != 1 {
			t.Error("expected tryon.failed event")
		}
	})

	t.Run("balance spent meanwhile fails the job", func(t *testing.T) {
		f := newTryOnFixture()
		f.accounts.seed("acc-1", 1)
		job := submit(t, f, model.TryOnModeTop)
		f.accounts.seed("acc-1", 0)

		if err := f.uc.Process(ctx, job.ID); err != nil {
			t.Fatal(err)
		}

		got, _ := f.uc.Get(ctx, "acc-1", job.ID)
		if got.Status != model.JobStatusFailed || got.ErrorMessage != "Insufficient credits" {
			t.Fatalf("unexpected job %+v", got)
		}
	})
}

func TestTryOnUseCase_Recover(t *testing.T) {
	ctx := context.Background()
	f := newTryOnFixture()
	now := time.Now()
	for id, st := range map[string]model.JobStatus{
		"a": model.JobStatusQueued,
		"b": model.JobStatusProcessing,
		"c": model.JobStatusCompleted,
	} {
		_ = f.jobs.Save(ctx, nil, &model.TryOnJob{ID: id, AccountID: "acc-1", Mode: model.TryOnModeTop, Status: st, CreatedAt: now})
	}

	ids, err := f.uc.Recover(ctx, 100)

	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected [a b], got %v", ids)
	}
}

func TestTryOnUseCase_QueuedBefore(t *testing.T) {
	ctx := context.Background()
	f := newTryOnFixture()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for id, at := range map[string]time.Time{
		"old":   base.Add(-10 * time.Minute),
		"older": base.Add(-20 * time.Minute),
		"fresh": base.Add(-10 * time.Second),
	} {
		_ = f.jobs.Save(ctx, nil, &model.TryOnJob{ID: id, AccountID: "acc-1", Mode: model.TryOnModeTop, Status: model.JobStatusQueued, CreatedAt: at})
	}

	ids, err := f.uc.QueuedBefore(ctx, base.Add(-time.Minute), 1)

	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expected one job queued before the cutoff, got %v", ids)
	}
}
