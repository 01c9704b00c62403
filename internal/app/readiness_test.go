package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-code-grader/internal/app"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestBuildReadinessChecks_NilAdaptersYieldNilChecks(t *testing.T) {
	dbCheck, redisCheck, kafkaCheck := app.BuildReadinessChecks(nil, nil, nil)
	if dbCheck != nil || redisCheck != nil || kafkaCheck != nil {
		t.Fatalf("expected all checks nil, got %v %v %v", dbCheck, redisCheck, kafkaCheck)
	}
}

func TestBuildReadinessChecks_PropagatesPingErrors(t *testing.T) {
	dbErr := errors.New("db down")
	kafkaErr := errors.New("broker down")
	dbCheck, _, kafkaCheck := app.BuildReadinessChecks(fakePinger{err: dbErr}, nil, fakePinger{err: kafkaErr})

	if !errors.Is(dbCheck(context.Background()), dbErr) {
		t.Fatalf("db check did not propagate error")
	}
	if !errors.Is(kafkaCheck(context.Background()), kafkaErr) {
		t.Fatalf("kafka check did not propagate error")
	}

	okCheck, _, _ := app.BuildReadinessChecks(fakePinger{}, nil, nil)
	if err := okCheck(context.Background()); err != nil {
		t.Fatalf("healthy db check returned %v", err)
	}
}

func TestBuildReadinessChecks_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	_, redisCheck, _ := app.BuildReadinessChecks(nil, rdb, nil)
	if redisCheck == nil {
		t.Fatalf("expected redis check")
	}
	if err := redisCheck(context.Background()); err != nil {
		t.Fatalf("redis check against live server: %v", err)
	}

	mr.Close()
	if err := redisCheck(context.Background()); err == nil {
		t.Fatalf("expected error after redis shutdown")
	}
}
