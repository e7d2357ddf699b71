package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/toeverything/edge-workers/internal/edge/edgectx"
)

func TestBoundary_Error(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Boundary(HandlerFunc(func(ctx *fasthttp.RequestCtx) error {
		ctx.SetBodyString("partial")
		return errors.New("upstream exploded")
	}), zap.New(core), BoundaryOptions{})

	ctx := newCtx("GET", "h.test", "/x")
	h(ctx)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":false,"message":"upstream exploded"}`, string(ctx.Response.Body()))
	assert.Equal(t, 1, logs.FilterMessage("Unhandled request error").Len())
}

func TestBoundary_Panic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	var completed int
	h := Boundary(HandlerFunc(func(*fasthttp.RequestCtx) error {
		panic("nil map write")
	}), zap.New(core), BoundaryOptions{
		OnComplete: func(_ *edgectx.RequestContext, status int) { completed = status },
	})

	ctx := newCtx("GET", "h.test", "/x")
	assert.NotPanics(t, func() { h(ctx) })

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":false,"message":"nil map write"}`, string(ctx.Response.Body()))
	assert.Equal(t, 1, logs.FilterMessage("Handler panicked").Len())
	assert.Equal(t, fasthttp.StatusInternalServerError, completed)
}

func TestBoundary_RequestContext(t *testing.T) {
	var seen *edgectx.RequestContext
	var completed *edgectx.RequestContext
	h := Boundary(HandlerFunc(func(ctx *fasthttp.RequestCtx) error {
		seen = edgectx.From(ctx)
		seen.WithHandler("probe")
		return nil
	}), zap.NewNop(), BoundaryOptions{
		ClientIPHeaders: []string{"X-Real-IP"},
		OnComplete:      func(rc *edgectx.RequestContext, _ int) { completed = rc },
	})

	ctx := newCtx("GET", "h.test", "/x")
	ctx.Request.Header.Set("X-Request-ID", "abc")
	ctx.Request.Header.Set("X-Real-IP", "198.51.100.4")
	h(ctx)

	require.NotNil(t, seen)
	assert.Regexp(t, `^[a-f0-9]{5}-abc$`, seen.RequestID)
	assert.Equal(t, seen.RequestID, string(ctx.Response.Header.Peek("X-Request-ID")))
	assert.Equal(t, "198.51.100.4", seen.ClientIP)
	assert.NotNil(t, seen.Logger)
	assert.Same(t, seen, completed)
	assert.Equal(t, "probe", completed.Handler)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestBoundary_WrapsTable(t *testing.T) {
	table := NewBuilder().Build()
	h := Boundary(table, nil, BoundaryOptions{})

	ctx := newCtx("GET", "nowhere.test", "/")
	h(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestBoundary_FinishCancelsOutboundContexts(t *testing.T) {
	var (
		outbound context.Context
		release  context.CancelFunc
	)
	h := Boundary(HandlerFunc(func(ctx *fasthttp.RequestCtx) error {
		outbound, release = edgectx.From(ctx).Context()
		if err := outbound.Err(); err != nil {
			return err
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return nil
	}), zap.NewNop(), BoundaryOptions{})

	h(newCtx("GET", "h.test", "/x"))

	require.NotNil(t, outbound)
	defer release()
	assert.ErrorIs(t, outbound.Err(), context.Canceled)
}
