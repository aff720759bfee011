package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/akaushop/storefront/pkg/errors"
	"github.com/akaushop/storefront/pkg/httpclient"
	"github.com/akaushop/storefront/pkg/logger"
	"github.com/akaushop/storefront/pkg/tracing"
	"github.com/akaushop/storefront/services/storefront/internal/domain"
)

const (
	serviceName = "shop-api"

	// AdminTokenHeader carries the admin token on every admin call.
	AdminTokenHeader = "X-Admin-Token"
)

// client is the JSON transport shared by every repository in this package.
type client struct {
	baseURL string
	doer    httpclient.Doer
	tracer  trace.Tracer
	logger  *slog.Logger
}

func newClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) *client {
	return &client{
		baseURL: baseURL,
		doer:    doer,
		tracer:  tracing.Tracer("github.com/akaushop/storefront/services/storefront/repository/rest"),
		logger:  logger,
	}
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string
	body   any
	out    any

	// commits is set when a 2xx means the backend changed state, so an
	// unreadable reply leaves the outcome unknown.
	commits bool
}

func (c *client) do(ctx context.Context, cl call) error {
	var body io.Reader = http.NoBody
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", cl.op, err)
		}
		body = bytes.NewReader(buf)
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	if cl.token != "" {
		req.Header.Set(AdminTokenHeader, cl.token)
	}

	req, end := tracing.StartClientSpan(c.tracer, req, "shop-api "+cl.op)
	log := logger.WithContext(ctx, c.logger)
	start := time.Now()

	resp, err := c.doer.Do(req.Context(), req)
	if err != nil {
		err = transportError(err)
		end(0, err)
		if !errors.Is(err, context.Canceled) {
			log.Warn("shop api call failed",
				slog.String("op", cl.op),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := httpclient.ParseResponseError(resp, serviceName)
		end(resp.StatusCode, err)
		log.Warn("shop api call rejected",
			slog.String("op", cl.op),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if cl.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
			if cl.commits {
				err = fmt.Errorf("%w: %w", domain.ErrOutcomeUnknown, err)
			} else {
				err = apperrors.ServiceUnavailable("shop backend returned an unreadable response", err)
			}
			end(resp.StatusCode, err)
			log.Error("shop api reply unreadable",
				slog.String("op", cl.op),
				slog.Int("status", resp.StatusCode),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("decode %s response: %w", cl.op, err)
		}
	}
	end(resp.StatusCode, nil)

	log.Debug("shop api call",
		slog.String("op", cl.op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// transportError normalises errors that never produced an HTTP response.
// Caller cancellation is passed through so it can be told apart from an
// unhealthy upstream.
func transportError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.ServiceUnavailable("shop backend is temporarily unavailable", err)
	default:
		return apperrors.ServiceUnavailable("shop backend is unreachable", err)
	}
}
