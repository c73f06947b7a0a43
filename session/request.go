package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcprotocol/sessioncore/internal/errs"
	"github.com/mcprotocol/sessioncore/internal/jsonrpc"
	"github.com/mcprotocol/sessioncore/internal/timeout"
	"github.com/mcprotocol/sessioncore/mcp"
)

// RequestOption configures a single Send call.
type RequestOption func(*RequestOptions)

// WithTimeout arms a soft, per-attempt deadline.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *RequestOptions) { o.TimeoutMillis = d.Milliseconds() }
}

// WithDefaultTimeout arms the implementation default of 60 seconds.
func WithDefaultTimeout() RequestOption {
	return WithTimeout(timeout.DefaultTimeout)
}

// WithResetOnProgress makes each inbound progress notification for this
// request push its deadline back out, bounded by WithMaxTotal if also set.
func WithResetOnProgress() RequestOption {
	return func(o *RequestOptions) { o.ResetOnProgress = true }
}

// WithMaxTotal arms a hard ceiling that fires regardless of progress.
func WithMaxTotal(d time.Duration) RequestOption {
	return func(o *RequestOptions) { o.MaxTotalMillis = d.Milliseconds() }
}

// WithProgress registers a sink invoked for every notifications/progress
// this request's peer emits, keyed by a freshly allocated progress token.
func WithProgress(fn func(value, total float64, message string)) RequestOption {
	return func(o *RequestOptions) { o.OnProgress = fn }
}

// Send issues a request and blocks until a response arrives or an error
// terminates the wait (timeout, cancellation, connection close) (§4.7).
func (s *Session) Send(ctx context.Context, method string, params any, opts ...RequestOption) (json.RawMessage, error) {
	if s.State() != StateInitialized {
		return nil, fmt.Errorf("sessioncore: session is %s, not initialized", s.State())
	}
	var ro RequestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return s.Request(ctx, method, params, ro)
}

// Request implements dispatch.Peer, and is also Send's underlying
// implementation. It is exported at this lower level so HandlerContext can
// call back into the session without going through the StateInitialized
// gate a second time from within a handler invocation that is itself part
// of being initialized.
func (s *Session) Request(ctx context.Context, method string, params any, opts RequestOptions) (json.RawMessage, error) {
	id := s.nextID()
	entry := s.pendingTable.Insert(id, method)
	key := id.String()

	deadline := s.timeoutMgr.Arm(timeout.Options{
		Timeout:         time.Duration(opts.TimeoutMillis) * time.Millisecond,
		ResetOnProgress: opts.ResetOnProgress,
		MaxTotal:        time.Duration(opts.MaxTotalMillis) * time.Millisecond,
	})

	finalParams := params
	var progressToken string
	if opts.OnProgress != nil {
		var lastValue float64
		var seenValue bool
		progressToken = s.progress.NewToken(func(value, total float64, message string) {
			if seenValue && value <= lastValue {
				s.logger.Debug("session.progress.non_monotonic", slog.String("method", method), slog.Float64("value", value), slog.Float64("previous", lastValue))
			}
			seenValue, lastValue = true, value
			opts.OnProgress(value, total, message)
			deadline.Reset()
		})
		defer s.progress.Release(progressToken)

		raw, err := withProgressToken(params, progressToken)
		if err != nil {
			s.pendingTable.Cancel(key, err)
			deadline.Stop()
			return nil, err
		}
		finalParams = raw
	}

	reqMsg, err := jsonrpc.NewRequest(id, method, finalParams)
	if err != nil {
		s.pendingTable.Cancel(key, err)
		deadline.Stop()
		return nil, err
	}
	frame, err := json.Marshal(reqMsg)
	if err != nil {
		s.pendingTable.Cancel(key, err)
		deadline.Stop()
		return nil, err
	}

	if err := s.t.Send(ctx, frame); err != nil {
		s.pendingTable.Cancel(key, err)
		deadline.Stop()
		return nil, &errs.TransportError{Cause: err}
	}

	select {
	case <-entry.Done():
		deadline.Stop()
		outcome := entry.Result()
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		if outcome.Response.Error != nil {
			return nil, &errs.RemoteError{
				Code:    int(outcome.Response.Error.Code),
				Message: outcome.Response.Error.Message,
				Data:    outcome.Response.Error.Data,
			}
		}
		return outcome.Response.Result, nil

	case fi := <-deadline.Fired():
		timeoutErr := &errs.RequestTimeoutError{Elapsed: fi.Elapsed(), Hard: fi.Hard()}
		if _, ok := s.pendingTable.Cancel(key, timeoutErr); ok {
			s.bestEffortCancelNotice(id, fmt.Sprintf("Timed out after %s", fi.Elapsed()))
		}
		return nil, timeoutErr

	case <-ctx.Done():
		deadline.Stop()
		if _, ok := s.pendingTable.Cancel(key, errs.ErrCancelled); ok {
			s.bestEffortCancelNotice(id, "cancelled by caller")
		}
		return nil, errs.ErrCancelled
	}
}

// Notify sends a fire-and-forget notification (§4.7).
func (s *Session) Notify(method string, params any) error {
	req, err := jsonrpc.NewRequest(nil, method, params)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := s.t.Send(context.Background(), frame); err != nil {
		return &errs.TransportError{Cause: err}
	}
	return nil
}

func (s *Session) bestEffortCancelNotice(id *jsonrpc.RequestID, reason string) {
	cn := mcp.CancelledNotification{RequestID: id.String(), Reason: reason}
	if err := s.Notify(string(mcp.CancelledNotificationMethod), cn); err != nil {
		s.logger.Warn("session.cancel_notice.send_failed", slog.String("request_id", id.String()), slog.String("error", err.Error()))
	}
}

// withProgressToken injects {"_meta":{"progressToken":token}} into params,
// which MUST marshal to a JSON object (§6, Progress piggyback).
func withProgressToken(params any, token string) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("sessioncore: marshal params: %w", err)
	}

	var fields map[string]json.RawMessage
	if len(raw) == 0 || string(raw) == "null" {
		fields = map[string]json.RawMessage{}
	} else if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("sessioncore: params must be a JSON object to carry a progress token: %w", err)
	}

	meta, err := json.Marshal(map[string]string{"progressToken": token})
	if err != nil {
		return nil, err
	}
	fields["_meta"] = meta

	return json.Marshal(fields)
}
