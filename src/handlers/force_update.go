// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package handlers

import (
	"context"
	"errors"

	"github.com/apex/log"

	"github.com/H0llyW00dzZ/altroute/src/dispatch"
)

// Application error codes rejecting the client version.
const (
	CodeAppVersionBad = 5003
	CodeAPIVersionBad = 5005
)

// ForceUpdateHandler notifies [dispatch.Client.ForceUpdate] when the server
// refuses the client version. It never changes the result.
type ForceUpdateHandler[Api any] struct {
	cfg  *dispatch.Client
	opts options
}

// NewForceUpdateHandler creates a [ForceUpdateHandler] for cfg.
func NewForceUpdateHandler[Api any](cfg *dispatch.Client, opts ...Option) *ForceUpdateHandler[Api] {
	return &ForceUpdateHandler[Api]{cfg: cfg, opts: buildOptions(opts)}
}

// Role implements [dispatch.ErrorHandler].
func (h *ForceUpdateHandler[Api]) Role() dispatch.Role { return dispatch.RoleRecovery }

// Handle implements [dispatch.ErrorHandler].
func (h *ForceUpdateHandler[Api]) Handle(_ context.Context, _ dispatch.Backend[Api], err dispatch.Error, _ *dispatch.Call[Api]) dispatch.Result[any] {
	var httpErr *dispatch.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != dispatch.StatusBadRequest {
		return dispatch.Failure[any](err)
	}
	switch code := httpErr.ProtonCode(); code {
	case CodeAppVersionBad, CodeAPIVersionBad:
		h.opts.logger.WithFields(log.Fields{
			"code":    code,
			"message": httpErr.Message,
		}).Warn("handlers: client version rejected")
		if h.cfg != nil && h.cfg.ForceUpdate != nil {
			h.cfg.ForceUpdate(httpErr.Message)
		}
	}
	return dispatch.Failure[any](err)
}
