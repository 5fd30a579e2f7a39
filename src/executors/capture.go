package executors

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	logger "github.com/sirupsen/logrus"

	"perptrader/src/model"
	"perptrader/src/monitoring"
)

// ExceptionStore persists captured failures.
type ExceptionStore interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Capture records a loop failure, logs it locally, and persists it when a
// store is configured. An "asset" entry in contextData is copied to its own column.
func Capture(
	ctx context.Context,
	repo ExceptionStore,
	service string,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {
	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}
	asset, _ := contextData["asset"].(string)

	exc := &model.Exception{
		Service:   service,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		Asset:     asset,
		CreatedAt: time.Now(),
	}

	logger.WithFields(map[string]interface{}{
		"service": service,
		"module":  module,
		"method":  method,
		"level":   level,
		"asset":   asset,
	}).WithError(err).Error("System exception captured")
	monitoring.RecordError(method)

	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}
