/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/friendsincode/wayfarer/internal/models"
	"github.com/friendsincode/wayfarer/internal/telemetry"
)

const startedKey = "wayfarer:db_started"

// otherTable labels statements outside the planner's own tables so ad hoc
// queries cannot blow up metric cardinality.
const otherTable = "other"

var plannerTables = map[string]bool{
	models.Trip{}.TableName():        true,
	models.Place{}.TableName():       true,
	models.UserWeights{}.TableName(): true,
}

type registrar func(name string, fn func(*gorm.DB)) error

type hook struct {
	op     string
	before registrar
	after  registrar
}

// RegisterCallbacks times every create, query, update, delete and row
// statement per planner table. Each statement is also added as an event on
// the span in its context, so store calls show up under the planning stage
// that issued them.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []hook{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}
	for _, h := range hooks {
		if err := h.before("telemetry:before_"+h.op, markStart); err != nil {
			return fmt.Errorf("register before %s: %w", h.op, err)
		}
		if err := h.after("telemetry:after_"+h.op, observe(h.op)); err != nil {
			return fmt.Errorf("register after %s: %w", h.op, err)
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startedKey, time.Now())
}

func observe(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startedKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}
		table := tableLabel(db.Statement)
		elapsed := time.Since(started)

		telemetry.DatabaseQueryDuration.WithLabelValues(op, table).Observe(elapsed.Seconds())
		failed := db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound)
		if failed {
			telemetry.DatabaseErrorsTotal.WithLabelValues(op, table).Inc()
		}

		if db.Statement.Context == nil {
			return
		}
		span := trace.SpanFromContext(db.Statement.Context)
		if !span.IsRecording() {
			return
		}
		span.AddEvent("db."+op, trace.WithAttributes(
			attribute.String("db.sql.table", table),
			attribute.Int64("db.rows_affected", db.RowsAffected),
			attribute.Int64("db.duration_us", elapsed.Microseconds()),
			attribute.Bool("db.failed", failed),
		))
	}
}

// tableLabel maps a statement to one of the planner tables or otherTable.
func tableLabel(stmt *gorm.Statement) string {
	table := stmt.Table
	if table == "" && stmt.Schema != nil {
		table = stmt.Schema.Table
	}
	if plannerTables[table] {
		return table
	}
	return otherTable
}

// UpdateConnectionMetrics publishes pool statistics. The server calls it on
// a ticker.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
