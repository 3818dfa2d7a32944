// Package db embeds the PostgreSQL schema for coupons, redemptions and API
// keys.
package db

import _ "embed"

// Schema is idempotent DDL applied on every start.
//
//go:embed migrations/001_schema.sql
var Schema string
