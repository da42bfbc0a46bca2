// Package db provides embedded database schema and seed data files.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCatalog is the default seed dataset consumed by cmd/seed-db.
//
//go:embed seed/catalog.json
var SeedCatalog []byte
