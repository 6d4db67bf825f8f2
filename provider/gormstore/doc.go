// Package gormstore implements the accountflow profile store on PostgreSQL
// through GORM. Profiles live in the "profiles" table keyed by identity id.
package gormstore
