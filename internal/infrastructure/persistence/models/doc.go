// Package models holds the GORM rows behind the ledger tables and the mappers
// to and from domain types. Domain packages never see gorm tags.
//
// The partial unique indexes on payments (external reference) and refunds
// (one active refund per payment) are declared here as well as in the SQL
// migrations, so sqlite tests built with AutoMigrate reject the same rows
// Postgres does.
package models
