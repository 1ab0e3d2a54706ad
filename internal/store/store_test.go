package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresExpectedTablesAndIndex(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS telegram_sources")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS documents")
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS iocs")
	assert.Contains(t, schemaSQL, "iocs_document_type_value_idx")
	assert.Contains(t, schemaSQL, "iocs_ioc_type_idx")
	assert.Contains(t, schemaSQL, "iocs_value_idx")
	assert.True(t, strings.Contains(schemaSQL, "UNIQUE INDEX IF NOT EXISTS"))
}

func TestPgUniqueViolationCodeIsCorrect(t *testing.T) {
	// Postgres error code for unique_violation, relied on by
	// InsertIOCDeduped to treat a race as a no-op rather than a failure.
	assert.Equal(t, "23505", pgUniqueViolation)
}
