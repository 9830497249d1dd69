package db

import (
	"strings"
	"testing"
)

func TestSchemaCoversTables(t *testing.T) {
	for _, table := range []string{
		"businesses", "customers", "payment_requests", "transactions",
		"rewards", "user_profiles", "notifications", "event_outbox",
	} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema is missing table %s", table)
		}
	}
	if !strings.Contains(schemaSQL, "uq_rewards_one_unredeemed") {
		t.Error("schema is missing the single unredeemed reward index")
	}
}
