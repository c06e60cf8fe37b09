package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// AutomationSettings gates the return-order completion workflow.
// Loaded once at startup and passed into the workflow constructor;
// immutable for the duration of an event's processing.
//
// Set via env (defaults in parentheses):
// - ENABLE_AUTO_STATUS (true)
// - ENABLE_CUSTOMER_REASSIGN (false)
// - ADD_TRACKING_NOTES (true)
// - CONSUME_REPAIR_PARTS (true)
// - STATUS_FOR_RETURN (10) / STATUS_FOR_REPAIR (10) / STATUS_FOR_REPLACE (50)
//   / STATUS_FOR_REFUND (50) / STATUS_FOR_REJECT (65)
type AutomationSettings struct {
	EnableAutoStatus       bool
	EnableCustomerReassign bool
	AddTrackingNotes       bool
	ConsumeRepairParts     bool

	StatusForReturn  int
	StatusForRepair  int
	StatusForReplace int
	StatusForRefund  int
	StatusForReject  int
}

func DefaultAutomationSettings() AutomationSettings {
	return AutomationSettings{
		EnableAutoStatus:       true,
		EnableCustomerReassign: false,
		AddTrackingNotes:       true,
		ConsumeRepairParts:     true,
		StatusForReturn:        10,
		StatusForRepair:        10,
		StatusForReplace:       50,
		StatusForRefund:        50,
		StatusForReject:        65,
	}
}

func LoadAutomationSettings() AutomationSettings {
	s := DefaultAutomationSettings()

	s.EnableAutoStatus = boolFromEnv("ENABLE_AUTO_STATUS", s.EnableAutoStatus)
	s.EnableCustomerReassign = boolFromEnv("ENABLE_CUSTOMER_REASSIGN", s.EnableCustomerReassign)
	s.AddTrackingNotes = boolFromEnv("ADD_TRACKING_NOTES", s.AddTrackingNotes)
	s.ConsumeRepairParts = boolFromEnv("CONSUME_REPAIR_PARTS", s.ConsumeRepairParts)

	s.StatusForReturn = statusFromEnv("STATUS_FOR_RETURN", s.StatusForReturn)
	s.StatusForRepair = statusFromEnv("STATUS_FOR_REPAIR", s.StatusForRepair)
	s.StatusForReplace = statusFromEnv("STATUS_FOR_REPLACE", s.StatusForReplace)
	s.StatusForRefund = statusFromEnv("STATUS_FOR_REFUND", s.StatusForRefund)
	s.StatusForReject = statusFromEnv("STATUS_FOR_REJECT", s.StatusForReject)

	return s
}

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	log.Printf("invalid boolean for %s: %q; using default %v", key, v, def)
	return def
}

// stockStatusCodes mirrors the stock status enumeration in models.
// Kept here as raw wire codes so config does not depend on models.
var stockStatusCodes = []int{10, 50, 55, 60, 65, 70, 75, 85}

func statusFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid status code for %s: %q; using default %d", key, v, def)
		return def
	}
	for _, code := range stockStatusCodes {
		if n == code {
			return n
		}
	}
	log.Printf("unknown status code for %s: %d; using default %d", key, n, def)
	return def
}
