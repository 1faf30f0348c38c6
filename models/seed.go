package models

import "strings"

// Seed is a bracket entry. Immutable once a round starts.
type Seed struct {
	Address     string `json:"address" bson:"address"`
	DisplayName string `json:"display_name" bson:"displayName"`
	Reputation  int    `json:"reputation" bson:"reputation"`
}

// NormalizeAddress lower-cases and trims a wallet address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameAddress сравнивает адреса без учёта регистра.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
