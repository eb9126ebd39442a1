package service

import (
	"fmt"
	"strings"

	"securetalk/internal/domain"
)

// RiskInput holds the immutable inputs the risk score is derived from.
type RiskInput struct {
	Action     string
	Success    bool
	HTTPStatus int   // 0 when unknown
	DurationMs int64 // 0 when unknown
	Category   string
}

const (
	flagThreshold = 70
	slowOpMs      = 5000
)

// ComputeRiskScore maps an audited action to a bounded [0,100] score from a
// fixed weighted-rule table, flagging scores at or above the threshold. Pure:
// the same inputs always yield the same result.
func ComputeRiskScore(in RiskInput) (score int, flagged bool, reason string) {
	switch {
	case strings.Contains(in.Action, "DELETE") || strings.Contains(in.Action, "ADMIN"):
		score += 30
	case strings.Contains(in.Action, "UPDATE") || strings.Contains(in.Action, "MODIFY"):
		score += 15
	case strings.Contains(in.Action, "LOGIN") || strings.Contains(in.Action, "ACCESS"):
		score += 10
	}
	if !in.Success {
		score += 20
	}
	if in.HTTPStatus >= 400 {
		score += 15
	}
	if in.DurationMs > slowOpMs {
		score += 10
	}
	if isSecurityRelated(in.Action, in.Category) {
		score += 20
	}
	if score > 100 {
		score = 100
	}
	if score >= flagThreshold {
		return score, true, fmt.Sprintf("High risk score: %d", score)
	}
	return score, false, ""
}

func isSecurityRelated(action, category string) bool {
	return category == domain.CategorySecurity ||
		strings.Contains(action, "LOGIN") ||
		strings.Contains(action, "LOGOUT") ||
		strings.Contains(action, "PASSWORD") ||
		strings.Contains(action, "PERMISSION")
}
