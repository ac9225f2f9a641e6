package services

import (
	"encoding/json"
	"strings"

	"github.com/introweave/introweave/internal/engine"
	"github.com/introweave/introweave/internal/models"
)

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// memberTags decodes the JSON tag list stored on a member.
func memberTags(member *models.Member) []string {
	if member == nil || len(member.Tags) == 0 {
		return nil
	}

	var tags []string
	if err := json.Unmarshal(member.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

// scoreInput maps a member row onto the scorer's input shape.
func scoreInput(member *models.Member) engine.ScoreInput {
	return engine.ScoreInput{
		Tier:           member.Tier,
		Scarcity:       member.Scarcity,
		Sector:         member.Sector,
		Tags:           memberTags(member),
		IntrosThisWeek: member.IntrosThisWeek,
		WeeklyCap:      member.WeeklyCap(),
	}
}
