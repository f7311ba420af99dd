package core

import (
	"context"
	"sort"
	"strings"

	"github.com/coachhub/coachhub-api/internal/models"
)

const chatIDSeparator = "__"

var (
	rolePrefix = map[models.Role]string{
		models.RoleAdmin:    "admin_",
		models.RoleEmployee: "emp_",
		models.RoleUser:     "user_",
	}
	roleRank = map[models.Role]int{
		models.RoleAdmin:    0,
		models.RoleEmployee: 1,
		models.RoleUser:     2,
	}
)

type chatToken struct {
	rank  int
	value string
}

// ComposeChatID builds the role-ordered id of the chat between two participants.
// The result does not depend on argument order.
func ComposeChatID(idA string, roleA models.Role, idB string, roleB models.Role) string {
	prefixA, okA := rolePrefix[roleA]
	prefixB, okB := rolePrefix[roleB]
	if !okA || !okB {
		return FallbackChatID(idA, idB)
	}
	tokens := []chatToken{
		{rank: roleRank[roleA], value: prefixA + idA},
		{rank: roleRank[roleB], value: prefixB + idB},
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].rank != tokens[j].rank {
			return tokens[i].rank < tokens[j].rank
		}
		return tokens[i].value < tokens[j].value
	})
	return tokens[0].value + chatIDSeparator + tokens[1].value
}

// FallbackChatID is the role-agnostic id used when a role cannot be resolved.
func FallbackChatID(idA, idB string) string {
	ids := []string{idA, idB}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// DeriveChatID resolves both roles and composes the chat id. Role lookups are not cached.
// It is the entry point for callers that hold only the two ids, and the one place where an
// unresolvable role degrades to FallbackChatID. SendMessage and CreateOrGet already load
// both profiles for their eligibility checks, so they call ComposeChatID directly and
// always yield the same id as DeriveChatID would.
func (s *chatService) DeriveChatID(ctx context.Context, userA, userB string) string {
	roleA, errA := s.profiles.RoleOf(ctx, userA)
	roleB, errB := s.profiles.RoleOf(ctx, userB)
	if errA != nil || errB != nil {
		return FallbackChatID(userA, userB)
	}
	return ComposeChatID(userA, roleA, userB, roleB)
}

// sortedPair returns the two ids in lexical order.
func sortedPair(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}
