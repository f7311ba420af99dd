package core

import "fmt"

// allowedReactions is the emoji allow-list for message reactions.
var allowedReactions = map[string]struct{}{
	"👍":  {},
	"❤️": {},
	"😂":  {},
	"😮":  {},
	"😢":  {},
	"🙏":  {},
}

// AllowedReactions lists the emoji a message can be reacted with.
func AllowedReactions() []string {
	return []string{"👍", "❤️", "😂", "😮", "😢", "🙏"}
}

func validateReaction(emoji string) error {
	if _, ok := allowedReactions[emoji]; !ok {
		return fmt.Errorf("%w: unsupported reaction %q", ErrValidation, emoji)
	}
	return nil
}

// toggleReaction returns a new reaction map with userID added to or removed from emoji's set.
// Empty sets are dropped and duplicate ids in the input collapse to one.
func toggleReaction(current map[string][]string, userID, emoji string) map[string][]string {
	next := make(map[string][]string, len(current)+1)
	for e, users := range current {
		seen := make(map[string]struct{}, len(users))
		set := make([]string, 0, len(users))
		for _, u := range users {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			set = append(set, u)
		}
		if len(set) > 0 {
			next[e] = set
		}
	}

	users := next[emoji]
	for i, u := range users {
		if u == userID {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(next, emoji)
			} else {
				next[emoji] = users
			}
			return next
		}
	}
	next[emoji] = append(users, userID)
	return next
}
