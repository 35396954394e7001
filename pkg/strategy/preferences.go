package strategy

import (
	"context"
	"strings"

	"github.com/mnemo-ai/mnemo-go/pkg/log"
	"github.com/mnemo-ai/mnemo-go/pkg/store"
)

// preferenceMarkers are the lowercase phrases that flag an entry as a stated
// preference.
var preferenceMarkers = []string{
	"i like",
	"i prefer",
	"i love",
	"i enjoy",
	"i hate",
	"i don't like",
	"my favorite",
	"i always",
	"i never",
}

// UserPreferences scans the user's entries for stated preferences and
// condenses them into a single summary line.
type UserPreferences struct {
	store store.EntryStore
}

// NewUserPreferences creates a preference-extraction strategy.
func NewUserPreferences(s store.EntryStore) *UserPreferences {
	return &UserPreferences{store: s}
}

// Name identifies the strategy in logs.
func (p *UserPreferences) Name() string { return "preferences" }

// Produce lists the user's entries, keeps user-authored ones containing a
// preference marker, and joins their contents into one summary line.
func (p *UserPreferences) Produce(ctx context.Context, req *Request) Result {
	entries, err := p.store.ListByUser(ctx, req.UserID, 0)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("strategy", p.Name()).Msg("retrieval failed, skipping")
		return Empty{}
	}

	var found []string
	for _, e := range entries {
		if e.Role != store.RoleUser {
			continue
		}
		if containsMarker(e.Content) {
			found = append(found, strings.TrimSpace(e.Content))
		}
	}

	if len(found) == 0 {
		return Empty{}
	}

	return Preferences{Summary: strings.Join(found, "; ")}
}

func containsMarker(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range preferenceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
