package evaluate

import "github.com/roach88/trophycase/internal/rules"

// meta depends on the ledger's own state, so it is never backdated.
func meta(in Input, r rules.Meta) Outcome {
	if r.Count <= 0 || in.AwardCount < r.Count {
		return notEarned
	}
	return earned(in.Now, map[string]any{"awards": in.AwardCount, "threshold": r.Count})
}
