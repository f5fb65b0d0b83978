package evaluate

import (
	"time"

	"github.com/roach88/trophycase/internal/activity"
	"github.com/roach88/trophycase/internal/backdate"
	"github.com/roach88/trophycase/internal/rules"
)

// sameWeek is the inclusive window for two finishes of the same item.
const sameWeek = 7 * 24 * time.Hour

func social(in Input, r rules.Social) Outcome {
	var peers []*activity.Snapshot
	for _, p := range in.Peers {
		if p != nil && p.UserID != in.Snapshot.UserID {
			peers = append(peers, p)
		}
	}
	if len(peers) == 0 || len(in.Snapshot.Finished) == 0 {
		return notEarned
	}

	if r.Kind == rules.SocialSameWeek {
		return sameWeekFinish(in.Snapshot, peers)
	}
	return overlapWithEveryone(in.Snapshot, peers)
}

// sameWeekFinish looks for an item this user and a peer both finished within
// a week of each other. The earliest such pair wins, dated at its later finish.
func sameWeekFinish(s *activity.Snapshot, peers []*activity.Snapshot) Outcome {
	var (
		found bool
		best  time.Time
		item  string
		with  string
	)
	for _, f := range s.Finished {
		if !f.Dated() {
			continue
		}
		for _, p := range peers {
			theirs, ok := p.FinishedAt(f.ItemID)
			if !ok || theirs.IsZero() {
				continue
			}
			gap := f.FinishedAt.Sub(theirs)
			if gap < 0 {
				gap = -gap
			}
			if gap > sameWeek {
				continue
			}
			at := backdate.Latest(f.FinishedAt, theirs)
			if !found || at.Before(best) {
				found, best, item, with = true, at, f.ItemID, peerName(p)
			}
		}
	}
	if !found {
		return notEarned
	}
	return earned(best, map[string]any{"itemId": item, "otherUser": with})
}

// overlapWithEveryone requires at least one shared finished item with every
// peer. Each peer's overlap is established when the earliest shared item was
// finished by both; the award is dated at the last overlap established.
func overlapWithEveryone(s *activity.Snapshot, peers []*activity.Snapshot) Outcome {
	established := make([]time.Time, 0, len(peers))
	for _, p := range peers {
		var (
			shared bool
			first  time.Time
		)
		for _, f := range s.Finished {
			theirs, ok := p.FinishedAt(f.ItemID)
			if !ok {
				continue
			}
			at := backdate.Latest(f.FinishedAt, theirs)
			if !shared || activity.TimeBefore(at, first) {
				shared, first = true, at
			}
		}
		if !shared {
			return notEarned
		}
		established = append(established, first)
	}
	return earned(backdate.Latest(established...), map[string]any{"peers": len(peers)})
}

func peerName(p *activity.Snapshot) string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserID
}
