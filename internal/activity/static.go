package activity

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// History is a recorded activity dump. It lets the engine run against a
// file instead of the stats service, for offline evaluation and tests.
//
//	users:
//	  - id: u1
//	    username: alice
//	    finished:
//	      - {item: b1, at: 2024-01-05T21:00:00Z}
//	    sessions:
//	      - {item: b1, start: 2024-01-05T19:00:00Z, end: 2024-01-05T21:00:00Z, listened: 7200}
//	series:
//	  - {id: s1, name: Cradle, items: [b1, b2]}
//	items:
//	  - {id: b1, title: Unsouled, authors: [Will Wight], duration: 36000}
type History struct {
	Users  []HistoryUser   `yaml:"users"`
	Series []HistorySeries `yaml:"series"`
	Items  []HistoryItem   `yaml:"items"`
}

// HistoryUser is one user's recorded activity.
type HistoryUser struct {
	ID               string           `yaml:"id"`
	Username         string           `yaml:"username"`
	Email            string           `yaml:"email"`
	Finished         []HistoryFinish  `yaml:"finished"`
	Sessions         []HistorySession `yaml:"sessions"`
	ListeningSeconds float64          `yaml:"listening_seconds"`
}

// HistoryFinish is a finished item. A missing At is an undated finish.
type HistoryFinish struct {
	Item string    `yaml:"item"`
	At   time.Time `yaml:"at"`
}

// HistorySession is a listening session.
type HistorySession struct {
	ID       string    `yaml:"id"`
	Item     string    `yaml:"item"`
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	Listened float64   `yaml:"listened"`
	Duration float64   `yaml:"duration"`
	Device   string    `yaml:"device"`
}

// HistorySeries lists member items in sequence order.
type HistorySeries struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Items []string `yaml:"items"`
}

// HistoryItem is item metadata.
type HistoryItem struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Subtitle  string   `yaml:"subtitle"`
	Authors   []string `yaml:"authors"`
	Narrators []string `yaml:"narrators"`
	Duration  float64  `yaml:"duration"`
}

// ParseHistory decodes a YAML (or JSON) history document.
func ParseHistory(data []byte) (History, error) {
	var h History
	if err := yaml.Unmarshal(data, &h); err != nil {
		return History{}, fmt.Errorf("parse history: %w", err)
	}
	return h, nil
}

// LoadHistory reads a history document from path.
func LoadHistory(path string) (History, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return History{}, fmt.Errorf("read history: %w", err)
	}
	return ParseHistory(data)
}

// StaticSource serves a History through the Source interface.
type StaticSource struct {
	history History
	items   map[string]ItemMeta
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource wraps h.
func NewStaticSource(h History) *StaticSource {
	items := make(map[string]ItemMeta, len(h.Items))
	for _, it := range h.Items {
		items[it.ID] = ItemMeta{
			ID:              it.ID,
			Title:           it.Title,
			Subtitle:        it.Subtitle,
			Authors:         it.Authors,
			Narrators:       it.Narrators,
			DurationSeconds: it.Duration,
		}
	}
	return &StaticSource{history: h, items: items}
}

// Users implements Source.
func (s *StaticSource) Users(context.Context) ([]User, error) {
	out := make([]User, 0, len(s.history.Users))
	for _, u := range s.history.Users {
		out = append(out, User{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	return out, nil
}

// Finished implements Source.
func (s *StaticSource) Finished(context.Context) ([]UserFinished, error) {
	out := make([]UserFinished, 0, len(s.history.Users))
	for _, u := range s.history.Users {
		uf := UserFinished{User: User{ID: u.ID, Username: u.Username, Email: u.Email}}
		for _, f := range u.Finished {
			uf.Items = append(uf.Items, FinishedItem{ItemID: f.Item, FinishedAt: f.At.UTC()})
		}
		out = append(out, uf)
	}
	return out, nil
}

// Sessions implements Source.
func (s *StaticSource) Sessions(context.Context) (map[string][]Session, error) {
	out := make(map[string][]Session, len(s.history.Users))
	for _, u := range s.history.Users {
		for i, hs := range u.Sessions {
			id := hs.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", u.ID, i+1)
			}
			end := hs.End
			if end.IsZero() {
				end = hs.Start
			}
			out[u.ID] = append(out[u.ID], Session{
				ID:                  id,
				ItemID:              hs.Item,
				StartedAt:           hs.Start.UTC(),
				EndedAt:             end.UTC(),
				ListenedSeconds:     hs.Listened,
				ItemDurationSeconds: hs.Duration,
				DeviceTag:           hs.Device,
			})
		}
	}
	return out, nil
}

// SeriesIndex implements Source.
func (s *StaticSource) SeriesIndex(context.Context) ([]Series, error) {
	out := make([]Series, 0, len(s.history.Series))
	for _, hs := range s.history.Series {
		series := Series{ID: hs.ID, Name: hs.Name}
		for i, id := range hs.Items {
			series.Items = append(series.Items, SeriesEntry{ItemID: id, Sequence: float64(i + 1)})
		}
		out = append(out, series)
	}
	return out, nil
}

// Item implements Source.
func (s *StaticSource) Item(_ context.Context, itemID string) (ItemMeta, error) {
	meta, ok := s.items[itemID]
	if !ok {
		return ItemMeta{}, fmt.Errorf("item %s: not in history", itemID)
	}
	return meta, nil
}

// ListeningTime implements Source.
func (s *StaticSource) ListeningTime(context.Context) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, u := range s.history.Users {
		if u.ListeningSeconds > 0 {
			out[u.ID] = u.ListeningSeconds
		}
	}
	return out, nil
}

// UserIDs returns the ids of every user in the history, sorted.
func (h History) UserIDs() []string {
	ids := make([]string, 0, len(h.Users))
	for _, u := range h.Users {
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)
	return ids
}
