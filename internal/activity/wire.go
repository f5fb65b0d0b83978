package activity

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The stats service has changed its payload shapes over time. The wire types
// below accept every shape seen in the field and normalize them.

// flexFloat decodes a JSON number, a numeric string, or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// millis converts an epoch-milliseconds value to time. Zero stays zero.
func millis(ms flexFloat) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

// flexString decodes a string or a number into a string.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	*s = flexString(string(b))
	return nil
}

// nameList decodes "a", ["a", "b"] or [{"name": "a"}] into a list of names.
type nameList []string

func (n *nameList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = nil
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s = strings.TrimSpace(s); s != "" {
			*n = nameList{s}
		}
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		for _, r := range raw {
			var s string
			if err := json.Unmarshal(r, &s); err == nil {
				if s = strings.TrimSpace(s); s != "" {
					*n = append(*n, s)
				}
				continue
			}
			var obj struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(r, &obj); err == nil {
				if s := strings.TrimSpace(obj.Name); s != "" {
					*n = append(*n, s)
				}
			}
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNames(lists ...nameList) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return []string(l)
		}
	}
	return nil
}

type wireUser struct {
	UserID   flexString `json:"userId"`
	ID       flexString `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
}

func (w wireUser) user() User {
	u := User{
		ID:       firstNonEmpty(string(w.UserID), string(w.ID)),
		Username: firstNonEmpty(w.Username, w.Name),
		Email:    strings.TrimSpace(w.Email),
	}
	if u.ID == "" {
		u.ID = u.Username
	}
	return u
}

type wireCompletedUser struct {
	wireUser
	FinishedIDs   []flexString         `json:"finishedIds"`
	FinishedDates map[string]flexFloat `json:"finishedDates"`
}

type wireCompleted struct {
	Users []wireCompletedUser `json:"users"`
}

type wireSession struct {
	ID            flexString `json:"id"`
	LibraryItemID flexString `json:"libraryItemId"`
	StartedAt     flexFloat  `json:"startedAt"`
	UpdatedAt     flexFloat  `json:"updatedAt"`
	EndedAt       flexFloat  `json:"endedAt"`
	TimeListening flexFloat  `json:"timeListening"`
	Duration      flexFloat  `json:"duration"`
	Device        string     `json:"device"`
}

func (w wireSession) session() Session {
	end := w.UpdatedAt
	if end <= 0 {
		end = w.EndedAt
	}
	if end <= 0 {
		end = w.StartedAt
	}
	return Session{
		ID:                  string(w.ID),
		ItemID:              string(w.LibraryItemID),
		StartedAt:           millis(w.StartedAt),
		EndedAt:             millis(end),
		ListenedSeconds:     float64(w.TimeListening),
		ItemDurationSeconds: float64(w.Duration),
		DeviceTag:           w.Device,
	}
}

type wireSessions struct {
	Users []struct {
		UserID   flexString    `json:"userId"`
		Sessions []wireSession `json:"sessions"`
	} `json:"users"`
}

type wireSeriesBook struct {
	LibraryItemID flexString `json:"libraryItemId"`
	ID            flexString `json:"id"`
	Sequence      flexFloat  `json:"sequence"`
}

type wireSeries struct {
	ID         flexString       `json:"id"`
	SeriesID   flexString       `json:"seriesId"`
	Name       string           `json:"name"`
	SeriesName string           `json:"seriesName"`
	Title      string           `json:"title"`
	Books      []wireSeriesBook `json:"books"`
}

type wireItemMetadata struct {
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle"`
	Authors   nameList `json:"authors"`
	Author    nameList `json:"author"`
	Narrators nameList `json:"narrators"`
	Narrator  nameList `json:"narrator"`
}

type wireItem struct {
	wireItemMetadata
	ID       flexString `json:"id"`
	Name     string     `json:"name"`
	Duration flexFloat  `json:"duration"`
	Media    *struct {
		wireItemMetadata
		Duration flexFloat         `json:"duration"`
		Metadata *wireItemMetadata `json:"metadata"`
	} `json:"media"`
	Metadata *wireItemMetadata `json:"metadata"`
}

func (w wireItem) meta(itemID string) ItemMeta {
	m := ItemMeta{ID: itemID}
	var media, mediaMeta, meta wireItemMetadata
	var mediaDuration flexFloat
	if w.Media != nil {
		media = w.Media.wireItemMetadata
		mediaDuration = w.Media.Duration
		if w.Media.Metadata != nil {
			mediaMeta = *w.Media.Metadata
		}
	}
	if w.Metadata != nil {
		meta = *w.Metadata
	}

	m.Title = firstNonEmpty(w.Title, w.Name, media.Title, mediaMeta.Title, meta.Title)
	m.Subtitle = firstNonEmpty(w.Subtitle, media.Subtitle, mediaMeta.Subtitle, meta.Subtitle)
	m.Authors = firstNames(w.Authors, w.Author, media.Authors, media.Author,
		mediaMeta.Authors, mediaMeta.Author, meta.Authors, meta.Author)
	m.Narrators = firstNames(w.Narrators, w.Narrator, media.Narrators, media.Narrator,
		mediaMeta.Narrators, mediaMeta.Narrator, meta.Narrators, meta.Narrator)
	m.DurationSeconds = float64(w.Duration)
	if m.DurationSeconds <= 0 {
		m.DurationSeconds = float64(mediaDuration)
	}
	return m
}

type wireListeningRow struct {
	UserID           flexString `json:"userId"`
	ID               flexString `json:"id"`
	ListeningSeconds flexFloat  `json:"listeningSeconds"`
}

type wireListeningTime struct {
	ByUser map[string]struct {
		ListeningSeconds flexFloat `json:"listeningSeconds"`
	} `json:"byUser"`
	Users []wireListeningRow `json:"users"`
}
