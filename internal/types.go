package internal

import "time"

type ShortLink struct {
	Slug      string    `json:"slug"`
	TargetURL string    `json:"target_url"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *ShortLink) Clone() *ShortLink {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
