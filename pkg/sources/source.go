package sources

import (
	"errors"
	"fmt"
	"strings"
)

// Package sources retrieves the monitored listing and turns it into entries.

// Source describes the monitored listing page.
type Source struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	URL  string `json:"url" yaml:"url"`

	TableSelector string `json:"table_selector" yaml:"table_selector"`
	RowSelector   string `json:"row_selector" yaml:"row_selector"`
	// RowLimit keeps only the first rows of the listing; 0 keeps all.
	RowLimit    int `json:"row_limit" yaml:"row_limit"`
	TitleColumn int `json:"title_column" yaml:"title_column"`
	DateColumn  int `json:"date_column" yaml:"date_column"`
	LinkColumn  int `json:"link_column" yaml:"link_column"`

	ConditionalFetch bool           `json:"conditional_fetch" yaml:"conditional_fetch"`
	Config           map[string]any `json:"config" yaml:"config"`
}

const (
	TypeHTMLTable = "html_table"
	TypeRSS       = "rss"

	defaultTableSelector = "table.table-striped"
	defaultRowSelector   = "tbody tr"
)

// Sanitize trims fields and fills the defaults of the original notice table.
func Sanitize(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.URL = strings.TrimSpace(s.URL)
	s.TableSelector = strings.TrimSpace(s.TableSelector)
	s.RowSelector = strings.TrimSpace(s.RowSelector)

	if s.Type == "" {
		s.Type = TypeHTMLTable
	}
	if s.TableSelector == "" {
		s.TableSelector = defaultTableSelector
	}
	if s.RowSelector == "" {
		s.RowSelector = defaultRowSelector
	}
	if s.TitleColumn == 0 && s.DateColumn == 0 && s.LinkColumn == 0 {
		s.TitleColumn, s.DateColumn, s.LinkColumn = 0, 1, 2
	}
	if s.Config == nil {
		s.Config = map[string]any{}
	}
	return s
}

// Validate checks that required fields are present.
func Validate(s Source) error {
	if s.ID == "" {
		return errors.New("source id is required")
	}
	if s.URL == "" {
		return fmt.Errorf("url is required for source %q", s.ID)
	}
	if s.RowLimit < 0 {
		return fmt.Errorf("row_limit must not be negative for source %q", s.ID)
	}
	if s.TitleColumn < 0 || s.DateColumn < 0 || s.LinkColumn < 0 {
		return fmt.Errorf("column indexes must not be negative for source %q", s.ID)
	}
	return nil
}

// minCells is the number of cells a row needs to carry every configured column.
func (s Source) minCells() int {
	n := s.TitleColumn
	if s.DateColumn > n {
		n = s.DateColumn
	}
	if s.LinkColumn > n {
		n = s.LinkColumn
	}
	return n + 1
}

// ConfigString returns the trimmed string value for key from source.Config or a fallback.
func ConfigString(cfg Source, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"
)

// Headers builds the common request headers from a source config (skips empty values).
func Headers(cfg Source) map[string]string {
	headers := make(map[string]string, 6)

	if v := ConfigString(cfg, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}
	if v := ConfigString(cfg, ConfigCacheControlKey, ""); v != "" {
		headers["Cache-Control"] = v
	}

	return headers
}
