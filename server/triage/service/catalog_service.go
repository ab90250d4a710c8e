package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"triage_server/server/common/infra/cache"
	cmnlog "triage_server/server/common/log"
	"triage_server/server/triage/domain"
)

const (
	cacheKeyPresetMessages = "triage:presets:messages"
	cacheKeyPresetEmails   = "triage:presets:emails"
	cacheKeyTeam           = "triage:team"
)

type CatalogStore interface {
	ListPresetMessages(ctx context.Context) ([]domain.PresetMessage, error)
	ListPresetEmails(ctx context.Context) ([]domain.PresetEmail, error)
	ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error)
	UpsertPresets(ctx context.Context, messages []domain.PresetMessage, emails []domain.PresetEmail) error
}

// CatalogService serves preset templates and the team directory, read-through cached
// in Redis when a client is configured. Cache failures fall back to the store.
type CatalogService struct {
	store CatalogStore
	cache *redis.Client
	ttl   time.Duration
}

func NewCatalogService(store CatalogStore, cacheClient *redis.Client, ttl time.Duration) *CatalogService {
	return &CatalogService{store: store, cache: cacheClient, ttl: ttl}
}

func (s *CatalogService) ListPresetMessages(ctx context.Context) ([]domain.PresetMessage, error) {
	return readThrough(ctx, s, cacheKeyPresetMessages, s.store.ListPresetMessages)
}

func (s *CatalogService) ListPresetEmails(ctx context.Context) ([]domain.PresetEmail, error) {
	return readThrough(ctx, s, cacheKeyPresetEmails, s.store.ListPresetEmails)
}

func (s *CatalogService) ListTeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	return readThrough(ctx, s, cacheKeyTeam, s.store.ListTeamMembers)
}

func RenderPresetMessages(items []domain.PresetMessage, report domain.EmergencyReport) []domain.PresetMessage {
	out := make([]domain.PresetMessage, 0, len(items))
	for _, item := range items {
		out = append(out, item.Render(report))
	}
	return out
}

func RenderPresetEmails(items []domain.PresetEmail, report domain.EmergencyReport) []domain.PresetEmail {
	out := make([]domain.PresetEmail, 0, len(items))
	for _, item := range items {
		out = append(out, item.Render(report))
	}
	return out
}

func (s *CatalogService) SeedPresets(ctx context.Context, file PresetFile) error {
	if err := s.store.UpsertPresets(ctx, file.Messages, file.Emails); err != nil {
		return fmt.Errorf("upsert presets: %w", err)
	}
	s.Invalidate(ctx, cacheKeyPresetMessages, cacheKeyPresetEmails)
	cmnlog.Infof("seeded presets messages=%d emails=%d", len(file.Messages), len(file.Emails))
	return nil
}

// InvalidateTeam drops the cached team directory after a STAFF or ADMIN account changes.
func (s *CatalogService) InvalidateTeam(ctx context.Context) {
	s.Invalidate(ctx, cacheKeyTeam)
}

// Invalidate drops cached entries; with no keys it drops everything the service caches.
func (s *CatalogService) Invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if len(keys) == 0 {
		keys = []string{cacheKeyPresetMessages, cacheKeyPresetEmails, cacheKeyTeam}
	}
	if err := cache.Delete(ctx, s.cache, keys...); err != nil {
		cmnlog.Warnf("invalidate catalog cache: %v", err)
	}
}

func readThrough[T any](ctx context.Context, s *CatalogService, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if s.cache != nil {
		var cached []T
		err := cache.GetJSON(ctx, s.cache, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			cmnlog.Warnf("catalog cache read key=%s: %v", key, err)
		}
	}

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, items, s.ttl); err != nil {
			cmnlog.Warnf("catalog cache write key=%s: %v", key, err)
		}
	}
	return items, nil
}

// PresetFile is the YAML seed format for preset templates.
type PresetFile struct {
	Messages []domain.PresetMessage
	Emails   []domain.PresetEmail
}

type presetFileYAML struct {
	Messages []struct {
		Label    string `yaml:"label"`
		Content  string `yaml:"content"`
		Category string `yaml:"category"`
		IsActive *bool  `yaml:"isActive"`
	} `yaml:"messages"`
	Emails []struct {
		Label    string `yaml:"label"`
		Subject  string `yaml:"subject"`
		BodyHTML string `yaml:"bodyHtml"`
		BodyText string `yaml:"bodyText"`
		Category string `yaml:"category"`
		IsActive *bool  `yaml:"isActive"`
	} `yaml:"emails"`
}

func LoadPresetFile(path string) (PresetFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PresetFile{}, fmt.Errorf("read preset file: %w", err)
	}
	return ParsePresetFile(raw)
}

// ParsePresetFile decodes preset text verbatim; "$" is literal. isActive defaults to true.
func ParsePresetFile(raw []byte) (PresetFile, error) {
	var doc presetFileYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return PresetFile{}, fmt.Errorf("parse preset file: %w", err)
	}

	verr := &domain.ValidationError{}
	out := PresetFile{}
	seen := map[string]struct{}{}
	for i, m := range doc.Messages {
		field := fmt.Sprintf("messages[%d]", i)
		if strings.TrimSpace(m.Label) == "" || strings.TrimSpace(m.Content) == "" {
			verr.Add(field, "label and content are required")
			continue
		}
		if _, dup := seen["m:"+m.Label]; dup {
			verr.Add(field, "duplicate label "+m.Label)
			continue
		}
		seen["m:"+m.Label] = struct{}{}
		out.Messages = append(out.Messages, domain.PresetMessage{
			Label: m.Label, Content: m.Content, Category: m.Category, IsActive: m.IsActive == nil || *m.IsActive,
		})
	}
	for i, e := range doc.Emails {
		field := fmt.Sprintf("emails[%d]", i)
		if strings.TrimSpace(e.Label) == "" || strings.TrimSpace(e.Subject) == "" || strings.TrimSpace(e.BodyHTML) == "" || strings.TrimSpace(e.BodyText) == "" {
			verr.Add(field, "label, subject, bodyHtml and bodyText are required")
			continue
		}
		if _, dup := seen["e:"+e.Label]; dup {
			verr.Add(field, "duplicate label "+e.Label)
			continue
		}
		seen["e:"+e.Label] = struct{}{}
		out.Emails = append(out.Emails, domain.PresetEmail{
			Label: e.Label, Subject: e.Subject, BodyHTML: e.BodyHTML, BodyText: e.BodyText,
			Category: e.Category, IsActive: e.IsActive == nil || *e.IsActive,
		})
	}
	if err := verr.OrNil(); err != nil {
		return PresetFile{}, err
	}
	return out, nil
}
