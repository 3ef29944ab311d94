package settings

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	infraconfig "github.com/jonesrussell/north-cloud/sitemap/infrastructure/config"
	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

func newValidationError(field, message string) *infraconfig.ValidationError {
	return &infraconfig.ValidationError{Field: field, Message: message}
}

// Normalize canonicalizes language tags and fills empty fields with defaults.
func (s *Settings) Normalize() error {
	langs := make([]string, 0, len(s.Languages))
	for _, code := range s.Languages {
		canonical, err := canonicalLanguage(code)
		if err != nil {
			return err
		}
		if !slices.Contains(langs, canonical) {
			langs = append(langs, canonical)
		}
	}
	s.Languages = langs

	if s.DefaultLanguage == "" && len(s.Languages) > 0 {
		s.DefaultLanguage = s.Languages[0]
	}
	if s.DefaultLanguage != "" {
		canonical, err := canonicalLanguage(s.DefaultLanguage)
		if err != nil {
			return err
		}
		s.DefaultLanguage = canonical
	}

	excluded := make([]string, 0, len(s.ExcludedLanguages))
	for _, code := range s.ExcludedLanguages {
		canonical, err := canonicalLanguage(code)
		if err != nil {
			return err
		}
		excluded = append(excluded, canonical)
	}
	s.ExcludedLanguages = excluded

	if len(s.Contexts) == 0 {
		s.Contexts = []string{DefaultContext}
	}
	for i := range s.CustomLinks {
		if s.CustomLinks[i].Context == "" {
			s.CustomLinks[i].Context = DefaultContext
		}
	}
	if s.CronSchedule == "" {
		s.CronSchedule = DefaultCronSchedule
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.Categories == nil {
		s.Categories = make(Categories)
	}

	return nil
}

func canonicalLanguage(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", invalid("languages", "%q is not a valid language tag", code)
	}
	return tag.String(), nil
}

// Validate checks every setting. The returned error wraps ErrInvalid.
func (s *Settings) Validate() error {
	if err := infraconfig.ValidateAbsoluteURL("base_url", s.BaseURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if s.MaxLinks < 0 {
		return invalid("max_links", "must be zero or a positive integer")
	}
	if s.BatchProcessLimit < 1 {
		return invalid("batch_process_limit", "must be a positive integer")
	}
	if len(s.Languages) == 0 {
		return invalid("languages", "at least one language is required")
	}
	if !slices.Contains(s.Languages, s.DefaultLanguage) {
		return invalid("default_language", "%q is not a configured language", s.DefaultLanguage)
	}
	if err := validateContexts(s.Contexts); err != nil {
		return err
	}
	if _, err := ParseSchedule(s.CronSchedule); err != nil {
		return invalid("cron_schedule", "%v", err)
	}
	if strings.Contains(s.GeneratedBy, "--") {
		return invalid("generated_by", "must not contain \"--\"")
	}

	if err := validateCategories("categories", s.Categories); err != nil {
		return err
	}
	for name, categories := range s.ContextCategories {
		field := "context_categories." + name
		if !slices.Contains(s.Contexts, name) {
			return invalid(field, "%q is not a configured context", name)
		}
		if err := validateCategories(field, categories); err != nil {
			return err
		}
	}

	for i, link := range s.CustomLinks {
		if err := validateCustomLink(fmt.Sprintf("custom_links[%d]", i), link); err != nil {
			return err
		}
		if !s.HasLinkContext(link.Context) {
			return invalid(fmt.Sprintf("custom_links[%d].context", i), "%q is not a configured context", link.Context)
		}
	}

	return nil
}

func validateCategories(prefix string, categories Categories) error {
	for cat, subs := range categories {
		for sub, b := range subs {
			field := fmt.Sprintf("%s.%s.%s", prefix, cat, sub)
			if err := validateItem(field, b.ItemSettings); err != nil {
				return err
			}
			for id, item := range b.Items {
				if err := validateItem(field+".items."+id, item); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ParseSchedule parses a standard five-field cron expression or a descriptor such as "@every 1h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// HasLinkContext reports whether a custom link may target the named context.
func (s *Settings) HasLinkContext(name string) bool {
	return name == "" || name == DefaultContext || slices.Contains(s.Contexts, name)
}

func validateContexts(contexts []string) error {
	seen := make(map[string]bool, len(contexts))
	for _, c := range contexts {
		if c == "" || strings.ContainsAny(c, "/?#") {
			return invalid("contexts", "%q is not a valid context name", c)
		}
		if seen[c] {
			return invalid("contexts", "%q is listed twice", c)
		}
		seen[c] = true
	}
	return nil
}

func validateItem(field string, item ItemSettings) error {
	if _, err := ParsePriority(item.Priority); err != nil {
		return invalid(field+".priority", "%v is outside 0.0 to 1.0", float64(item.Priority))
	}
	if !item.ChangeFrequency.IsValid() {
		return invalid(field+".changefreq", "%q is not a valid change frequency", item.ChangeFrequency)
	}
	return nil
}

// ValidateCustomLink checks a single custom link before it is added.
func ValidateCustomLink(link CustomLink) error {
	return validateCustomLink("custom_link", link)
}

func validateCustomLink(field string, link CustomLink) error {
	if !strings.HasPrefix(link.Path, "/") {
		return invalid(field+".path", "must start with \"/\"")
	}
	if _, err := domain.NormalizePath(link.Path); err != nil {
		return invalid(field+".path", "%v", err)
	}
	return validateItem(field, ItemSettings{Priority: link.Priority, ChangeFrequency: link.ChangeFrequency})
}

// ApplyGlobal sets global settings from loosely typed values such as a decoded JSON body.
// Unknown keys are rejected.
func (s *Settings) ApplyGlobal(values map[string]any) error {
	for key, v := range values {
		if err := s.applyGlobal(key, v); err != nil {
			return err
		}
	}
	if err := s.Normalize(); err != nil {
		return err
	}
	return s.Validate()
}

func (s *Settings) applyGlobal(key string, v any) error {
	var err error
	switch key {
	case "base_url":
		s.BaseURL, err = asString(key, v)
	case "max_links":
		s.MaxLinks, err = ParseLinkLimit(v)
	case "batch_process_limit":
		s.BatchProcessLimit, err = ParseBatchSize(key, v)
	case "cron_generate":
		s.CronGenerate, err = asBool(key, v)
	case "cron_schedule":
		s.CronSchedule, err = asString(key, v)
	case "remove_duplicates":
		s.RemoveDuplicates, err = asBool(key, v)
	case "remove_duplicates_by_context":
		s.RemoveDuplicatesByContext, err = asBool(key, v)
	case "skip_untranslated":
		s.SkipUntranslated, err = asBool(key, v)
	case "languages":
		s.Languages, err = asStrings(key, v)
	case "default_language":
		s.DefaultLanguage, err = asString(key, v)
	case "excluded_languages":
		s.ExcludedLanguages, err = asStrings(key, v)
	case "contexts":
		s.Contexts, err = asStrings(key, v)
	case "generated_by":
		s.GeneratedBy, err = asString(key, v)
	default:
		err = invalid(key, "unknown setting")
	}
	return err
}

func asString(field string, v any) (string, error) {
	str, ok := v.(string)
	if !ok {
		return "", invalid(field, "must be a string")
	}
	return str, nil
}

func asBool(field string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, invalid(field, "must be a boolean")
	}
	return b, nil
}

func asStrings(field string, v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, invalid(field, "must be a list of strings")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, invalid(field, "must be a list of strings")
	}
}
