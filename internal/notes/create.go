package notes

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/parser"
)

// Naming-pattern placeholders.
const (
	PlaceholderNumber    = "{number}"
	PlaceholderTitle     = "{title}"
	PlaceholderExtension = "{extension}"
)

// CreateRequest describes a new note. An empty Pattern names the file
// directly after the title.
type CreateRequest struct {
	Title   string
	Content string
	Type    models.NoteType
	Pattern string
}

// Validate validates the request.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.By(func(any) error {
			if strings.ContainsAny(r.Title, `/\`) {
				return errors.New("must not contain path separators")
			}
			return nil
		})),
		validation.Field(&r.Type, validation.In(models.Markdown, models.PlainText)),
		validation.Field(&r.Pattern, validation.By(func(any) error {
			return ValidatePattern(r.Pattern)
		})),
	)
}

// ValidatePattern accepts an empty pattern or one containing {title}.
func ValidatePattern(p string) error {
	if p != "" && !strings.Contains(p, PlaceholderTitle) {
		return fmt.Errorf("naming pattern must contain %s", PlaceholderTitle)
	}
	return nil
}

// Create writes a new note and returns it. A Markdown note whose content
// does not already start with the title gets a "# Title" heading so that
// the derived title matches the requested one.
func (s *Store) Create(req CreateRequest) (*models.Note, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Type == "" {
		req.Type = models.Markdown
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("notes: create: %w: %w", apperr.ErrInvalidInput, err)
	}

	name, err := s.filename(req)
	if err != nil {
		return nil, err
	}

	content := req.Content
	if req.Type == models.Markdown && parser.Title(content, models.Markdown, name) != req.Title {
		heading := "# " + req.Title + "\n"
		if content != "" {
			heading += "\n"
		}
		content = heading + content
	}

	if err := s.fs.Create(name, []byte(content)); err != nil {
		return nil, fmt.Errorf("notes: create: %w", err)
	}
	return s.load(name)
}

func (s *Store) filename(req CreateRequest) (string, error) {
	ext := req.Type.Extension()
	if req.Pattern == "" {
		return req.Title + "." + ext, nil
	}

	number := 0
	if strings.Contains(req.Pattern, PlaceholderNumber) {
		names, err := s.fs.RootNames()
		if err != nil {
			return "", fmt.Errorf("notes: create: %w", err)
		}
		number = nextNumber(req.Pattern, names)
	}

	name := strings.NewReplacer(
		PlaceholderNumber, strconv.Itoa(number),
		PlaceholderTitle, req.Title,
		PlaceholderExtension, ext,
	).Replace(req.Pattern)
	if typ, ok := models.TypeFromPath(name); !ok || typ != req.Type {
		name += "." + ext
	}
	if path.IsAbs(name) {
		return "", fmt.Errorf("notes: create: pattern yields absolute path %q: %w", name, apperr.ErrInvalidInput)
	}
	return name, nil
}

var placeholderRe = regexp.MustCompile(`\{(number|title|extension)\}`)

// patternRegexp turns a naming pattern into an anchored expression whose
// first group captures the {number} placeholder.
func patternRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	captured := false
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		switch pattern[loc[0]:loc[1]] {
		case PlaceholderNumber:
			if captured {
				b.WriteString(`\d+`)
			} else {
				b.WriteString(`(\d+)`)
				captured = true
			}
		default:
			b.WriteString(`.*`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// nextNumber is one more than the largest number among names matching pattern.
func nextNumber(pattern string, names []string) int {
	re := patternRegexp(pattern)
	highest := 0
	for _, name := range names {
		m := re.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}
