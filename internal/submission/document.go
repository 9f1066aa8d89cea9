package submission

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

const fallbackSlug = "event"

var (
	slugStrip  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slugify derives the URL-safe file-name stem of a title.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// GeneratedDocument is a rendered event document and where it should live.
type GeneratedDocument struct {
	Path    string
	Slug    string
	Content []byte
}

// FrontMatter is the metadata block of an event document as the content
// system reads it.
type FrontMatter struct {
	Title                string    `yaml:"title"`
	StartDate            string    `yaml:"start_date"`
	StartTime            string    `yaml:"start_time"`
	EndTime              string    `yaml:"end_time,omitempty"`
	Location             string    `yaml:"location"`
	EventType            []string  `yaml:"event_type"`
	AgeGroups            []string  `yaml:"age_groups"`
	Description          string    `yaml:"description"`
	RegistrationRequired bool      `yaml:"registration_required"`
	RegistrationLink     string    `yaml:"registration_link,omitempty"`
	Draft                bool      `yaml:"draft"`
	Date                 time.Time `yaml:"date"`
	SubmitterName        string    `yaml:"submitter_name"`
	SubmitterEmail       string    `yaml:"submitter_email"`
	SubmitterIdentity    string    `yaml:"submitter_identity"`
}

// Synthesizer renders validated submissions into event documents under a
// fixed directory.
type Synthesizer struct {
	eventsDir string
}

func NewSynthesizer(eventsDir string) *Synthesizer {
	return &Synthesizer{eventsDir: strings.TrimSuffix(eventsDir, "/")}
}

// CandidatePath returns "{dir}/{date}-{slug}.md", or with a "-{unixMillis}"
// suffix when a collision was detected.
func (s *Synthesizer) CandidatePath(startDate, slug string, suffix *time.Time) string {
	name := startDate + "-" + slug
	if suffix != nil {
		name += "-" + strconv.FormatInt(suffix.UnixMilli(), 10)
	}
	return path.Join(s.eventsDir, name+".md")
}

// Synthesize renders sub and places it at its candidate path. A non-nil
// suffix selects the collision path.
func (s *Synthesizer) Synthesize(sub ValidatedSubmission, identity string, now time.Time, suffix *time.Time) (GeneratedDocument, error) {
	content, err := s.Render(sub, identity, now)
	if err != nil {
		return GeneratedDocument{}, err
	}
	slug := Slugify(sub.Title)
	return GeneratedDocument{
		Path:    s.CandidatePath(sub.StartDate, slug, suffix),
		Slug:    slug,
		Content: content,
	}, nil
}

// Render produces the full document for sub. The output depends only on its
// arguments.
func (s *Synthesizer) Render(sub ValidatedSubmission, identity string, now time.Time) ([]byte, error) {
	fm, err := renderFrontMatter(sub, identity, now)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(renderSummary(sub))
	return buf.Bytes(), nil
}

func renderFrontMatter(sub ValidatedSubmission, identity string, now time.Time) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			value,
		)
	}

	add("title", quotedScalar(sub.Title))
	add("start_date", quotedScalar(sub.StartDate))
	add("start_time", quotedScalar(sub.StartTime))
	if sub.EndTime != "" {
		add("end_time", quotedScalar(sub.EndTime))
	}
	add("location", quotedScalar(sub.Location))
	add("event_type", flowSequence(sub.EventTypes))
	add("age_groups", flowSequence(sub.AgeGroups))
	add("description", blockScalar(sub.Description))
	add("registration_required", boolScalar(sub.RegistrationRequired))
	if sub.RegistrationLink != "" {
		add("registration_link", quotedScalar(sub.RegistrationLink))
	}
	add("draft", boolScalar(true))
	add("date", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: now.UTC().Format(time.RFC3339)})
	add("submitter_name", quotedScalar(sub.SubmitterName))
	add("submitter_email", quotedScalar(sub.SubmitterEmail))
	add("submitter_identity", quotedScalar(identity))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	return buf.Bytes(), nil
}

func quotedScalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: value}
}

// blockScalar renders multi-line text as a literal block. Text containing a
// line that reads as a front matter delimiter is double-quoted: line-based
// parsers match the closing "---" regardless of indentation.
func blockScalar(value string) *yaml.Node {
	for _, line := range strings.Split(value, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed == "---" || trimmed == "..." {
			return quotedScalar(value)
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.LiteralStyle, Value: value}
}

func boolScalar(value bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(value)}
}

func flowSequence(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, v := range values {
		seq.Content = append(seq.Content, quotedScalar(v))
	}
	return seq
}

func renderSummary(sub ValidatedSubmission) string {
	var b strings.Builder
	b.WriteString("This event was submitted through the public event submission form.\n\n")
	b.WriteString("**Event Details:**\n")
	fmt.Fprintf(&b, "- **When:** %s\n", sub.When())
	fmt.Fprintf(&b, "- **Where:** %s\n", sub.Location)
	fmt.Fprintf(&b, "- **Who:** %s\n", strings.Join(sub.AgeGroups, ", "))
	fmt.Fprintf(&b, "- **Type:** %s\n", strings.Join(sub.EventTypes, ", "))
	if sub.RegistrationRequired {
		b.WriteString("- **Registration Required:** Yes\n")
		if sub.RegistrationLink != "" {
			fmt.Fprintf(&b, "- **Registration Link:** %s\n", sub.RegistrationLink)
		}
	} else {
		b.WriteString("- **Registration Required:** No\n")
	}
	b.WriteString("\n**Description:**\n")
	b.WriteString(sub.Description)
	b.WriteString("\n")
	return b.String()
}

// ParseDocument reads an event document back into its front matter and body.
func ParseDocument(content []byte) (FrontMatter, string, error) {
	var fm FrontMatter
	body, err := frontmatter.MustParse(bytes.NewReader(content), &fm)
	if err != nil {
		return FrontMatter{}, "", fmt.Errorf("parse event document: %w", err)
	}
	return fm, string(body), nil
}
