// Package markdown reads and writes the events document: a front matter
// block followed by "# Upcoming Events" and "# Past Events" sections of
// fixed-shape event entries.
package markdown

import (
	"fmt"
	"strings"
	"time"

	"events_syncer/internal/domain"
)

const (
	delimiter       = "---"
	upcomingHeading = "# Upcoming Events"
	pastHeading     = "# Past Events"
	escape          = `\`

	// DateLayout is how dates are written. Parsing also accepts unpadded days.
	DateLayout      = "Jan 02, 2006"
	parseDateLayout = "Jan 2, 2006"
)

// Codec implements the text format. It holds no state.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

// Decode splits text into its front matter (verbatim) and the events of
// both sections. Entries that do not match the event shape are skipped; a
// malformed date in a matching entry fails the whole decode.
func (c *Codec) Decode(text string) (domain.Document, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	first, second := -1, -1
	for i, line := range lines {
		if strings.TrimRight(line, " \t") != delimiter {
			continue
		}
		if first < 0 {
			first = i
			continue
		}
		second = i
		break
	}
	if second < 0 {
		return domain.Document{}, fmt.Errorf("%w: front matter delimiters not found", domain.ErrMalformedDocument)
	}

	var frontMatter string
	if second > first+1 {
		frontMatter = strings.Join(lines[first+1:second], "\n") + "\n"
	}

	body := lines[second+1:]

	upcomingBlock, ok := sectionBlock(body, upcomingHeading)
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: missing %q", domain.ErrMalformedDocument, upcomingHeading)
	}
	pastBlock, ok := sectionBlock(body, pastHeading)
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: missing %q", domain.ErrMalformedDocument, pastHeading)
	}

	upcoming, err := parseBlock(upcomingBlock, domain.SectionUpcoming)
	if err != nil {
		return domain.Document{}, fmt.Errorf("upcoming events: %w", err)
	}
	past, err := parseBlock(pastBlock, domain.SectionPast)
	if err != nil {
		return domain.Document{}, fmt.Errorf("past events: %w", err)
	}

	return domain.Document{
		FrontMatter: frontMatter,
		Upcoming:    upcoming,
		Past:        past,
	}, nil
}

// Encode renders the document. Events go to the section named by their
// Section field, in the order given.
func (c *Codec) Encode(frontMatter string, events []domain.Event) string {
	var b strings.Builder

	b.WriteString(delimiter + "\n")
	b.WriteString(frontMatter)
	if frontMatter != "" && !strings.HasSuffix(frontMatter, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(delimiter + "\n\n")

	b.WriteString(upcomingHeading + "\n\n")
	b.WriteString(renderBlock(events, domain.SectionUpcoming))
	b.WriteString("\n\n")

	b.WriteString(pastHeading + "\n\n")
	b.WriteString(renderBlock(events, domain.SectionPast))
	b.WriteString("\n")

	return b.String()
}

// sectionBlock returns the lines after heading up to the next top-level
// heading.
func sectionBlock(lines []string, heading string) ([]string, bool) {
	start := -1
	for i, line := range lines {
		if strings.TrimRight(line, " \t") == heading {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "# ") {
			end = i
			break
		}
	}
	return lines[start:end], true
}

func parseBlock(lines []string, section domain.Section) ([]domain.Event, error) {
	var events []domain.Event
	for i := 0; i < len(lines); {
		if !strings.HasPrefix(lines[i], "## ") {
			i++
			continue
		}

		event, next, ok, err := parseEvent(lines, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			i++
			continue
		}

		event.Section = section
		events = append(events, event)
		i = next
	}
	return events, nil
}

// parseEvent matches one entry starting at the "## " line. It reports ok=false
// when the lines do not have the entry shape.
func parseEvent(lines []string, start int) (domain.Event, int, bool, error) {
	if start+4 > len(lines) {
		return domain.Event{}, 0, false, nil
	}

	name := strings.TrimSpace(strings.TrimPrefix(lines[start], "## "))
	id, ok := field(lines[start+1], "ID:")
	if !ok || id == "" {
		return domain.Event{}, 0, false, nil
	}
	dateValue, ok := field(lines[start+2], "Date:")
	if !ok {
		return domain.Event{}, 0, false, nil
	}
	if strings.TrimSpace(lines[start+3]) != "Description:" {
		return domain.Event{}, 0, false, nil
	}

	end := start + 4
	for ; end < len(lines); end++ {
		if strings.HasPrefix(lines[end], "Location:") {
			break
		}
		if strings.HasPrefix(lines[end], "## ") {
			return domain.Event{}, 0, false, nil
		}
	}
	if end == len(lines) {
		return domain.Event{}, 0, false, nil
	}
	location, _ := field(lines[end], "Location:")

	date, err := time.Parse(parseDateLayout, dateValue)
	if err != nil {
		return domain.Event{}, 0, false, fmt.Errorf("%w: event %s: %q", domain.ErrDateFormat, id, dateValue)
	}

	return domain.Event{
		ID:          id,
		Name:        name,
		Date:        date,
		Description: unescapeDescription(lines[start+4 : end]),
		Location:    location,
	}, end + 1, true, nil
}

func field(line, label string) (string, bool) {
	value, ok := strings.CutPrefix(line, label)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func renderBlock(events []domain.Event, section domain.Section) string {
	var entries []string
	for _, e := range events {
		if e.Section != section {
			continue
		}
		entries = append(entries, renderEvent(e))
	}
	return strings.Join(entries, "\n\n")
}

func renderEvent(e domain.Event) string {
	return fmt.Sprintf("## %s\nID: %s\nDate: %s\nDescription:\n%s\nLocation: %s",
		e.Name, e.ID, e.Date.Format(DateLayout), escapeDescription(e.Description), e.Location)
}

// Description lines that would read as a heading or as the Location line get
// a leading backslash. Lines already starting with one get another, so the
// escape always reverses.
func escapeDescription(description string) string {
	lines := strings.Split(description, "\n")
	for i, line := range lines {
		if needsEscape(line) {
			lines[i] = escape + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeDescription(lines []string) string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if rest, ok := strings.CutPrefix(line, escape); ok && needsEscape(rest) {
			line = rest
		}
		out[i] = line
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func needsEscape(line string) bool {
	return strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "Location:") ||
		strings.HasPrefix(line, escape)
}
