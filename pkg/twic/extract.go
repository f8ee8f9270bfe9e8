package twic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/japaniel/twicsync/pkg/doctree"
	"go.uber.org/zap"
)

const (
	countHeader       = "Games Section"
	forthcomingEvents = "Forthcoming Events and Links"
	timeControlPrefix = "Time Control:"
)

var (
	headingPrefixRe = regexp.MustCompile(`^\d+\)\s+`)
	digitsRe        = regexp.MustCompile(`^\d+$`)
)

// Extractor builds Metadata from an index document.
type Extractor struct {
	Overrides CountOverrides
	Logger    *zap.Logger
}

// NewExtractor returns an Extractor. A nil overrides table disables corrections.
func NewExtractor(overrides CountOverrides, logger *zap.Logger) *Extractor {
	if overrides == nil {
		overrides = noOverrides{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{Overrides: overrides, Logger: logger}
}

// Extract returns the ordered events of archive. When ErrNoEvents is
// returned the partially filled Metadata is returned with it so callers can
// still report EmptyEvents.
func (x *Extractor) Extract(root doctree.Node, archive int) (*Metadata, error) {
	counts, err := x.gameCounts(root, archive)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{Archive: archive}
	for _, h := range root.FindAll("h2") {
		name := headingName(h)
		if name == "" || name == forthcomingEvents {
			continue
		}
		count, ok := counts[name]
		if !ok || count == 0 {
			continue
		}

		sections := collectSections(h)
		if len(sections) == 0 {
			x.Logger.Info("event has no sections",
				zap.Int("archive", archive),
				zap.String("event", name),
				zap.Int("count", count))
			meta.EmptyEvents = append(meta.EmptyEvents, name)
			continue
		}
		meta.Events = append(meta.Events, EventDescriptor{
			EventName:         name,
			ExpectedGameCount: count,
			Sections:          sections,
		})
	}

	if len(meta.Events) == 0 {
		return meta, fmt.Errorf("archive %d: %w", archive, ErrNoEvents)
	}
	return meta, nil
}

// Validate rejects metadata with threshold or more section-less events.
func Validate(meta *Metadata, threshold int) error {
	if threshold <= 0 {
		threshold = DefaultEmptyEventThreshold
	}
	if n := len(meta.EmptyEvents); n >= threshold {
		return fmt.Errorf("archive %d: %w: %d events (%s)", meta.Archive, ErrDegradedMetadata, n, strings.Join(meta.EmptyEvents, "; "))
	}
	return nil
}

// gameCounts reads the results summary table into event name -> count.
func (x *Extractor) gameCounts(root doctree.Node, archive int) (map[string]int, error) {
	table := findCountTable(root)
	if table == nil {
		return nil, fmt.Errorf("archive %d: %w", archive, ErrResultsTableNotFound)
	}

	counts := make(map[string]int)
	for _, row := range tableRows(table)[1:] {
		cells := row.Children()
		if len(cells) != 2 {
			continue
		}
		event := doctree.CleanText(cells[0])
		if event == "" {
			continue
		}
		if n, ok := x.Overrides.Lookup(archive, event); ok {
			counts[event] = n
			continue
		}
		raw := doctree.CleanText(cells[1])
		n, err := parseCount(raw)
		if err != nil {
			x.Logger.Warn("unparseable game count",
				zap.Int("archive", archive),
				zap.String("event", event),
				zap.String("count", raw))
			continue
		}
		counts[event] = n
	}

	if len(counts) == 0 {
		return nil, fmt.Errorf("archive %d: %w", archive, ErrNoGameCounts)
	}
	return counts, nil
}

func findCountTable(root doctree.Node) doctree.Node {
	for _, table := range root.FindAll("table") {
		rows := tableRows(table)
		if len(rows) > 0 && rowText(rows[0]) == countHeader {
			return table
		}
	}
	return nil
}

func tableRows(table doctree.Node) []doctree.Node {
	return table.FindAll("tr")
}

func rowText(row doctree.Node) string {
	cells := row.Children()
	if len(cells) == 0 {
		return doctree.CleanText(row)
	}
	parts := make([]string, 0, len(cells))
	for _, c := range cells {
		if t := doctree.CleanText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// parseCount reads the first word of a count cell, which must be a plain
// number ("270 games" is 270, "1,200" is rejected).
func parseCount(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || !digitsRe.MatchString(fields[0]) {
		return 0, fmt.Errorf("count %q is not a number", s)
	}
	return strconv.Atoi(fields[0])
}

func headingName(h doctree.Node) string {
	return headingPrefixRe.ReplaceAllString(doctree.CleanText(h), "")
}

// collectSections walks the heading's siblings up to the next heading.
func collectSections(h doctree.Node) []SectionDescriptor {
	var sections []SectionDescriptor
	for n := h.NextSibling(); n != nil && n.Tag() != "h2"; n = n.NextSibling() {
		if n.Tag() == "ul" && n.HasClass("tourn_details") {
			sections = append(sections, parseSection(n))
		}
	}
	return sections
}

func parseSection(details doctree.Node) SectionDescriptor {
	field := func(class, missing string) string {
		li := details.Find("li", class)
		if li == nil {
			return missing
		}
		if text := doctree.CleanText(li); text != "" {
			return text
		}
		return missing
	}

	s := SectionDescriptor{
		EventName:   field("Event", UnknownField),
		StartDate:   field("StartDate", UnknownField),
		EndDate:     field("EndDate", UnknownField),
		Place:       field("Place", UnknownField),
		Nation:      field("NAT", UnknownField),
		TimeControl: field("TimeControl", UnknownTimeControl),
	}
	s.TimeControl = strings.TrimSpace(strings.TrimPrefix(s.TimeControl, timeControlPrefix))
	if s.TimeControl == "" {
		s.TimeControl = UnknownTimeControl
	}
	s.Site = DeriveSite(s.Place, s.Nation)
	return s
}
