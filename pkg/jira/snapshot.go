package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/defectscope/pkg/release"
	"github.com/Sumatoshi-tech/defectscope/pkg/ticket"
)

// ErrUnknownFormat is returned for snapshot paths with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// Snapshot extensions.
const (
	ExtCompressedJSON = ".json.lz4"
	ExtJSON           = ".json"
	ExtYAML           = ".yaml"
	ExtYML            = ".yml"
)

// Snapshot is the issue-tracker state a run works from.
type Snapshot struct {
	Project   string            `json:"project"    yaml:"project"`
	FetchedAt time.Time         `json:"fetched_at" yaml:"fetched_at"`
	Releases  []SnapshotRelease `json:"releases"   yaml:"releases"`
	Tickets   []SnapshotTicket  `json:"tickets"    yaml:"tickets"`
}

// SnapshotRelease is a release with its date as YYYY-MM-DD.
type SnapshotRelease struct {
	Name string `json:"name" yaml:"name"`
	Date string `json:"date" yaml:"date"`
}

// SnapshotTicket is a fixed bug with dates as YYYY-MM-DD.
type SnapshotTicket struct {
	Key      string   `json:"key"                yaml:"key"`
	Created  string   `json:"created"            yaml:"created"`
	Resolved string   `json:"resolved"           yaml:"resolved"`
	Affected []string `json:"affected,omitempty" yaml:"affected,omitempty"`
}

// NewSnapshot captures releases and tickets.
func NewSnapshot(project string, releases []release.Release, tickets []ticket.Ticket, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		Project:   project,
		FetchedAt: fetchedAt.UTC(),
		Releases:  make([]SnapshotRelease, 0, len(releases)),
		Tickets:   make([]SnapshotTicket, 0, len(tickets)),
	}

	for _, r := range releases {
		s.Releases = append(s.Releases, SnapshotRelease{Name: r.Name, Date: formatDate(r.Date)})
	}

	for _, t := range tickets {
		s.Tickets = append(s.Tickets, SnapshotTicket{
			Key:      t.Key,
			Created:  formatDate(t.Created),
			Resolved: formatDate(t.Resolved),
			Affected: t.AffectedReleases,
		})
	}

	return s
}

// ReleaseList converts the snapshot releases. Releases with a bad date are dropped.
func (s *Snapshot) ReleaseList() []release.Release {
	out := make([]release.Release, 0, len(s.Releases))

	for _, r := range s.Releases {
		date, err := parseDate(r.Date)
		if err != nil {
			continue
		}

		out = append(out, release.Release{Name: r.Name, Date: date})
	}

	return out
}

// TicketList converts the snapshot tickets. Bad dates become zero times.
func (s *Snapshot) TicketList() []ticket.Ticket {
	out := make([]ticket.Ticket, 0, len(s.Tickets))

	for _, st := range s.Tickets {
		t := ticket.Ticket{
			ID:               KeyNumber(st.Key),
			Key:              st.Key,
			AffectedReleases: st.Affected,
		}

		t.Created, _ = parseDate(st.Created)
		t.Resolved, _ = parseDate(st.Resolved)

		out = append(out, t)
	}

	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(dateLayout)
}

// SaveSnapshot writes the snapshot in the format chosen by the path extension.
func SaveSnapshot(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	err = EncodeSnapshot(f, formatOf(path), s)
	if err != nil {
		_ = f.Close()

		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads a snapshot in the format chosen by the path extension.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return DecodeSnapshot(f, formatOf(path))
}

func formatOf(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ExtCompressedJSON) {
		return ExtCompressedJSON
	}

	return filepath.Ext(lower)
}

// EncodeSnapshot writes s to w in the given format (one of the Ext constants).
func EncodeSnapshot(w io.Writer, format string, s *Snapshot) error {
	switch format {
	case ExtCompressedJSON:
		zw := lz4.NewWriter(w)

		err := json.NewEncoder(zw).Encode(s)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		err = zw.Close()
		if err != nil {
			return fmt.Errorf("flush lz4 stream: %w", err)
		}

		return nil
	case ExtJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(s)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		return nil
	case ExtYAML, ExtYML:
		enc := yaml.NewEncoder(w)

		err := enc.Encode(s)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		err = enc.Close()
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// DecodeSnapshot reads a snapshot from r in the given format.
func DecodeSnapshot(r io.Reader, format string) (*Snapshot, error) {
	var s Snapshot

	var err error

	switch format {
	case ExtCompressedJSON:
		err = json.NewDecoder(lz4.NewReader(r)).Decode(&s)
	case ExtJSON:
		err = json.NewDecoder(r).Decode(&s)
	case ExtYAML, ExtYML:
		err = yaml.NewDecoder(r).Decode(&s)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return &s, nil
}
