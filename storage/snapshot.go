package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"car_scrooper/models"
)

const (
	CurrentSnapshotFile  = "offers_list_new.json"
	PreviousSnapshotFile = "offers_list_old.json"
	SoldReportFile       = "sold_cars.json"
	TotalsFile           = "cars.json"
	DealerDirectoryFile  = "dealers_list.txt"
	OffersReportFile     = "offers.html"
	TotalsReportFile     = "cars.html"
)

var ErrNoSnapshot = errors.New("no snapshot")

// SnapshotStore keeps at most two snapshot generations of one site plus the
// reports derived from them, all as files in one directory.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

func (s *SnapshotStore) Dir() string {
	return s.dir
}

func (s *SnapshotStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Rotate retires the previous generation and demotes the current one. It
// must run before SaveCurrent. With no current snapshot it does nothing, so
// a first run leaves no previous generation behind.
func (s *SnapshotStore) Rotate() error {
	current := s.Path(CurrentSnapshotFile)
	if _, err := os.Stat(current); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	if err := os.Remove(s.Path(PreviousSnapshotFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous snapshot: %w", err)
	}
	if err := os.Rename(current, s.Path(PreviousSnapshotFile)); err != nil {
		return fmt.Errorf("demote snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) SaveCurrent(snapshot models.Snapshot) error {
	return s.WriteJSON(CurrentSnapshotFile, snapshot)
}

func (s *SnapshotStore) LoadCurrent() (models.Snapshot, error) {
	return s.load(CurrentSnapshotFile)
}

func (s *SnapshotStore) LoadPrevious() (models.Snapshot, error) {
	return s.load(PreviousSnapshotFile)
}

func (s *SnapshotStore) load(name string) (models.Snapshot, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	for id, offer := range snapshot {
		offer.ID = id
		snapshot[id] = offer
	}
	if snapshot == nil {
		snapshot = make(models.Snapshot)
	}
	return snapshot, nil
}

// WriteJSON writes v with sorted keys and a 4-space indent. Non-ASCII text and
// HTML characters are written as-is.
func (s *SnapshotStore) WriteJSON(name string, v any) error {
	return s.WriteFile(name, func(w io.Writer) error {
		return EncodeJSON(w, v)
	})
}

// WriteFile writes through a temp file in the same directory and renames it
// into place, so readers never see a half-written file.
func (s *SnapshotStore) WriteFile(name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path(name))
}

// Remove deletes the named files. Files that do not exist are ignored.
func (s *SnapshotStore) Remove(names ...string) error {
	var errs []error
	for _, name := range names {
		if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Files lists the regular files in the store, sorted by name.
func (s *SnapshotStore) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && entry.Name()[0] != '.' {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// EncodeJSON is the on-disk JSON format. encoding/json already sorts map keys.
func EncodeJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
