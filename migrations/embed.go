// Package migrations embeds the TraceKit schema migrations and provides the
// runner the migrator command and integration tests share. Migrations are
// compiled into the binary via go:embed, so deployment and tests never depend
// on a checkout-relative path.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FS holds every embedded migration file.
//
//go:embed *.sql
var FS embed.FS

// migrationFilePattern enforces the naming standard:
// 001_migration_name.up.sql / 001_migration_name.down.sql.
var migrationFilePattern = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// File is one parsed migration filename.
type File struct {
	Sequence  int
	Name      string
	Direction string
	Filename  string
}

// List returns the embedded migration filenames that conform to the naming
// standard, sorted. Non-conforming .sql files are an error, not silently
// skipped: a typo in a filename must fail loudly before it can be deployed.
func List() ([]string, error) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var files []string

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		if !migrationFilePattern.MatchString(name) {
			return nil, fmt.Errorf(
				"embedded migration %q does not match NNN_name.(up|down).sql", name,
			)
		}

		files = append(files, name)
	}

	sort.Strings(files)

	return files, nil
}

// Validate checks the embedded migration set as a whole: every filename
// conforms, every up has a down (and vice versa), and sequence numbers start
// at 1 without gaps.
func Validate() error {
	files, err := List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no embedded migrations found")
	}

	ups := make(map[int]string)
	downs := make(map[int]string)

	for _, filename := range files {
		file, err := Parse(filename)
		if err != nil {
			return err
		}

		byDirection := ups
		if file.Direction == "down" {
			byDirection = downs
		}

		if existing, dupe := byDirection[file.Sequence]; dupe {
			return fmt.Errorf(
				"duplicate %s migration for sequence %03d: %s and %s",
				file.Direction, file.Sequence, existing, filename,
			)
		}

		byDirection[file.Sequence] = filename
	}

	for seq, filename := range ups {
		if _, ok := downs[seq]; !ok {
			return fmt.Errorf("migration %s has no matching down migration", filename)
		}
	}

	for seq, filename := range downs {
		if _, ok := ups[seq]; !ok {
			return fmt.Errorf("migration %s has no matching up migration", filename)
		}
	}

	for seq := 1; seq <= len(ups); seq++ {
		if _, ok := ups[seq]; !ok {
			return fmt.Errorf("migration sequence has a gap: %03d is missing", seq)
		}
	}

	return nil
}

// Parse splits one migration filename into its parts.
func Parse(filename string) (File, error) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return File{}, fmt.Errorf("invalid migration filename %q", filename)
	}

	sequence, err := strconv.Atoi(m[1])
	if err != nil {
		return File{}, fmt.Errorf("invalid migration sequence in %q: %w", filename, err)
	}

	return File{
		Sequence:  sequence,
		Name:      m[2],
		Direction: m[3],
		Filename:  filename,
	}, nil
}

// MaxVersion returns the highest embedded migration sequence number.
func MaxVersion() int {
	files, err := List()
	if err != nil {
		return 0
	}

	max := 0

	for _, filename := range files {
		if file, err := Parse(filename); err == nil && file.Sequence > max {
			max = file.Sequence
		}
	}

	return max
}
