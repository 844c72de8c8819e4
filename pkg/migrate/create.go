package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/pressly/goose/v3"
)

// sqlTemplate is the skeleton for new migrations. Both directions are
// required by ValidateDir, so the Down block is never left out.
var sqlTemplate = template.Must(template.New("designdrop.sql").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}}: write the forward change here.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- {{.CamelName}}: undo the forward change here.
-- +goose StatementEnd
`))

// CreateSQLMigration writes <dir>/<UTC timestamp>_<name>.sql via goose and
// returns its path. name is reduced to lowercase snake case first.
func CreateSQLMigration(dir, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, slug, "sql"); err != nil {
		return "", fmt.Errorf("create migration %q: %w", slug, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("locate created migration %q: %v", slug, err)
	}
	// timestamps sort lexically; the newest match is the one just written
	return matches[len(matches)-1], nil
}

func migrationSlug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
