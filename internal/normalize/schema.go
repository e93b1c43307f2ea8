package normalize

import (
	"slices"
	"strings"

	"taiwan-calendar/internal/model"
)

// requiredRoles must resolve for a schema to be usable.
var requiredRoles = []model.Role{model.RoleDate, model.RoleHoliday}

// SourceSchema describes one known layout of the upstream CSV.
type SourceSchema struct {
	// Name identifies the schema in logs and errors.
	Name string
	// Columns lists header aliases per role, in order of preference.
	Columns map[model.Role][]string
	// Flags maps holiday-flag literals for files in this layout. Nil means the mapper default.
	Flags model.FlagMapping
	// Encodings overrides the registry candidate list when non-empty.
	Encodings []string
	// Years pins this schema to specific years regardless of header signature.
	Years []int
}

// resolve maps each role to a column index in header. Roles without a
// matching alias are absent from the result.
func (s SourceSchema) resolve(header []string) map[model.Role]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := make(map[model.Role]int)
	for role, aliases := range s.Columns {
		for _, alias := range aliases {
			if i, ok := index[normalizeHeader(alias)]; ok {
				cols[role] = i
				break
			}
		}
	}
	return cols
}

func missingRoles(cols map[model.Role]int) []model.Role {
	var missing []model.Role
	for _, role := range requiredRoles {
		if _, ok := cols[role]; !ok {
			missing = append(missing, role)
		}
	}
	return missing
}

// Registry holds the known source schemas and the default encoding candidates.
// It is passed explicitly to the Normalizer so tests can supply their own.
type Registry struct {
	Schemas   []SourceSchema
	Encodings []string
}

// ForYear returns the schema pinned to year, if any.
func (r *Registry) ForYear(year int) (SourceSchema, bool) {
	for _, s := range r.Schemas {
		if slices.Contains(s.Years, year) {
			return s, true
		}
	}
	return SourceSchema{}, false
}

// Match picks the schema resolving the most roles for header. Schemas that
// cannot resolve every required role are never chosen.
func (r *Registry) Match(header []string) (SourceSchema, map[model.Role]int, error) {
	var (
		best     SourceSchema
		bestCols map[model.Role]int
		partial  map[model.Role]int
	)
	for _, s := range r.Schemas {
		cols := s.resolve(header)
		if len(missingRoles(cols)) > 0 {
			if len(cols) > len(partial) {
				partial = cols
			}
			continue
		}
		if bestCols == nil || len(cols) > len(bestCols) {
			best, bestCols = s, cols
		}
	}
	if bestCols == nil {
		if partial == nil {
			partial = map[model.Role]int{}
		}
		return SourceSchema{}, nil, &SchemaResolutionError{
			Signature: Signature(header),
			Header:    header,
			Missing:   missingRoles(partial),
		}
	}
	return best, bestCols, nil
}

// DefaultRegistry returns the layouts observed on the portal so far.
func DefaultRegistry() *Registry {
	return &Registry{
		Encodings: []string{EncodingUTF8, EncodingUTF16, EncodingBig5, EncodingGB18030},
		Schemas: []SourceSchema{
			{
				// 106年 onwards: 西元日期,星期,是否放假,備註 with 0/2 flags.
				Name: "dgpa",
				Columns: map[model.Role][]string{
					model.RoleDate:        {"西元日期", "日期"},
					model.RoleWeek:        {"星期"},
					model.RoleHoliday:     {"是否放假", "放假"},
					model.RoleDescription: {"備註", "說明"},
				},
				Flags: model.FlagMapping{"0": false, "2": true},
			},
			{
				// 102-105年: date,name,isHoliday,holidayCategory,description with 是/否 flags.
				Name: "opendata-legacy",
				Columns: map[model.Role][]string{
					model.RoleDate:        {"date"},
					model.RoleWeek:        {"week", "weekday"},
					model.RoleHoliday:     {"isHoliday", "holiday"},
					model.RoleDescription: {"description", "holidayCategory", "name"},
				},
				Flags: model.FlagMapping{"是": true, "否": false},
			},
		},
	}
}

// Signature is the normalized header joined with "|", used to identify layouts.
func Signature(header []string) string {
	parts := make([]string, len(header))
	for i, h := range header {
		parts[i] = normalizeHeader(h)
	}
	return strings.Join(parts, "|")
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
