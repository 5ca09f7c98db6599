package service

import (
	"strings"

	"github.com/ptrckSTL/BoomOrganized/internal/sheet"
)

// Placeholder alias sets, tried in order. The first alias whose
// replacement changes the script wins; later aliases are not attempted.
var (
	firstNameAliases = []string{"firstName", "first_name", "first name", "first"}
	lastNameAliases  = []string{"lastName", "last_name", "last name", "last"}
)

// TemplateService handles script placeholder rendering
type TemplateService struct{}

// NewTemplateService creates a new template service
func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

// Render substitutes name placeholders into the script. Substitution is
// case-sensitive literal replacement; a nil value leaves its
// placeholders verbatim. There are no error conditions.
func (s *TemplateService) Render(script string, firstName, lastName *string) string {
	result := script
	if firstName != nil {
		result = replaceFirstMatching(firstNameAliases, result, *firstName)
	}
	if lastName != nil {
		result = replaceFirstMatching(lastNameAliases, result, *lastName)
	}
	return result
}

func replaceFirstMatching(aliases []string, script, replacement string) string {
	for _, alias := range aliases {
		replaced := strings.ReplaceAll(script, alias, replacement)
		if replaced != script {
			return replaced
		}
	}
	return script
}

// RequiredLabels derives which semantic columns a script needs. The cell
// column is always required; name columns only when the script actually
// references them.
func (s *TemplateService) RequiredLabels(script string) map[sheet.ColumnLabel]bool {
	required := map[sheet.ColumnLabel]bool{
		sheet.ColumnCellPhone: true,
	}
	if strings.Contains(script, "firstName") {
		required[sheet.ColumnFirstName] = true
	}
	if strings.Contains(script, "lastName") {
		required[sheet.ColumnLastName] = true
	}
	return required
}

// Preview renders the script against the first data row of a mapped
// sheet, for the preview screen. An empty sheet previews the raw script.
func (s *TemplateService) Preview(script string, sh sheet.Sheet) string {
	if len(sh.Rows) == 0 {
		return script
	}
	return s.Render(script, sh.FirstName(0), sh.LastName(0))
}
