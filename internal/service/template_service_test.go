package service

import (
	"testing"

	"github.com/ptrckSTL/BoomOrganized/internal/sheet"
	"github.com/ptrckSTL/BoomOrganized/internal/testutil"
)

// TestRender_BothNames tests placeholder substitution with both names populated
func TestRender_BothNames(t *testing.T) {
	// Setup
	templateSvc := NewTemplateService()

	// Execute
	result := templateSvc.Render("Hey firstName, it's lastName", testutil.StringPtr("Ann"), testutil.StringPtr("Lee"))

	// Verify
	testutil.AssertEqual(t, result, "Hey Ann, it's Lee")
}

// TestRender_NilFirstName tests that a nil value leaves its placeholder verbatim
func TestRender_NilFirstName(t *testing.T) {
	templateSvc := NewTemplateService()

	result := templateSvc.Render("Hey firstName!", nil, testutil.StringPtr("Lee"))

	testutil.AssertEqual(t, result, "Hey firstName!")
}

// TestRender_AliasPriority tests that the first alias whose replacement
// changes the script wins and later aliases are not attempted
func TestRender_AliasPriority(t *testing.T) {
	templateSvc := NewTemplateService()

	// "firstName" matches before "first", so "first prize" survives
	result := templateSvc.Render("firstName won first prize", testutil.StringPtr("Ann"), nil)

	testutil.AssertEqual(t, result, "Ann won first prize")
}

// TestRender_MultipleCombinations tests various script and name combinations
func TestRender_MultipleCombinations(t *testing.T) {
	testCases := []struct {
		name      string
		script    string
		firstName *string
		lastName  *string
		expected  string
	}{
		{
			name:      "underscore alias",
			script:    "Hi first_name!",
			firstName: testutil.StringPtr("Bob"),
			expected:  "Hi Bob!",
		},
		{
			name:      "spaced alias",
			script:    "Hi first name!",
			firstName: testutil.StringPtr("Bob"),
			expected:  "Hi Bob!",
		},
		{
			name:      "bare alias",
			script:    "Hi first!",
			firstName: testutil.StringPtr("Bob"),
			expected:  "Hi Bob!",
		},
		{
			name:     "last name only",
			script:   "Dear Mx lastName,",
			lastName: testutil.StringPtr("Smith"),
			expected: "Dear Mx Smith,",
		},
		{
			name:      "repeated placeholder replaced everywhere",
			script:    "firstName firstName firstName",
			firstName: testutil.StringPtr("Ann"),
			expected:  "Ann Ann Ann",
		},
		{
			name:      "no placeholders",
			script:    "Show up at 6pm",
			firstName: testutil.StringPtr("Ann"),
			lastName:  testutil.StringPtr("Lee"),
			expected:  "Show up at 6pm",
		},
		{
			name:     "case sensitive, FirstName is not an alias",
			script:   "Hi FirstName!",
			firstName: testutil.StringPtr("Ann"),
			expected: "Hi FirstName!",
		},
	}

	templateSvc := NewTemplateService()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := templateSvc.Render(tc.script, tc.firstName, tc.lastName)
			testutil.AssertEqual(t, result, tc.expected)
		})
	}
}

// TestRequiredLabels tests which columns a script demands
func TestRequiredLabels(t *testing.T) {
	templateSvc := NewTemplateService()

	testCases := []struct {
		name      string
		script    string
		firstName bool
		lastName  bool
	}{
		{name: "plain script needs cell only", script: "Show up at 6pm"},
		{name: "firstName reference", script: "Hey firstName", firstName: true},
		{name: "lastName reference", script: "Dear lastName", lastName: true},
		{name: "both references", script: "firstName lastName", firstName: true, lastName: true},
		{name: "other aliases do not trigger requirements", script: "first_name last_name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			required := templateSvc.RequiredLabels(tc.script)

			testutil.AssertEqual(t, required[sheet.ColumnCellPhone], true)
			testutil.AssertEqual(t, required[sheet.ColumnFirstName], tc.firstName)
			testutil.AssertEqual(t, required[sheet.ColumnLastName], tc.lastName)
		})
	}
}

// TestPreview tests rendering against the first data row
func TestPreview(t *testing.T) {
	templateSvc := NewTemplateService()

	sh, err := sheet.FromRows([][]string{
		{"First Name", "Last Name", "Cell"},
		{"Ann", "Lee", "555-0100"},
		{"Bob", "Ray", "555-0101"},
	})
	testutil.AssertNoError(t, err)

	result := templateSvc.Preview("Hey firstName, it's lastName", sh)
	testutil.AssertEqual(t, result, "Hey Ann, it's Lee")
}
