package lms

import (
	"html"
	"regexp"
	"strings"
)

// Chamilo ships no stable machine-readable surface for these flows, so the
// client scrapes the same markers the web UI relies on.
var (
	csrfTokenRe = regexp.MustCompile(
		`name=["'](?:_token|sec_token|csrf_token)["']\s+value=["']([^"']+)["']`)

	courseLinkRe  = regexp.MustCompile(`(?i)/courses/([A-Z0-9_]+)/index\.php`)
	catalogCodeRe = regexp.MustCompile(`(?i)course_code=([A-Z0-9_]+)`)

	formActionRe = regexp.MustCompile(
		`(?i)<form[^>]*action=["']([^"']*upload\.php[^"']*)["']`)

	hiddenFieldRe = regexp.MustCompile(
		`(?i)<input[^>]*type=["']hidden["'][^>]*name=["']([^"']+)["'][^>]*value=["']([^"']*)["']`)
	hiddenFieldReversedRe = regexp.MustCompile(
		`(?i)<input[^>]*value=["']([^"']*)["'][^>]*type=["']hidden["'][^>]*name=["']([^"']+)["']`)

	lpViewRe = regexp.MustCompile(`lp_controller\.php.*action=view`)
)

func findCSRFToken(body string) string {
	if m := csrfTokenRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// findCourseCodes extracts course codes from portal course links,
// deduplicated in document order.
func findCourseCodes(body string) []string {
	return dedupe(courseLinkRe.FindAllStringSubmatch(body, -1))
}

func findCatalogCodes(body string) []string {
	return dedupe(catalogCodeRe.FindAllStringSubmatch(body, -1))
}

func dedupe(matches [][]string) []string {
	seen := map[string]bool{}
	var codes []string
	for _, m := range matches {
		code := strings.ToUpper(m[1])
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

func findFormAction(body string) string {
	if m := formActionRe.FindStringSubmatch(body); m != nil {
		return html.UnescapeString(m[1])
	}
	return ""
}

// findHiddenFields collects hidden inputs regardless of attribute order.
func findHiddenFields(body string) map[string]string {
	fields := map[string]string{}
	for _, m := range hiddenFieldRe.FindAllStringSubmatch(body, -1) {
		fields[m[1]] = m[2]
	}
	for _, m := range hiddenFieldReversedRe.FindAllStringSubmatch(body, -1) {
		if _, ok := fields[m[2]]; !ok {
			fields[m[2]] = m[1]
		}
	}
	return fields
}

// loginSucceeded applies the heuristics the Chamilo UI leaves us: a logout
// link, a redirect to the user portal, or the username echoed on the page.
func loginSucceeded(finalURL, body, username string) bool {
	lower := strings.ToLower(body)
	if strings.Contains(lower, "logout") {
		return true
	}
	if strings.Contains(finalURL, "user_portal") {
		return true
	}
	return strings.Contains(lower, strings.ToLower(username))
}

// uploadSucceeded decides whether the import took. Chamilo redirects to the
// Learning Path controller on success; otherwise look for positive markers
// before falling back to "no error text on the page".
func uploadSucceeded(finalURL, body string) bool {
	if strings.Contains(finalURL, "lp_controller.php") {
		return true
	}

	lower := strings.ToLower(body)
	if strings.Contains(lower, "scorm") &&
		(strings.Contains(lower, "success") || strings.Contains(lower, "import")) {
		return true
	}
	if lpViewRe.MatchString(body) {
		return true
	}

	head := lower
	if len(head) > 2000 {
		head = head[:2000]
	}
	for _, marker := range []string{
		"error", "not allowed", "permission denied",
		"invalid file", "ошибка", "не удалось",
	} {
		if strings.Contains(head, marker) {
			return false
		}
	}
	return true
}
